package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, Policy{RequiredReviewsToLearn: 1}.Validate())
	assert.NoError(t, Policy{RequiredReviewsToLearn: 20}.Validate())
	assert.Error(t, Policy{RequiredReviewsToLearn: 0}.Validate())
	assert.Error(t, Policy{RequiredReviewsToLearn: 21}.Validate())
	assert.Error(t, Policy{RequiredReviewsToLearn: -3}.Validate())
}

func TestPolicyPatchApply(t *testing.T) {
	base := Policy{RequiredReviewsToLearn: 3, AutoMarkLearned: true, ResetOnWrongAnswer: false}

	intp := func(v int) *int { return &v }
	boolp := func(v bool) *bool { return &v }

	t.Run("empty patch keeps everything", func(t *testing.T) {
		got, err := PolicyPatch{}.Apply(base)
		require.NoError(t, err)
		assert.Equal(t, base, got)
		assert.True(t, PolicyPatch{}.IsEmpty())
	})

	t.Run("partial patch only touches set fields", func(t *testing.T) {
		patch := PolicyPatch{RequiredReviewsToLearn: intp(7), ResetOnWrongAnswer: boolp(true)}
		assert.False(t, patch.IsEmpty())

		got, err := patch.Apply(base)
		require.NoError(t, err)
		assert.Equal(t, Policy{RequiredReviewsToLearn: 7, AutoMarkLearned: true, ResetOnWrongAnswer: true}, got)
	})

	t.Run("out of range threshold rejected", func(t *testing.T) {
		_, err := PolicyPatch{RequiredReviewsToLearn: intp(25)}.Apply(base)
		assert.Error(t, err)

		_, err = PolicyPatch{RequiredReviewsToLearn: intp(0)}.Apply(base)
		assert.Error(t, err)
	})
}
