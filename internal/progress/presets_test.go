package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetCatalog(t *testing.T) {
	presets := ListPresets()
	require.Len(t, presets, 4)

	names := make([]string, 0, len(presets))
	for _, info := range presets {
		names = append(names, info.Name)
		assert.NotEmpty(t, info.Description, "%s has a description", info.Name)
		assert.NoError(t, info.Policy.Validate(), "%s carries a valid policy", info.Name)
	}
	assert.Equal(t, []string{"beginner", "normal", "intensive", "expert"}, names)
}

func TestPresetIntensive(t *testing.T) {
	preset, ok := PresetByName("intensive")
	require.True(t, ok)

	policy := preset.Policy()
	assert.Equal(t, 5, policy.RequiredReviewsToLearn)
	assert.True(t, policy.AutoMarkLearned)
	assert.True(t, policy.ResetOnWrongAnswer)
}

func TestPresetByName_Unknown(t *testing.T) {
	_, ok := PresetByName("hardcore")
	assert.False(t, ok)

	_, ok = PresetByName("")
	assert.False(t, ok)
}

func TestPresetString(t *testing.T) {
	assert.Equal(t, "beginner", PresetBeginner.String())
	assert.Equal(t, "expert", PresetExpert.String())
	assert.Equal(t, "preset(42)", Preset(42).String())
}
