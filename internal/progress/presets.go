package progress

import "fmt"

// Preset is a named, fixed bundle of policy values. The catalogue is a
// compile-time constant table; presets are never persisted.
type Preset int

const (
	PresetBeginner Preset = iota
	PresetNormal
	PresetIntensive
	PresetExpert
)

// PresetInfo describes one catalogue entry for API consumers.
type PresetInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Policy      Policy `json:"policy"`
}

var presetCatalog = [...]PresetInfo{
	PresetBeginner: {
		Name:        "beginner",
		Description: "Gentle start: two correct reviews to learn, mistakes keep your streak.",
		Policy:      Policy{RequiredReviewsToLearn: 2, AutoMarkLearned: true, ResetOnWrongAnswer: false},
	},
	PresetNormal: {
		Name:        "normal",
		Description: "Balanced: three correct reviews to learn, mistakes keep your streak.",
		Policy:      Policy{RequiredReviewsToLearn: 3, AutoMarkLearned: true, ResetOnWrongAnswer: false},
	},
	PresetIntensive: {
		Name:        "intensive",
		Description: "Demanding: five correct reviews to learn, a mistake resets your streak.",
		Policy:      Policy{RequiredReviewsToLearn: 5, AutoMarkLearned: true, ResetOnWrongAnswer: true},
	},
	PresetExpert: {
		Name:        "expert",
		Description: "Strict: ten correct reviews, a mistake resets your streak, learned is marked manually.",
		Policy:      Policy{RequiredReviewsToLearn: 10, AutoMarkLearned: false, ResetOnWrongAnswer: true},
	},
}

// String returns the wire name of the preset.
func (p Preset) String() string {
	if p < 0 || int(p) >= len(presetCatalog) {
		return fmt.Sprintf("preset(%d)", int(p))
	}
	return presetCatalog[p].Name
}

// Policy returns the policy values of the preset.
func (p Preset) Policy() Policy {
	return presetCatalog[p].Policy
}

// Info returns the catalogue entry of the preset.
func (p Preset) Info() PresetInfo {
	return presetCatalog[p]
}

// PresetByName resolves a wire name to a preset. The second return value is
// false for names outside the catalogue.
func PresetByName(name string) (Preset, bool) {
	for i := range presetCatalog {
		if presetCatalog[i].Name == name {
			return Preset(i), true
		}
	}
	return 0, false
}

// ListPresets returns the full catalogue in a stable order.
func ListPresets() []PresetInfo {
	out := make([]PresetInfo, len(presetCatalog))
	copy(out, presetCatalog[:])
	return out
}
