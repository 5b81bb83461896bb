package present

// Feature is one card of the static capability panel.
type Feature struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

var features = []Feature{
	{
		Title:       "Facial Analysis",
		Description: "Advanced AI detects unnatural facial features, inconsistencies, and manipulation artifacts.",
	},
	{
		Title:       "Audio Verification",
		Description: "Detects voice synthesis artifacts, unnatural speech patterns, and audio-visual synchronization issues.",
	},
	{
		Title:       "Metadata Analysis",
		Description: "Examines digital fingerprints, compression artifacts, and editing traces that indicate manipulation.",
	},
}

// FeaturesTitle heads the capability panel.
const FeaturesTitle = "Advanced Deepfake Detection Features"

// Features returns a copy of the capability cards.
func Features() []Feature {
	out := make([]Feature, len(features))
	copy(out, features)
	return out
}
