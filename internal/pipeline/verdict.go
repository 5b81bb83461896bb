package pipeline

import (
	"math"
	"math/rand"
)

const (
	manipulationThreshold = 50.0
	singleFrame           = 1
)

// DeriveVerdict turns a deepfake probability into the displayed verdict.
// estimatedSeconds is carried through as-is.
func DeriveVerdict(probability, estimatedSeconds float64) Verdict {
	fake := probability * 100
	manipulated := fake > manipulationThreshold

	confidence := 100 - fake
	anomalies := 0
	if manipulated {
		confidence = fake
		anomalies = int(math.Floor(fake / 10))
	}

	return Verdict{
		Probability:                probability,
		FakePercent:                fake,
		IsManipulated:              manipulated,
		Confidence:                 int(math.Round(confidence)),
		EstimatedProcessingSeconds: estimatedSeconds,
		FrameCount:                 singleFrame,
		AnomalyCount:               anomalies,
	}
}

// RandomEstimate returns a placeholder processing time in [1.0, 3.0] seconds
// rounded to one decimal.
func RandomEstimate() float64 {
	return math.Round((1+rand.Float64()*2)*10) / 10
}
