package voice

import (
	"fmt"
	"strings"
)

// Analysis mirrors the voice feature microservice contract. Field names stay
// in the producer's snake_case form; the payload is passed through to API
// consumers as received. A failed extraction carries Error (and optionally
// Details) instead of data. The absence of a voice sample is represented by
// a nil *Analysis, which is a distinct state from failure.
type Analysis struct {
	NasalityScore      float64        `json:"nasality_score"`
	Confidence         float64        `json:"confidence"`
	Interpretation     string         `json:"interpretation,omitempty"`
	SuggestsCongestion bool           `json:"suggests_congestion"`
	Features           map[string]any `json:"features,omitempty"`
	Error              string         `json:"error,omitempty"`
	Details            string         `json:"details,omitempty"`
}

// Failed reports whether the analysis carries a failure marker.
func (a *Analysis) Failed() bool {
	return a != nil && a.Error != ""
}

// PromptSummary renders the analysis as human-readable lines for the model
// prompt. Callers handle the nil (not provided) and failed states.
func (a *Analysis) PromptSummary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Nasality score: %.0f/100 (confidence %.0f%%)\n", a.NasalityScore, a.Confidence)
	if a.SuggestsCongestion {
		b.WriteString("Acoustic features suggest nasal congestion.\n")
	} else {
		b.WriteString("Acoustic features do not suggest nasal congestion.\n")
	}
	if a.Interpretation != "" {
		b.WriteString(a.Interpretation)
		b.WriteString("\n")
	}
	if dur, ok := featureFloat(a.Features, "duration_seconds"); ok {
		fmt.Fprintf(&b, "Recording duration: %.1fs", dur)
		if sr, ok := featureFloat(a.Features, "sample_rate"); ok {
			fmt.Fprintf(&b, " at %.0f Hz", sr)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func featureFloat(features map[string]any, key string) (float64, bool) {
	if features == nil {
		return 0, false
	}
	switch v := features[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
