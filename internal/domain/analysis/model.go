package analysis

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/wellora/wellcheck/internal/domain/environment"
	"github.com/wellora/wellcheck/internal/domain/voice"
)

// Severity grades the overall impression of the assessment.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityUnknown  Severity = "unknown"
)

// DischargeType describes eye discharge, if any, observed on the photograph.
type DischargeType string

const (
	DischargeNone     DischargeType = "none"
	DischargeClear    DischargeType = "clear"
	DischargePurulent DischargeType = "purulent"
	DischargeUnknown  DischargeType = "unknown"
)

// Request captures the payload accepted by the analysis service. Latitude
// and longitude are pointers so a missing coordinate is distinguishable
// from zero.
type Request struct {
	ImageBase64    string   `json:"imageBase64"`
	ImageMediaType string   `json:"imageMediaType"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
	VoiceBase64    string   `json:"voiceBase64"`
	VoiceMediaType string   `json:"voiceMediaType"`
	AllergyHistory string   `json:"allergyHistory"`
	UserID         string   `json:"userId"`
}

// InferenceResult is the structured assessment distilled from the model
// output. AllergyProbability stays a pointer: the model may decline to
// estimate it, and null is meaningful to consumers.
type InferenceResult struct {
	SicknessProbability  int           `json:"sicknessProbability"`
	AllergyProbability   *int          `json:"allergyProbability"`
	Symptoms             []string      `json:"symptoms"`
	EyeAnalysis          string        `json:"eyeAnalysis"`
	EnvironmentalFactors string        `json:"environmentalFactors"`
	Recommendations      string        `json:"recommendations"`
	Severity             Severity      `json:"severity"`
	ShouldSeeDoctor      bool          `json:"shouldSeeDoctor"`
	IsUnilateral         bool          `json:"isUnilateral"`
	DischargeType        DischargeType `json:"dischargeType"`
}

// Location echoes the request coordinates with an optional resolved name.
type Location struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"displayName,omitempty"`
}

// Response is serialized back to API consumers. Voice stays null when no
// sample was provided; environmental always carries either data or an error
// marker, never both.
type Response struct {
	InferenceResult
	Salvaged      bool                `json:"salvaged,omitempty"`
	Environmental environment.Summary `json:"environmental"`
	Voice         *voice.Analysis     `json:"voice"`
	Location      Location            `json:"location"`
	Timestamp     string              `json:"timestamp"`
}

// Record is a completed assessment persisted for history.
type Record struct {
	ID             string
	UserID         string
	AllergyHistory string
	Response       Response
	CreatedAt      time.Time
}

// Recorder persists completed assessments. Saving is best effort and never
// blocks a response.
type Recorder interface {
	Save(ctx context.Context, rec Record) error
}

var dataURLPattern = regexp.MustCompile(`^data:[\w.+-]+/[\w.+-]+;base64,`)

// stripDataURL removes a data URL prefix so clients may send either raw
// base64 or the canvas/file-reader form.
func stripDataURL(encoded string) string {
	trimmed := strings.TrimSpace(encoded)
	return dataURLPattern.ReplaceAllString(trimmed, "")
}
