package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wellora/wellcheck/internal/domain/environment"
	"github.com/wellora/wellcheck/internal/domain/voice"
)

// promptInput gathers everything the prompt template needs. The template is
// deterministic: identical input yields an identical prompt.
type promptInput struct {
	Latitude       float64
	Longitude      float64
	Environment    environment.Summary
	Voice          *voice.Analysis
	VoiceAttached  bool
	AllergyHistory string
}

// buildPrompt renders the assessment instructions handed to the model. The
// response schema is spelled out verbatim; reconciliation depends on these
// exact field names.
func buildPrompt(in promptInput) string {
	var b strings.Builder

	b.WriteString("You are a sickness assessment AI. Assess only whether the user might be unwell (infection, allergy, fatigue, congestion). Do not comment on skin blemishes, acne, cosmetic issues, or any non-illness appearance.\n\n")

	b.WriteString("1. Eye photo: Look only for signs of illness: redness or swelling suggesting infection or allergy, discharge, or signs of fatigue. Note whether findings affect one eye or both, and whether any discharge looks watery/clear or thick/purulent. Ignore and do not mention skin blemishes, dark circles as cosmetic, or other non-illness features. If you mention the eyes/face, restrict it to illness-relevant findings only.\n")

	fmt.Fprintf(&b, "2. Location: %g, %g\n", in.Latitude, in.Longitude)

	b.WriteString("3. Pollen / past days: The data below is only a forecast (today and upcoming days). We have no data for the past. You must consider the past 2-4 days: allergy symptoms often appear 1-4 days after exposure, so the user may be feeling lingering effects from recent pollen even if the forecast is low. Do not conclude that pollen is unlikely to contribute solely because the forecast shows low levels. Instead, state that recent exposure is unknown and that past 2-4 day exposure could still explain allergy-like symptoms if present. When the forecast is low, say something like: \"Current forecast is low; recent days are unknown, past 2-4 day exposure could still contribute to allergy-like symptoms.\"\n")
	b.WriteString(renderEnvironment(in.Environment))
	b.WriteString("\n")

	b.WriteString("4. Voice: ")
	b.WriteString(voiceInstruction(in.Voice, in.VoiceAttached))
	b.WriteString("\n")

	b.WriteString("5. Allergy history: ")
	if strings.TrimSpace(in.AllergyHistory) != "" {
		b.WriteString("The user reports the following allergy history. Weigh it when estimating allergy likelihood, but do not let it override what the photo shows.\n")
		b.WriteString(strings.TrimSpace(in.AllergyHistory))
		b.WriteString("\n")
	} else {
		b.WriteString("No allergy history provided.\n")
	}

	b.WriteString("\nRespond with a single JSON object only, no markdown or extra text. In eyeAnalysis and symptoms, include only illness-related findings (no skin blemishes or cosmetic comments). allergyProbability estimates how much of the sickness likelihood is allergy-driven and must never exceed sicknessProbability. If findings affect only one eye, or any discharge appears thick or purulent, you must set shouldSeeDoctor to true.\n")
	b.WriteString(`{
  "sicknessProbability": <0-100>,
  "allergyProbability": <0-100, never above sicknessProbability>,
  "symptoms": ["illness-related symptom only"],
  "eyeAnalysis": "illness-relevant findings only, no blemishes/cosmetic",
  "environmentalFactors": "include note on past 2-4 day pollen uncertainty when forecast is low",
  "recommendations": "practical advice",
  "severity": "none|mild|moderate|severe",
  "shouldSeeDoctor": true or false,
  "isUnilateral": true or false,
  "dischargeType": "none|clear|purulent|unknown"
}`)

	return b.String()
}

// renderEnvironment serializes the pollen summary for the prompt. Upstream
// failures are stated plainly so the model knows data is missing rather
// than low.
func renderEnvironment(summary environment.Summary) string {
	if summary.Error != "" {
		return "Error: " + summary.Error
	}
	if summary.Pollen == nil {
		return "Error: pollen data unavailable"
	}
	data, err := json.MarshalIndent(summary.Pollen, "", "  ")
	if err != nil {
		return "Error: pollen data unavailable"
	}
	return string(data)
}

func voiceInstruction(analysis *voice.Analysis, attached bool) string {
	if !attached {
		return "No voice recording provided."
	}
	base := "The user read a standard English sentence aloud. Analyze their voice for signs of illness: congestion, nasal quality, hoarseness, raspiness, weakness, fatigue, or other qualities that may indicate they are unwell. Use this together with the eye photo."
	if analysis == nil {
		return base
	}
	if analysis.Failed() {
		return base + "\nAutomated acoustic feature extraction failed; rely on the recording itself."
	}
	return base + "\nAutomated acoustic features extracted from the recording:\n" + analysis.PromptSummary()
}
