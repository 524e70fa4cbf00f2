package analysis

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

const wellFormed = `{
  "sicknessProbability": 62,
  "allergyProbability": 48,
  "symptoms": ["red eyes", "watery discharge"],
  "eyeAnalysis": "Bilateral conjunctival redness with watery discharge.",
  "environmentalFactors": "Tree pollen is high today.",
  "recommendations": "Use antihistamine drops and rest.",
  "severity": "moderate",
  "shouldSeeDoctor": false,
  "isUnilateral": false,
  "dischargeType": "clear"
}`

func TestReconcileWellFormed(t *testing.T) {
	result, salvaged := reconcile(wellFormed)
	require.False(t, salvaged)
	require.Equal(t, 62, result.SicknessProbability)
	require.NotNil(t, result.AllergyProbability)
	require.Equal(t, 48, *result.AllergyProbability)
	require.Equal(t, []string{"red eyes", "watery discharge"}, result.Symptoms)
	require.Equal(t, SeverityModerate, result.Severity)
	require.Equal(t, DischargeClear, result.DischargeType)
	require.False(t, result.ShouldSeeDoctor)
}

func TestReconcileSurroundingProse(t *testing.T) {
	raw := "Here is the assessment you asked for:\n```json\n" + wellFormed + "\n```\nLet me know if you need more."
	result, salvaged := reconcile(raw)
	require.False(t, salvaged)
	require.Equal(t, 62, result.SicknessProbability)
}

func TestReconcileRawNewlinesInStrings(t *testing.T) {
	raw := "{\"sicknessProbability\": 30, \"eyeAnalysis\": \"Mild redness\nno swelling\", \"symptoms\": [], \"severity\": \"mild\", \"shouldSeeDoctor\": false, \"isUnilateral\": false, \"dischargeType\": \"none\"}"
	result, salvaged := reconcile(raw)
	require.True(t, salvaged)
	require.Equal(t, 30, result.SicknessProbability)
	require.Equal(t, "Mild redness\nno swelling", result.EyeAnalysis)
	require.Equal(t, SeverityMild, result.Severity)
}

func TestReconcileTrailingComma(t *testing.T) {
	raw := `{"sicknessProbability": 25, "symptoms": ["sneezing",], "severity": "mild",}`
	result, salvaged := reconcile(raw)
	require.True(t, salvaged)
	require.Equal(t, 25, result.SicknessProbability)
	require.Equal(t, []string{"sneezing"}, result.Symptoms)
}

func TestReconcileTruncatedObject(t *testing.T) {
	raw := `{"sicknessProbability": 71, "allergyProbability": 55, "symptoms": ["itchy eyes"], "eyeAnalysis": "Redness noted`
	result, salvaged := reconcile(raw)
	require.True(t, salvaged)
	require.Equal(t, 71, result.SicknessProbability)
	require.NotNil(t, result.AllergyProbability)
	require.Equal(t, 55, *result.AllergyProbability)
	require.Equal(t, []string{"itchy eyes"}, result.Symptoms)
	require.Equal(t, SeverityUnknown, result.Severity)
}

func TestReconcileFieldRescue(t *testing.T) {
	raw := `The model said "sicknessProbability": 44 and also "severity": "severe" with "shouldSeeDoctor": true somewhere, plus "symptoms": ["fever", "chills"] here { not valid json }`
	result, salvaged := reconcile(raw)
	require.True(t, salvaged)
	require.Equal(t, 44, result.SicknessProbability)
	require.Equal(t, SeveritySevere, result.Severity)
	require.True(t, result.ShouldSeeDoctor)
	require.Equal(t, []string{"fever", "chills"}, result.Symptoms)
	require.Nil(t, result.AllergyProbability)
}

func TestReconcileEmptyInput(t *testing.T) {
	result, salvaged := reconcile("")
	require.True(t, salvaged)
	require.Equal(t, 0, result.SicknessProbability)
	require.Equal(t, SeverityUnknown, result.Severity)
	require.Equal(t, DischargeUnknown, result.DischargeType)
	require.NotNil(t, result.Symptoms)
	require.Empty(t, result.Symptoms)
}

func TestReconcileAllergyNeverExceedsSickness(t *testing.T) {
	raw := `{"sicknessProbability": 10, "allergyProbability": 50, "symptoms": [], "severity": "mild", "shouldSeeDoctor": false, "isUnilateral": false, "dischargeType": "none"}`
	result, _ := reconcile(raw)
	require.Equal(t, 10, result.SicknessProbability)
	require.Equal(t, 10, *result.AllergyProbability)
}

func TestReconcileClampsProbabilities(t *testing.T) {
	raw := `{"sicknessProbability": 140, "allergyProbability": 200, "symptoms": []}`
	result, _ := reconcile(raw)
	require.Equal(t, 100, result.SicknessProbability)
	require.Equal(t, 100, *result.AllergyProbability)

	raw = `{"sicknessProbability": -5, "symptoms": []}`
	result, _ = reconcile(raw)
	require.Equal(t, 0, result.SicknessProbability)
}

func TestReconcileForcesDoctorVisit(t *testing.T) {
	raw := `{"sicknessProbability": 40, "symptoms": [], "severity": "mild", "shouldSeeDoctor": false, "isUnilateral": true, "dischargeType": "none"}`
	result, _ := reconcile(raw)
	require.True(t, result.ShouldSeeDoctor)

	raw = `{"sicknessProbability": 40, "symptoms": [], "severity": "mild", "shouldSeeDoctor": false, "isUnilateral": false, "dischargeType": "purulent"}`
	result, _ = reconcile(raw)
	require.True(t, result.ShouldSeeDoctor)
}

func TestReconcileCoercesLooseTypes(t *testing.T) {
	raw := `{"sicknessProbability": "66", "allergyProbability": 33.7, "symptoms": "sore throat", "shouldSeeDoctor": "true", "severity": "MILD", "dischargeType": "Clear"}`
	result, salvaged := reconcile(raw)
	require.False(t, salvaged)
	require.Equal(t, 66, result.SicknessProbability)
	require.Equal(t, 33, *result.AllergyProbability)
	require.Equal(t, []string{"sore throat"}, result.Symptoms)
	require.True(t, result.ShouldSeeDoctor)
	require.Equal(t, SeverityMild, result.Severity)
	require.Equal(t, DischargeClear, result.DischargeType)
}

func TestReconcileCoercesNumericBooleans(t *testing.T) {
	raw := `{"sicknessProbability": 40, "symptoms": [], "severity": "mild", "shouldSeeDoctor": 1, "isUnilateral": 1, "dischargeType": "none"}`
	result, salvaged := reconcile(raw)
	require.False(t, salvaged)
	require.True(t, result.ShouldSeeDoctor)
	require.True(t, result.IsUnilateral)

	raw = `{"sicknessProbability": 40, "symptoms": [], "shouldSeeDoctor": 0, "isUnilateral": 0, "dischargeType": "none"}`
	result, _ = reconcile(raw)
	require.False(t, result.ShouldSeeDoctor)
	require.False(t, result.IsUnilateral)
}

func TestReconcileRescuesNumericBooleans(t *testing.T) {
	raw := `garbage before "sicknessProbability": 40 and "isUnilateral": 1 with "shouldSeeDoctor": 0 { broken`
	result, salvaged := reconcile(raw)
	require.True(t, salvaged)
	require.True(t, result.IsUnilateral)
	require.True(t, result.ShouldSeeDoctor)
}

func TestReconcileCoercesFloatStrings(t *testing.T) {
	raw := `{"sicknessProbability": "12.5", "allergyProbability": "9.9", "symptoms": []}`
	result, _ := reconcile(raw)
	require.Equal(t, 12, result.SicknessProbability)
	require.Equal(t, 9, *result.AllergyProbability)
}

func TestReconcileUnknownEnumValues(t *testing.T) {
	raw := `{"sicknessProbability": 20, "symptoms": [], "severity": "catastrophic", "dischargeType": "green"}`
	result, _ := reconcile(raw)
	require.Equal(t, SeverityUnknown, result.Severity)
	require.Equal(t, DischargeUnknown, result.DischargeType)
}

func TestReconcileIdempotent(t *testing.T) {
	first, salvaged := reconcile(wellFormed)
	require.False(t, salvaged)

	encoded, err := json.Marshal(first)
	require.NoError(t, err)

	second, salvaged := reconcile(string(encoded))
	require.False(t, salvaged)
	require.Equal(t, first, second)
}

func TestReconcileRandomizedInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	severities := []string{"none", "mild", "moderate", "severe", "bogus", ""}
	discharges := []string{"none", "clear", "purulent", "unknown", "weird"}

	for i := 0; i < 200; i++ {
		sick := rng.Intn(241) - 20
		allergy := rng.Intn(241) - 20
		raw := fmt.Sprintf(
			`{"sicknessProbability": %d, "allergyProbability": %d, "symptoms": ["s%d"], "severity": %q, "shouldSeeDoctor": %t, "isUnilateral": %t, "dischargeType": %q}`,
			sick, allergy, i, severities[rng.Intn(len(severities))], rng.Intn(2) == 0, rng.Intn(2) == 0, discharges[rng.Intn(len(discharges))],
		)

		result, _ := reconcile(raw)
		require.GreaterOrEqual(t, result.SicknessProbability, 0)
		require.LessOrEqual(t, result.SicknessProbability, 100)
		require.NotNil(t, result.AllergyProbability)
		require.GreaterOrEqual(t, *result.AllergyProbability, 0)
		require.LessOrEqual(t, *result.AllergyProbability, result.SicknessProbability)
		if result.IsUnilateral || result.DischargeType == DischargePurulent {
			require.True(t, result.ShouldSeeDoctor)
		}
		require.Contains(t, []Severity{SeverityNone, SeverityMild, SeverityModerate, SeveritySevere, SeverityUnknown}, result.Severity)
		require.Contains(t, []DischargeType{DischargeNone, DischargeClear, DischargePurulent, DischargeUnknown}, result.DischargeType)
	}
}
