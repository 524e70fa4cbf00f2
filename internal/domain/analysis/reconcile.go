package analysis

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// reconcile turns raw model output into a usable InferenceResult. Models
// under token pressure emit fenced, truncated, or otherwise broken JSON, so
// parsing degrades through three tiers instead of failing:
//
//  1. extract the first balanced JSON object and parse it strictly
//  2. repair common damage (raw newlines inside strings, trailing commas,
//     missing closing braces) and parse again
//  3. rescue individual fields with per-field patterns, defaulting the rest
//
// The second return value reports whether tier 2 or 3 was needed. Every
// result, whichever tier produced it, passes through the same finalize
// step that clamps ranges and enforces cross-field consistency.
func reconcile(raw string) (InferenceResult, bool) {
	span := jsonSpan(raw)

	if span != "" {
		if result, ok := parseStrict(span); ok {
			return finalize(result), false
		}
		if result, ok := parseStrict(repairJSON(span)); ok {
			return finalize(result), true
		}
	}

	return finalize(extractFields(raw)), true
}

// jsonSpan returns the first balanced JSON object in raw, scanning string
// content so braces inside values do not confuse the depth count. An
// unbalanced tail (truncated output) returns from the first brace to the
// end for the repair tier to finish.
func jsonSpan(raw string) string {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == '{':
			depth++
		case !inString && c == '}':
			depth--
			if depth == 0 {
				return raw[start : i+1]
			}
		}
	}
	return raw[start:]
}

type wireResult struct {
	SicknessProbability  json.RawMessage `json:"sicknessProbability"`
	AllergyProbability   json.RawMessage `json:"allergyProbability"`
	Symptoms             json.RawMessage `json:"symptoms"`
	EyeAnalysis          json.RawMessage `json:"eyeAnalysis"`
	EnvironmentalFactors json.RawMessage `json:"environmentalFactors"`
	Recommendations      json.RawMessage `json:"recommendations"`
	Severity             json.RawMessage `json:"severity"`
	ShouldSeeDoctor      json.RawMessage `json:"shouldSeeDoctor"`
	IsUnilateral         json.RawMessage `json:"isUnilateral"`
	DischargeType        json.RawMessage `json:"dischargeType"`
}

func parseStrict(span string) (InferenceResult, bool) {
	var wire wireResult
	if err := json.Unmarshal([]byte(span), &wire); err != nil {
		return InferenceResult{}, false
	}

	result := InferenceResult{
		SicknessProbability:  coerceInt(wire.SicknessProbability, 0),
		Symptoms:             coerceStrings(wire.Symptoms),
		EyeAnalysis:          coerceString(wire.EyeAnalysis),
		EnvironmentalFactors: coerceString(wire.EnvironmentalFactors),
		Recommendations:      coerceString(wire.Recommendations),
		Severity:             Severity(coerceString(wire.Severity)),
		ShouldSeeDoctor:      coerceBool(wire.ShouldSeeDoctor),
		IsUnilateral:         coerceBool(wire.IsUnilateral),
		DischargeType:        DischargeType(coerceString(wire.DischargeType)),
	}
	if wire.AllergyProbability != nil && string(wire.AllergyProbability) != "null" {
		v := coerceInt(wire.AllergyProbability, 0)
		result.AllergyProbability = &v
	}
	return result, true
}

// repairJSON fixes the damage most often seen in model output. Each pass is
// string-aware so repairs never touch legitimate value content.
func repairJSON(span string) string {
	return closeDangling(stripTrailingCommas(escapeRawNewlines(span)))
}

func escapeRawNewlines(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			b.WriteByte(c)
			escaped = false
			continue
		}
		switch {
		case inString && c == '\\':
			b.WriteByte(c)
			escaped = true
		case c == '"':
			inString = !inString
			b.WriteByte(c)
		case inString && c == '\n':
			b.WriteString(`\n`)
		case inString && c == '\r':
			b.WriteString(`\r`)
		case inString && c == '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func stripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			b.WriteByte(c)
			escaped = false
			continue
		}
		if inString {
			if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			b.WriteByte(c)
			continue
		}
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\n' || s[j] == '\r' || s[j] == '\t') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// closeDangling terminates a truncated object: closes an open string, drops
// a dangling comma or colon, then appends the missing closers in order.
func closeDangling(s string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && (c == '{' || c == '['):
			stack = append(stack, c)
		case !inString && (c == '}' || c == ']'):
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	out := s
	if inString {
		out += `"`
	}
	trimmed := strings.TrimRight(out, " \n\r\t")
	if strings.HasSuffix(trimmed, ",") || strings.HasSuffix(trimmed, ":") {
		out = trimmed[:len(trimmed)-1]
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			out += "}"
		} else {
			out += "]"
		}
	}
	return out
}

var (
	sicknessPattern    = regexp.MustCompile(`"sicknessProbability"\s*:\s*(\d+)`)
	allergyPattern     = regexp.MustCompile(`"allergyProbability"\s*:\s*(\d+)`)
	symptomsPattern    = regexp.MustCompile(`"symptoms"\s*:\s*\[([\s\S]*?)\]`)
	symptomItemPattern = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)
	eyePattern         = regexp.MustCompile(`"eyeAnalysis"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	envPattern         = regexp.MustCompile(`"environmentalFactors"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	recsPattern        = regexp.MustCompile(`"recommendations"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	severityPattern    = regexp.MustCompile(`"severity"\s*:\s*"([^"]*)"`)
	dischargePattern   = regexp.MustCompile(`"dischargeType"\s*:\s*"([^"]*)"`)
	doctorTruePattern  = regexp.MustCompile(`"shouldSeeDoctor"\s*:\s*(?:true|1)\b`)
	unilateralPattern  = regexp.MustCompile(`"isUnilateral"\s*:\s*(?:true|1)\b`)
)

// extractFields is the last resort: pull whatever individual fields are
// recognizable out of the wreckage and default everything else.
func extractFields(raw string) InferenceResult {
	result := InferenceResult{
		SicknessProbability:  matchInt(sicknessPattern, raw),
		Symptoms:             matchSymptoms(raw),
		EyeAnalysis:          matchString(eyePattern, raw),
		EnvironmentalFactors: matchString(envPattern, raw),
		Recommendations:      matchString(recsPattern, raw),
		Severity:             Severity(matchString(severityPattern, raw)),
		DischargeType:        DischargeType(matchString(dischargePattern, raw)),
		ShouldSeeDoctor:      doctorTruePattern.MatchString(raw),
		IsUnilateral:         unilateralPattern.MatchString(raw),
	}
	if m := allergyPattern.FindStringSubmatch(raw); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			result.AllergyProbability = &v
		}
	}
	return result
}

func matchInt(pattern *regexp.Regexp, raw string) int {
	m := pattern.FindStringSubmatch(raw)
	if m == nil {
		return 0
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return v
}

func matchString(pattern *regexp.Regexp, raw string) string {
	m := pattern.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(strings.ReplaceAll(m[1], `\"`, `"`))
}

func matchSymptoms(raw string) []string {
	m := symptomsPattern.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	items := symptomItemPattern.FindAllStringSubmatch(m[1], -1)
	symptoms := make([]string, 0, len(items))
	for _, item := range items {
		clean := strings.TrimSpace(strings.ReplaceAll(item[1], `\"`, `"`))
		if clean != "" {
			symptoms = append(symptoms, clean)
		}
	}
	return symptoms
}

// finalize normalizes and reconciles a parsed result regardless of which
// tier produced it. Probabilities land in [0,100], the allergy share never
// exceeds the overall likelihood, enum fields collapse to their known
// values, and findings that warrant medical attention force the doctor
// recommendation.
func finalize(result InferenceResult) InferenceResult {
	result.SicknessProbability = clampPercent(result.SicknessProbability)
	if result.AllergyProbability != nil {
		v := clampPercent(*result.AllergyProbability)
		if v > result.SicknessProbability {
			v = result.SicknessProbability
		}
		result.AllergyProbability = &v
	}

	if result.Symptoms == nil {
		result.Symptoms = []string{}
	}
	result.Severity = normalizeSeverity(result.Severity)
	result.DischargeType = normalizeDischarge(result.DischargeType)

	if result.IsUnilateral || result.DischargeType == DischargePurulent {
		result.ShouldSeeDoctor = true
	}
	return result
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func normalizeSeverity(s Severity) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(string(s)))) {
	case SeverityNone:
		return SeverityNone
	case SeverityMild:
		return SeverityMild
	case SeverityModerate:
		return SeverityModerate
	case SeveritySevere:
		return SeveritySevere
	default:
		return SeverityUnknown
	}
}

func normalizeDischarge(d DischargeType) DischargeType {
	switch DischargeType(strings.ToLower(strings.TrimSpace(string(d)))) {
	case DischargeNone:
		return DischargeNone
	case DischargeClear:
		return DischargeClear
	case DischargePurulent:
		return DischargePurulent
	default:
		return DischargeUnknown
	}
}

func coerceInt(raw json.RawMessage, fallback int) int {
	if raw == nil {
		return fallback
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int(n)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return int(v)
		}
	}
	return fallback
}

func coerceBool(raw json.RawMessage) bool {
	if raw == nil {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		trimmed := strings.TrimSpace(s)
		if strings.EqualFold(trimmed, "true") {
			return true
		}
		if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return n != 0
		}
		return false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n != 0
	}
	return false
}

func coerceString(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return ""
}

func coerceStrings(raw json.RawMessage) []string {
	if raw == nil {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		if single := coerceString(raw); single != "" {
			return []string{single}
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := coerceString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
