package environment

// AllergenType is one of the pollen categories tracked by the forecast.
type AllergenType string

const (
	AllergenTree  AllergenType = "tree"
	AllergenGrass AllergenType = "grass"
	AllergenWeed  AllergenType = "weed"
)

// AllTypes returns the recognized allergen types in render order.
func AllTypes() []AllergenType {
	return []AllergenType{AllergenTree, AllergenGrass, AllergenWeed}
}

// Level is a bucketed pollen severity derived from the 0-5 index scale.
type Level string

const (
	LevelNone     Level = "none"
	LevelLow      Level = "low"
	LevelModerate Level = "moderate"
	LevelHigh     Level = "high"
	LevelVeryHigh Level = "very_high"
)

// LevelForIndex buckets a pollen index onto the severity scale.
func LevelForIndex(index float64) Level {
	switch {
	case index < 1:
		return LevelNone
	case index < 2:
		return LevelLow
	case index < 3:
		return LevelModerate
	case index < 4:
		return LevelHigh
	default:
		return LevelVeryHigh
	}
}

// Forecast is the normalized multi-day pollen forecast fetched from upstream.
type Forecast struct {
	Days []ForecastDay
}

// ForecastDay holds one day of per-type indices and plant observations.
type ForecastDay struct {
	Date   string
	Types  []TypeReading
	Plants []PlantReading
}

// TypeReading is the daily index for one allergen type.
type TypeReading struct {
	Type  AllergenType
	Index float64
}

// PlantReading is the daily index for a specific plant.
type PlantReading struct {
	Code        string
	DisplayName string
	Type        AllergenType
	Index       float64
	InSeason    bool
}

// Summary is what the rest of the system consumes. It carries either pollen
// data or an error reason, never both.
type Summary struct {
	Pollen *PollenSummary `json:"pollen,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// ErrorSummary wraps an upstream failure reason as a degraded summary.
func ErrorSummary(reason string) Summary {
	return Summary{Error: reason}
}

// PollenSummary is the fixed schema derived from a forecast.
type PollenSummary struct {
	Level             Level                        `json:"pollenLevel"`
	MaxIndex          float64                      `json:"maxPollenIndex"`
	Types             map[AllergenType]TypeSummary `json:"types"`
	DominantAllergens []Allergen                   `json:"dominantAllergens"`
	PlantsInSeason    []Plant                      `json:"plantsInSeason"`
	Risk              Risk                         `json:"allergyRisk"`
}

// TypeSummary is the current level plus the forecast index sequence for one
// allergen type.
type TypeSummary struct {
	Level    Level     `json:"level"`
	Index    float64   `json:"index"`
	Forecast []float64 `json:"forecast"`
}

// Allergen identifies a dominant allergen and its peak observed index.
type Allergen struct {
	Name  string       `json:"name"`
	Type  AllergenType `json:"type"`
	Index float64      `json:"index"`
	Level Level        `json:"level"`
}

// Plant is an in-season plant reported for the first forecast day.
type Plant struct {
	Name     string  `json:"name"`
	Index    float64 `json:"index"`
	InSeason bool    `json:"inSeason"`
}

// Risk is the derived allergy risk on a 0-100 scale.
type Risk struct {
	Score int   `json:"score"`
	Level Level `json:"level"`
}
