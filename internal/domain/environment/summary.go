package environment

import "sort"

const (
	maxDominantAllergens = 3
	maxPlantsInSeason    = 5
	dominantIndexFloor   = 2
)

// Summarize derives the fixed summary schema from a normalized forecast.
// It is a pure function; callers own error handling for the fetch itself.
func Summarize(forecast Forecast) Summary {
	if len(forecast.Days) == 0 {
		return ErrorSummary("no forecast days returned")
	}

	summary := &PollenSummary{
		Types: make(map[AllergenType]TypeSummary, 3),
	}

	maxIndex := 0.0
	for _, t := range AllTypes() {
		ts := TypeSummary{Forecast: make([]float64, 0, len(forecast.Days))}
		for dayIdx, day := range forecast.Days {
			idx := indexForType(day, t)
			ts.Forecast = append(ts.Forecast, idx)
			if dayIdx == 0 {
				ts.Index = idx
				ts.Level = LevelForIndex(idx)
			}
			if idx > maxIndex {
				maxIndex = idx
			}
		}
		summary.Types[t] = ts
	}

	summary.MaxIndex = maxIndex
	summary.Level = LevelForIndex(maxIndex)
	summary.DominantAllergens = dominantAllergens(forecast)
	summary.PlantsInSeason = plantsInSeason(forecast.Days[0])
	summary.Risk = riskFor(maxIndex)

	return Summary{Pollen: summary}
}

func indexForType(day ForecastDay, t AllergenType) float64 {
	for _, reading := range day.Types {
		if reading.Type == t {
			return reading.Index
		}
	}
	return 0
}

// dominantAllergens keeps, per allergen type, the plant with the highest
// index observed on any day, drops anything below the dominance floor, and
// orders the survivors by index descending.
func dominantAllergens(forecast Forecast) []Allergen {
	best := make(map[AllergenType]Allergen)
	for _, day := range forecast.Days {
		for _, plant := range day.Plants {
			if plant.Index < dominantIndexFloor {
				continue
			}
			current, ok := best[plant.Type]
			if !ok || plant.Index > current.Index {
				best[plant.Type] = Allergen{
					Name:  plant.DisplayName,
					Type:  plant.Type,
					Index: plant.Index,
					Level: LevelForIndex(plant.Index),
				}
			}
		}
	}

	out := make([]Allergen, 0, len(best))
	for _, a := range best {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Index != out[j].Index {
			return out[i].Index > out[j].Index
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > maxDominantAllergens {
		out = out[:maxDominantAllergens]
	}
	return out
}

// plantsInSeason reads only the first forecast day by contract: later days
// describe the future, not what the user has been exposed to.
func plantsInSeason(day ForecastDay) []Plant {
	out := make([]Plant, 0, maxPlantsInSeason)
	for _, plant := range day.Plants {
		if !plant.InSeason || plant.Index < dominantIndexFloor {
			continue
		}
		out = append(out, Plant{
			Name:     plant.DisplayName,
			Index:    plant.Index,
			InSeason: true,
		})
		if len(out) == maxPlantsInSeason {
			break
		}
	}
	return out
}

func riskFor(maxIndex float64) Risk {
	score := riskPoints(maxIndex) * 2
	return Risk{Score: score, Level: riskLevelFor(score)}
}

func riskPoints(index float64) int {
	switch {
	case index < 1:
		return 0
	case index < 2:
		return 10
	case index < 3:
		return 25
	case index < 4:
		return 40
	default:
		return 50
	}
}

func riskLevelFor(score int) Level {
	switch {
	case score < 20:
		return LevelLow
	case score < 40:
		return LevelModerate
	case score < 70:
		return LevelHigh
	default:
		return LevelVeryHigh
	}
}
