package googlepollen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wellora/wellcheck/internal/domain/environment"
)

const defaultBaseURL = "https://pollen.googleapis.com/v1"

// Client fetches pollen forecasts from the Google Pollen API.
type Client struct {
	baseURL    string
	apiKey     string
	days       int
	httpClient *http.Client
}

// NewClient builds an API client. An empty key is tolerated here so the
// service can start without pollen access; Forecast reports the missing key
// per request and the caller degrades to an environmental error summary.
func NewClient(baseURL, apiKey string, days int, timeout time.Duration) *Client {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = defaultBaseURL
	}
	if days <= 0 {
		days = 5
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		days:    days,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Forecast retrieves the multi-day pollen forecast for a coordinate.
func (c *Client) Forecast(ctx context.Context, lat, lon float64) (environment.Forecast, error) {
	if c.apiKey == "" {
		return environment.Forecast{}, errors.New("pollen api key not configured")
	}

	query := url.Values{}
	query.Set("key", c.apiKey)
	query.Set("location.latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("location.longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	query.Set("days", strconv.Itoa(c.days))
	endpoint := fmt.Sprintf("%s/forecast:lookup?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return environment.Forecast{}, fmt.Errorf("build pollen request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return environment.Forecast{}, fmt.Errorf("pollen request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return environment.Forecast{}, fmt.Errorf("pollen request error: status=%d body=%s", resp.StatusCode, string(payload))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return environment.Forecast{}, fmt.Errorf("read pollen response: %w", err)
	}

	var raw apiResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return environment.Forecast{}, fmt.Errorf("decode pollen response: %w", err)
	}

	return normalizeDailyInfo(raw.DailyInfo), nil
}

type apiResponse struct {
	DailyInfo []dailyInfo `json:"dailyInfo"`
}

type dailyInfo struct {
	Date           apiDate     `json:"date"`
	PollenTypeInfo []typeInfo  `json:"pollenTypeInfo"`
	PlantInfo      []plantInfo `json:"plantInfo"`
}

type apiDate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

type typeInfo struct {
	Code      string     `json:"code"`
	IndexInfo *indexInfo `json:"indexInfo"`
}

type plantInfo struct {
	Code        string     `json:"code"`
	DisplayName string     `json:"displayName"`
	IndexInfo   *indexInfo `json:"indexInfo"`
	PlantDesc   *plantDesc `json:"plantDescription"`
	InSeason    bool       `json:"inSeason"`
}

type plantDesc struct {
	Type string `json:"type"`
}

type indexInfo struct {
	Value float64 `json:"value"`
}

func normalizeDailyInfo(days []dailyInfo) environment.Forecast {
	forecast := environment.Forecast{Days: make([]environment.ForecastDay, 0, len(days))}
	for _, day := range days {
		out := environment.ForecastDay{
			Date:   fmt.Sprintf("%04d-%02d-%02d", day.Date.Year, day.Date.Month, day.Date.Day),
			Types:  make([]environment.TypeReading, 0, len(day.PollenTypeInfo)),
			Plants: make([]environment.PlantReading, 0, len(day.PlantInfo)),
		}
		for _, info := range day.PollenTypeInfo {
			typ, ok := allergenTypeFromCode(info.Code)
			if !ok {
				continue
			}
			out.Types = append(out.Types, environment.TypeReading{
				Type:  typ,
				Index: indexValue(info.IndexInfo),
			})
		}
		for _, plant := range day.PlantInfo {
			typ, _ := allergenTypeFromCode(plantType(plant))
			out.Plants = append(out.Plants, environment.PlantReading{
				Code:        plant.Code,
				DisplayName: plantName(plant),
				Type:        typ,
				Index:       indexValue(plant.IndexInfo),
				InSeason:    plant.InSeason,
			})
		}
		forecast.Days = append(forecast.Days, out)
	}
	return forecast
}

func allergenTypeFromCode(code string) (environment.AllergenType, bool) {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "TREE":
		return environment.AllergenTree, true
	case "GRASS":
		return environment.AllergenGrass, true
	case "WEED":
		return environment.AllergenWeed, true
	default:
		return "", false
	}
}

func plantType(plant plantInfo) string {
	if plant.PlantDesc != nil {
		return plant.PlantDesc.Type
	}
	return ""
}

func plantName(plant plantInfo) string {
	if strings.TrimSpace(plant.DisplayName) != "" {
		return plant.DisplayName
	}
	return plant.Code
}

func indexValue(info *indexInfo) float64 {
	if info == nil {
		return 0
	}
	return info.Value
}
