package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/tseneadza/weather/internal/weather"
)

// DefaultWeatherAPIBase is the production WeatherAPI.com endpoint.
const DefaultWeatherAPIBase = "https://api.weatherapi.com/v1"

// WeatherAPI implements weather.WeatherProvider for WeatherAPI.com.
type WeatherAPI struct {
	apiKey  string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

// NewWeatherAPI creates a WeatherAPI.com client. baseURL may be empty to use
// the production endpoint.
func NewWeatherAPI(client *http.Client, apiKey, baseURL string) *WeatherAPI {
	if baseURL == "" {
		baseURL = DefaultWeatherAPIBase
	}
	return &WeatherAPI{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  client,
		circuit: newBreaker("weatherapi"),
	}
}

// flexFloat tolerates WeatherAPI returning the same field as either a JSON
// number or a quoted string (moon_illumination does both across endpoints).
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

type conditionPayload struct {
	Text string `json:"text"`
	Icon string `json:"icon"`
}

type locationPayload struct {
	Name    string  `json:"name"`
	Region  string  `json:"region"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	TzID    string  `json:"tz_id"`
}

type dayPayload struct {
	MaxTempC      float64          `json:"maxtemp_c"`
	MinTempC      float64          `json:"mintemp_c"`
	AvgTempC      float64          `json:"avgtemp_c"`
	TotalPrecipMM float64          `json:"totalprecip_mm"`
	AvgHumidity   float64          `json:"avghumidity"`
	MaxWindKph    float64          `json:"maxwind_kph"`
	ChanceOfRain  flexFloat        `json:"daily_chance_of_rain"`
	Condition     conditionPayload `json:"condition"`
}

type astroPayload struct {
	Sunrise          string    `json:"sunrise"`
	Sunset           string    `json:"sunset"`
	Moonrise         string    `json:"moonrise"`
	Moonset          string    `json:"moonset"`
	MoonPhase        string    `json:"moon_phase"`
	MoonIllumination flexFloat `json:"moon_illumination"`
}

type forecastDayPayload struct {
	Date  string       `json:"date"`
	Day   dayPayload   `json:"day"`
	Astro astroPayload `json:"astro"`
}

// FetchCurrentAndForecast requests forecast.json, which carries the current
// conditions, today's astronomy and the forecast window in one call.
func (p *WeatherAPI) FetchCurrentAndForecast(ctx context.Context, query string, days int) (weather.Observation, error) {
	if p.apiKey == "" {
		return weather.Observation{}, fmt.Errorf("%w: weatherapi key is not configured", weather.ErrProviderUnavailable)
	}
	if days < 1 {
		days = 1
	}
	if days > 14 {
		days = 14
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		values.Set("q", query)
		values.Set("days", strconv.Itoa(days))
		values.Set("aqi", "no")
		values.Set("alerts", "no")

		u := fmt.Sprintf("%s/forecast.json?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, p.client, p.circuit, buildRequest)
	if err != nil {
		return weather.Observation{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Location locationPayload `json:"location"`
		Current  struct {
			TempC      float64          `json:"temp_c"`
			Humidity   float64          `json:"humidity"`
			WindKph    float64          `json:"wind_kph"`
			WindDir    string           `json:"wind_dir"`
			PressureMb float64          `json:"pressure_mb"`
			PrecipMM   float64          `json:"precip_mm"`
			VisKm      float64          `json:"vis_km"`
			UV         float64          `json:"uv"`
			Condition  conditionPayload `json:"condition"`
		} `json:"current"`
		Forecast struct {
			ForecastDay []forecastDayPayload `json:"forecastday"`
		} `json:"forecast"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Observation{}, fmt.Errorf("%w: decoding forecast response: %v", weather.ErrProviderUnavailable, err)
	}

	obs := weather.Observation{
		Location: weather.ResolvedLocation{
			Name:      payload.Location.Name,
			Country:   payload.Location.Country,
			Region:    payload.Location.Region,
			Latitude:  payload.Location.Lat,
			Longitude: payload.Location.Lon,
			Timezone:  payload.Location.TzID,
		},
		Current: weather.CurrentConditions{
			TempC:         payload.Current.TempC,
			Humidity:      payload.Current.Humidity,
			WindKph:       payload.Current.WindKph,
			WindDir:       payload.Current.WindDir,
			PressureMb:    payload.Current.PressureMb,
			PrecipMM:      payload.Current.PrecipMM,
			VisibilityKm:  payload.Current.VisKm,
			UVIndex:       payload.Current.UV,
			ConditionText: payload.Current.Condition.Text,
			ConditionIcon: payload.Current.Condition.Icon,
		},
	}

	for i, day := range payload.Forecast.ForecastDay {
		if i == 0 {
			obs.Astro = toAstronomy(day.Astro)
		}
		obs.Forecast = append(obs.Forecast, weather.ForecastDay{
			Date:            day.Date,
			HighTemp:        day.Day.MaxTempC,
			LowTemp:         day.Day.MinTempC,
			PrecipitationMM: day.Day.TotalPrecipMM,
			Humidity:        day.Day.AvgHumidity,
			WindKph:         day.Day.MaxWindKph,
			ConditionText:   day.Day.Condition.Text,
			ConditionIcon:   day.Day.Condition.Icon,
			ChanceOfRain:    int(day.Day.ChanceOfRain),
		})
	}

	return obs, nil
}

// SearchLocations requests search.json and maps the candidates.
func (p *WeatherAPI) SearchLocations(ctx context.Context, query string) ([]weather.Candidate, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: weatherapi key is not configured", weather.ErrProviderUnavailable)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		values.Set("q", query)

		u := fmt.Sprintf("%s/search.json?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, p.client, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload []locationPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decoding search response: %v", weather.ErrProviderUnavailable, err)
	}

	candidates := make([]weather.Candidate, 0, len(payload))
	for _, loc := range payload {
		candidates = append(candidates, weather.Candidate{
			Name:      loc.Name,
			Country:   loc.Country,
			Region:    loc.Region,
			Latitude:  loc.Lat,
			Longitude: loc.Lon,
			Timezone:  loc.TzID,
		})
	}
	return candidates, nil
}

// FetchHistory requests history.json for a single past date.
func (p *WeatherAPI) FetchHistory(ctx context.Context, query, date string) (weather.HistoricalDay, error) {
	if p.apiKey == "" {
		return weather.HistoricalDay{}, fmt.Errorf("%w: weatherapi key is not configured", weather.ErrProviderUnavailable)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		values.Set("q", query)
		values.Set("dt", date)
		values.Set("aqi", "no")

		u := fmt.Sprintf("%s/history.json?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, p.client, p.circuit, buildRequest)
	if err != nil {
		return weather.HistoricalDay{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Forecast struct {
			ForecastDay []forecastDayPayload `json:"forecastday"`
		} `json:"forecast"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.HistoricalDay{}, fmt.Errorf("%w: decoding history response: %v", weather.ErrProviderUnavailable, err)
	}
	if len(payload.Forecast.ForecastDay) == 0 {
		return weather.HistoricalDay{}, fmt.Errorf("%w: no history returned for %s", weather.ErrProviderUnavailable, date)
	}

	day := payload.Forecast.ForecastDay[0]
	return weather.HistoricalDay{
		Date:            day.Date,
		HighTemp:        day.Day.MaxTempC,
		LowTemp:         day.Day.MinTempC,
		AvgTemp:         day.Day.AvgTempC,
		PrecipitationMM: day.Day.TotalPrecipMM,
		Humidity:        day.Day.AvgHumidity,
		WindKph:         day.Day.MaxWindKph,
		ConditionText:   day.Day.Condition.Text,
		ConditionIcon:   day.Day.Condition.Icon,
		Astro:           toAstronomy(day.Astro),
	}, nil
}

func toAstronomy(a astroPayload) weather.Astronomy {
	return weather.Astronomy{
		Sunrise:          parseClock(a.Sunrise),
		Sunset:           parseClock(a.Sunset),
		Moonrise:         parseClock(a.Moonrise),
		Moonset:          parseClock(a.Moonset),
		MoonPhase:        a.MoonPhase,
		MoonIllumination: float64(a.MoonIllumination),
	}
}

// parseClock converts WeatherAPI's "06:45 AM" times to 24-hour "HH:MM".
// Unparseable values ("No moonrise") map to empty.
func parseClock(s string) string {
	t, err := time.Parse("03:04 PM", strings.TrimSpace(s))
	if err != nil {
		return ""
	}
	return t.Format("15:04")
}
