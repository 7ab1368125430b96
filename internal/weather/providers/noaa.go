package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/tseneadza/weather/internal/weather"
)

const (
	// DefaultNOAABase is the production CO-OPS data endpoint.
	DefaultNOAABase = "https://api.tidesandcurrents.noaa.gov/api/prod/datagetter"

	// defaultStationsURL lists tide-prediction stations with coordinates.
	defaultStationsURL = "https://api.tidesandcurrents.noaa.gov/mdapi/prod/webapi/stations.json"

	// maxStationDegrees bounds the nearest-station search; beyond roughly
	// one degree the prediction is not meaningful for the location.
	maxStationDegrees = 1.0
)

// NOAA implements weather.TideProvider using the NOAA CO-OPS API.
type NOAA struct {
	baseURL     string
	stationsURL string
	client      *http.Client
	circuit     *gobreaker.CircuitBreaker
}

// NewNOAA creates a NOAA CO-OPS client. baseURL may be empty to use the
// production endpoint.
func NewNOAA(client *http.Client, baseURL string) *NOAA {
	if baseURL == "" {
		baseURL = DefaultNOAABase
	}
	return &NOAA{
		baseURL:     baseURL,
		stationsURL: defaultStationsURL,
		client:      client,
		circuit:     newBreaker("noaa"),
	}
}

type tideResponse struct {
	Predictions []struct {
		Time   string `json:"t"`
		Height string `json:"v"` // NOAA returns this as a string
		Type   string `json:"type"` // "H" or "L"
	} `json:"predictions"`
}

// FetchTides returns predicted high/low events for a station and date,
// ascending by time.
func (c *NOAA) FetchTides(ctx context.Context, stationID, date string) ([]weather.TideEvent, error) {
	day, err := time.Parse(weather.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}
	compact := day.Format("20060102")

	buildRequest := func() (*http.Request, error) {
		params := url.Values{}
		params.Set("product", "predictions")
		params.Set("application", "tseneadza.weather")
		params.Set("datum", "MLLW")
		params.Set("station", stationID)
		params.Set("begin_date", compact)
		params.Set("end_date", compact)
		params.Set("time_zone", "lst_ldt")
		params.Set("units", "metric")
		params.Set("interval", "hilo")
		params.Set("format", "json")

		u := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, c.client, c.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload tideResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decoding tide response: %v", weather.ErrProviderUnavailable, err)
	}

	events := make([]weather.TideEvent, 0, len(payload.Predictions))
	for _, pred := range payload.Predictions {
		eventTime, err := time.Parse("2006-01-02 15:04", pred.Time)
		if err != nil {
			continue // skip malformed rows
		}
		height, err := strconv.ParseFloat(pred.Height, 64)
		if err != nil {
			continue
		}

		tideType := weather.TideLow
		if pred.Type == "H" {
			tideType = weather.TideHigh
		}

		events = append(events, weather.TideEvent{
			Time:         eventTime.Format("15:04"),
			Type:         tideType,
			HeightMeters: height,
		})
	}

	return events, nil
}

type stationsResponse struct {
	Stations []struct {
		ID   string  `json:"id"`
		Name string  `json:"name"`
		Lat  float64 `json:"lat"`
		Lng  float64 `json:"lng"`
	} `json:"stations"`
}

// FindNearestStation returns the closest tide-prediction station to the
// coordinates, or "" when no station lies within maxStationDegrees.
func (c *NOAA) FindNearestStation(ctx context.Context, lat, lon float64) (string, error) {
	buildRequest := func() (*http.Request, error) {
		params := url.Values{}
		params.Set("type", "tidepredictions")
		params.Set("units", "metric")

		u := fmt.Sprintf("%s?%s", c.stationsURL, params.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, c.client, c.circuit, buildRequest)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var payload stationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: decoding stations response: %v", weather.ErrProviderUnavailable, err)
	}

	var (
		nearest string
		minDist = maxStationDegrees * maxStationDegrees
	)
	for _, st := range payload.Stations {
		dLat := lat - st.Lat
		dLon := lon - st.Lng
		dist := dLat*dLat + dLon*dLon
		if dist < minDist {
			minDist = dist
			nearest = st.ID
		}
	}

	return nearest, nil
}
