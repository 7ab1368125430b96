package weather

import (
	"context"
	"errors"
)

// Sentinel errors shared between the store, the service and the HTTP layer.
var (
	// ErrNotFound is returned when a location or a dated row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateLocation is returned when a location with the same
	// (name, country, region) already exists.
	ErrDuplicateLocation = errors.New("location already exists")

	// ErrProviderUnavailable wraps any external provider failure: network
	// error, non-2xx status, malformed payload or an open circuit breaker.
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// CurrentConditions is the provider's normalized view of the weather right
// now at a location.
type CurrentConditions struct {
	TempC         float64
	Humidity      float64
	WindKph       float64
	WindDir       string
	PressureMb    float64
	PrecipMM      float64
	VisibilityKm  float64
	UVIndex       float64
	ConditionText string
	ConditionIcon string
}

// Astronomy holds sun and moon data for a single day. Times are "HH:MM"
// 24-hour strings; empty when the provider reports no event (polar regions).
type Astronomy struct {
	Sunrise          string
	Sunset           string
	Moonrise         string
	Moonset          string
	MoonPhase        string
	MoonIllumination float64
}

// ForecastDay is one projected day from the provider's forecast window.
type ForecastDay struct {
	Date            string
	HighTemp        float64
	LowTemp         float64
	PrecipitationMM float64
	Humidity        float64
	WindKph         float64
	ConditionText   string
	ConditionIcon   string
	ChanceOfRain    int
}

// ResolvedLocation is the provider's canonical identification of the queried
// place, used to fill in missing coordinates on first collection.
type ResolvedLocation struct {
	Name      string
	Country   string
	Region    string
	Latitude  float64
	Longitude float64
	Timezone  string
}

// Observation bundles everything a single forecast call yields: current
// conditions, today's astronomy, and the multi-day forecast window.
type Observation struct {
	Location ResolvedLocation
	Current  CurrentConditions
	Astro    Astronomy
	Forecast []ForecastDay
}

// HistoricalDay is one past day's weather as reported by the provider's
// history endpoint, used by the backfill command.
type HistoricalDay struct {
	Date            string
	HighTemp        float64
	LowTemp         float64
	AvgTemp         float64
	PrecipitationMM float64
	Humidity        float64
	WindKph         float64
	ConditionText   string
	ConditionIcon   string
	Astro           Astronomy
}

// WeatherProvider abstracts the external weather API (WeatherAPI.com).
// Every call is a single synchronous request; failures surface as
// ErrProviderUnavailable and are never retried.
type WeatherProvider interface {
	// FetchCurrentAndForecast returns current conditions, astronomy and the
	// forecast window for a free-form location query.
	FetchCurrentAndForecast(ctx context.Context, query string, days int) (Observation, error)

	// SearchLocations returns candidate locations matching a query.
	SearchLocations(ctx context.Context, query string) ([]Candidate, error)

	// FetchHistory returns a past day's weather for a location query.
	FetchHistory(ctx context.Context, query, date string) (HistoricalDay, error)
}

// TideProvider abstracts the NOAA CO-OPS tide prediction API.
type TideProvider interface {
	// FetchTides returns the predicted high/low events for a station and
	// date, ascending by time.
	FetchTides(ctx context.Context, stationID, date string) ([]TideEvent, error)

	// FindNearestStation returns the id of the closest tide-prediction
	// station, or "" when none is close enough to be useful.
	FindNearestStation(ctx context.Context, lat, lon float64) (string, error)
}

// Store is the contract the SQLite store must satisfy. Dates are
// DateLayout-formatted strings throughout.
type Store interface {
	CreateLocation(loc Location) (Location, error)
	GetLocation(id int64) (Location, error)
	ListLocations() ([]Location, error)
	DeleteLocation(id int64) error
	SetCoordinates(id int64, lat, lon float64, timezone string) error
	SetTideStation(id int64, stationID string) error

	HasDailyWeather(locationID int64, date string) (bool, error)
	InsertDailyWeather(dw DailyWeather) error
	GetDailyWeather(locationID int64, date string) (DailyWeather, error)
	History(locationID int64, days int) ([]DailyWeather, error)
	CollectedDates(locationID int64, start, end string) ([]string, error)
	WeeklyAverage(locationID int64, endDate string) (WeeklyAverage, error)

	UpsertMoonPhase(mp MoonPhase) error
	GetMoonPhase(locationID int64, date string) (MoonPhase, error)

	UpsertForecast(f Forecast) error
	ListForecasts(locationID int64, afterDate string, limit int) ([]Forecast, error)

	HasTides(locationID int64, date string) (bool, error)
	InsertTides(locationID int64, date string, events []TideEvent) error
	ListTides(locationID int64, date string) ([]TideEvent, error)
}
