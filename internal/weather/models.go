package weather

import (
	"fmt"
	"time"
)

// DateLayout is the canonical wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// Today returns the server-local calendar date. Freshness checks are keyed
// on this value, so the collection boundary is the server's midnight.
func Today() string {
	return time.Now().Format(DateLayout)
}

// Location is a user-registered place tracked for weather and tide
// collection. TideStationID is the NOAA station used for tide predictions
// and is empty for locations without one (non-US locations).
type Location struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Country       string  `json:"country"`
	Region        string  `json:"region"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Timezone      string  `json:"timezone"`
	TideStationID string  `json:"tide_station_id,omitempty"`
}

// Query returns the free-form location string sent to the weather provider,
// e.g. "Austin, Texas, United States of America".
func (l Location) Query() string {
	q := l.Name
	if l.Region != "" {
		q = fmt.Sprintf("%s, %s", q, l.Region)
	}
	if l.Country != "" {
		q = fmt.Sprintf("%s, %s", q, l.Country)
	}
	return q
}

// HasCoordinates reports whether the location has been geocoded.
func (l Location) HasCoordinates() bool {
	return l.Latitude != 0 || l.Longitude != 0
}

// DailyWeather is the observed conditions for one (location, date). Rows are
// append-only per date; the presence of a row is what marks the day as
// collected. MoonPhase/MoonIllumination are populated from the joined
// moon_phases row on reads and are not columns of daily_weather itself.
type DailyWeather struct {
	ID              int64   `json:"id"`
	LocationID      int64   `json:"location_id"`
	Date            string  `json:"date"`
	HighTemp        float64 `json:"high_temp"`
	LowTemp         float64 `json:"low_temp"`
	AvgTemp         float64 `json:"avg_temp"`
	PrecipitationMM float64 `json:"precipitation_mm"`
	Humidity        float64 `json:"humidity"`
	WindSpeedKmh    float64 `json:"wind_speed_kmh"`
	WindDirection   string  `json:"wind_direction"`
	PressureMb      float64 `json:"pressure_mb"`
	VisibilityKm    float64 `json:"visibility_km"`
	UVIndex         float64 `json:"uv_index"`
	ConditionText   string  `json:"condition_text"`
	ConditionIcon   string  `json:"condition_icon"`
	Sunrise         string  `json:"sunrise,omitempty"`
	Sunset          string  `json:"sunset,omitempty"`

	MoonPhase        string  `json:"moon_phase,omitempty"`
	MoonIllumination float64 `json:"moon_illumination,omitempty"`
}

// MoonPhase is the astronomy record for one (location, date).
// Illumination is a percentage in [0,100].
type MoonPhase struct {
	ID           int64   `json:"id"`
	LocationID   int64   `json:"location_id"`
	Date         string  `json:"date"`
	Moonrise     string  `json:"moonrise,omitempty"`
	Moonset      string  `json:"moonset,omitempty"`
	Phase        string  `json:"moon_phase"`
	Illumination float64 `json:"moon_illumination"`
}

// Forecast is a projection for one (location, forecast_date). Unlike daily
// weather it is refreshed on every collection, since projections improve as
// the date approaches.
type Forecast struct {
	ID              int64   `json:"id"`
	LocationID      int64   `json:"location_id"`
	ForecastDate    string  `json:"forecast_date"`
	HighTemp        float64 `json:"high_temp"`
	LowTemp         float64 `json:"low_temp"`
	PrecipitationMM float64 `json:"precipitation_mm"`
	Humidity        float64 `json:"humidity"`
	WindSpeedKmh    float64 `json:"wind_speed_kmh"`
	ConditionText   string  `json:"condition_text"`
	ConditionIcon   string  `json:"condition_icon"`
	ChanceOfRain    int     `json:"chance_of_rain"`
}

// TideType tags a tide event as high or low water.
type TideType string

const (
	TideHigh TideType = "high"
	TideLow  TideType = "low"
)

// TideEvent is a single predicted high or low tide. A day typically has
// three or four events, so (location, date) is a lookup key rather than a
// uniqueness key.
type TideEvent struct {
	ID           int64    `json:"id,omitempty"`
	LocationID   int64    `json:"location_id,omitempty"`
	Date         string   `json:"date,omitempty"`
	Time         string   `json:"time"`
	Type         TideType `json:"tide_type"`
	HeightMeters float64  `json:"height_meters"`
}

// WeeklyAverage summarizes stored history over the trailing seven calendar
// days (six days prior plus today).
type WeeklyAverage struct {
	AvgHigh   float64 `json:"avg_high"`
	AvgLow    float64 `json:"avg_low"`
	DaysCount int     `json:"days_count"`
	StartDate string  `json:"start_date"`
	EndDate   string  `json:"end_date"`
}

// Candidate is a location suggestion returned by the provider's search
// endpoint. It carries everything needed to register the location locally.
type Candidate struct {
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Region    string  `json:"region"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
}
