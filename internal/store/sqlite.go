// Package store persists locations and their collected weather, moon,
// forecast and tide rows in SQLite. The unique keys declared here are part
// of the ingestion contract: (location_id, date) uniqueness on daily_weather
// is what makes collection idempotent, and the cascading foreign keys make
// location deletion remove every dependent row.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tseneadza/weather/internal/weather"
)

const schema = `
CREATE TABLE IF NOT EXISTS locations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	country TEXT NOT NULL DEFAULT '',
	region TEXT NOT NULL DEFAULT '',
	latitude REAL NOT NULL DEFAULT 0,
	longitude REAL NOT NULL DEFAULT 0,
	timezone TEXT NOT NULL DEFAULT '',
	tide_station_id TEXT NOT NULL DEFAULT '',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(name, country, region)
);

CREATE TABLE IF NOT EXISTS daily_weather (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	location_id INTEGER NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
	date TEXT NOT NULL,
	high_temp REAL,
	low_temp REAL,
	avg_temp REAL,
	precipitation_mm REAL,
	humidity REAL,
	wind_speed_kmh REAL,
	wind_direction TEXT,
	pressure_mb REAL,
	visibility_km REAL,
	uv_index REAL,
	condition_text TEXT,
	condition_icon TEXT,
	sunrise TEXT,
	sunset TEXT,
	UNIQUE(location_id, date)
);

CREATE TABLE IF NOT EXISTS moon_phases (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	location_id INTEGER NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
	date TEXT NOT NULL,
	moonrise TEXT,
	moonset TEXT,
	moon_phase TEXT,
	moon_illumination REAL,
	UNIQUE(location_id, date)
);

CREATE TABLE IF NOT EXISTS forecasts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	location_id INTEGER NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
	forecast_date TEXT NOT NULL,
	high_temp REAL,
	low_temp REAL,
	precipitation_mm REAL,
	humidity REAL,
	wind_speed_kmh REAL,
	condition_text TEXT,
	condition_icon TEXT,
	chance_of_rain INTEGER,
	UNIQUE(location_id, forecast_date)
);

CREATE TABLE IF NOT EXISTS tides (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	location_id INTEGER NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
	date TEXT NOT NULL,
	time TEXT NOT NULL,
	tide_type TEXT NOT NULL,
	height_meters REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tides_location_date ON tides(location_id, date);
`

// Store is the SQLite-backed implementation of weather.Store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// ensures the schema exists. Foreign keys are enabled per connection so
// cascading deletes fire.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateLocation inserts a new location. A (name, country, region) collision
// returns weather.ErrDuplicateLocation and leaves the existing row alone.
func (s *Store) CreateLocation(loc weather.Location) (weather.Location, error) {
	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO locations (name, country, region, latitude, longitude, timezone, tide_station_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		loc.Name, loc.Country, loc.Region, loc.Latitude, loc.Longitude, loc.Timezone, loc.TideStationID,
	)
	if err != nil {
		return weather.Location{}, fmt.Errorf("inserting location: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return weather.Location{}, fmt.Errorf("checking insert result: %w", err)
	}
	if affected == 0 {
		return weather.Location{}, fmt.Errorf("location %q (%s, %s): %w", loc.Name, loc.Country, loc.Region, weather.ErrDuplicateLocation)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return weather.Location{}, fmt.Errorf("getting last insert id: %w", err)
	}
	return s.GetLocation(id)
}

// GetLocation returns a location by id.
func (s *Store) GetLocation(id int64) (weather.Location, error) {
	var loc weather.Location
	err := s.db.QueryRow(`
		SELECT id, name, country, region, latitude, longitude, timezone, tide_station_id
		FROM locations WHERE id = ?`, id,
	).Scan(&loc.ID, &loc.Name, &loc.Country, &loc.Region, &loc.Latitude, &loc.Longitude, &loc.Timezone, &loc.TideStationID)
	if errors.Is(err, sql.ErrNoRows) {
		return weather.Location{}, fmt.Errorf("location %d: %w", id, weather.ErrNotFound)
	}
	if err != nil {
		return weather.Location{}, fmt.Errorf("querying location: %w", err)
	}
	return loc, nil
}

// ListLocations returns all locations ordered by name.
func (s *Store) ListLocations() ([]weather.Location, error) {
	rows, err := s.db.Query(`
		SELECT id, name, country, region, latitude, longitude, timezone, tide_station_id
		FROM locations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying locations: %w", err)
	}
	defer rows.Close()

	var locs []weather.Location
	for rows.Next() {
		var loc weather.Location
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.Country, &loc.Region, &loc.Latitude, &loc.Longitude, &loc.Timezone, &loc.TideStationID); err != nil {
			return nil, fmt.Errorf("scanning location: %w", err)
		}
		locs = append(locs, loc)
	}
	return locs, rows.Err()
}

// DeleteLocation removes a location; the schema cascades the delete to all
// dependent weather, moon, forecast and tide rows.
func (s *Store) DeleteLocation(id int64) error {
	res, err := s.db.Exec(`DELETE FROM locations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting location: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("location %d: %w", id, weather.ErrNotFound)
	}
	return nil
}

// SetCoordinates fills in geocoding data learned from the provider.
func (s *Store) SetCoordinates(id int64, lat, lon float64, timezone string) error {
	_, err := s.db.Exec(`UPDATE locations SET latitude = ?, longitude = ?, timezone = ? WHERE id = ?`,
		lat, lon, timezone, id)
	if err != nil {
		return fmt.Errorf("updating coordinates: %w", err)
	}
	return nil
}

// SetTideStation records the NOAA station assigned to a location.
func (s *Store) SetTideStation(id int64, stationID string) error {
	_, err := s.db.Exec(`UPDATE locations SET tide_station_id = ? WHERE id = ?`, stationID, id)
	if err != nil {
		return fmt.Errorf("updating tide station: %w", err)
	}
	return nil
}

// HasDailyWeather reports whether the day's weather has been collected.
// This existence check is the entire freshness policy.
func (s *Store) HasDailyWeather(locationID int64, date string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM daily_weather WHERE location_id = ? AND date = ?`,
		locationID, date).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking daily weather: %w", err)
	}
	return n > 0, nil
}

// InsertDailyWeather inserts the day's record. A concurrent request racing
// past the existence check loses quietly here: the conflict on
// (location_id, date) is absorbed and the first writer's row stands.
func (s *Store) InsertDailyWeather(dw weather.DailyWeather) error {
	_, err := s.db.Exec(`
		INSERT INTO daily_weather
			(location_id, date, high_temp, low_temp, avg_temp, precipitation_mm,
			 humidity, wind_speed_kmh, wind_direction, pressure_mb, visibility_km,
			 uv_index, condition_text, condition_icon, sunrise, sunset)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(location_id, date) DO NOTHING`,
		dw.LocationID, dw.Date, dw.HighTemp, dw.LowTemp, dw.AvgTemp, dw.PrecipitationMM,
		dw.Humidity, dw.WindSpeedKmh, dw.WindDirection, dw.PressureMb, dw.VisibilityKm,
		dw.UVIndex, dw.ConditionText, dw.ConditionIcon, dw.Sunrise, dw.Sunset,
	)
	if err != nil {
		return fmt.Errorf("inserting daily weather: %w", err)
	}
	return nil
}

const dailySelect = `
	SELECT dw.id, dw.location_id, dw.date, dw.high_temp, dw.low_temp, dw.avg_temp,
		dw.precipitation_mm, dw.humidity, dw.wind_speed_kmh, dw.wind_direction,
		dw.pressure_mb, dw.visibility_km, dw.uv_index, dw.condition_text,
		dw.condition_icon, dw.sunrise, dw.sunset, mp.moon_phase, mp.moon_illumination
	FROM daily_weather dw
	LEFT JOIN moon_phases mp ON dw.location_id = mp.location_id AND dw.date = mp.date`

func scanDaily(scan func(dest ...any) error) (weather.DailyWeather, error) {
	var (
		dw           weather.DailyWeather
		moonPhase    sql.NullString
		illumination sql.NullFloat64
	)
	err := scan(&dw.ID, &dw.LocationID, &dw.Date, &dw.HighTemp, &dw.LowTemp, &dw.AvgTemp,
		&dw.PrecipitationMM, &dw.Humidity, &dw.WindSpeedKmh, &dw.WindDirection,
		&dw.PressureMb, &dw.VisibilityKm, &dw.UVIndex, &dw.ConditionText,
		&dw.ConditionIcon, &dw.Sunrise, &dw.Sunset, &moonPhase, &illumination)
	if err != nil {
		return weather.DailyWeather{}, err
	}
	dw.MoonPhase = moonPhase.String
	dw.MoonIllumination = illumination.Float64
	return dw, nil
}

// GetDailyWeather returns the day's record joined with its moon phase.
func (s *Store) GetDailyWeather(locationID int64, date string) (weather.DailyWeather, error) {
	row := s.db.QueryRow(dailySelect+` WHERE dw.location_id = ? AND dw.date = ?`, locationID, date)
	dw, err := scanDaily(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return weather.DailyWeather{}, fmt.Errorf("daily weather for location %d on %s: %w", locationID, date, weather.ErrNotFound)
	}
	if err != nil {
		return weather.DailyWeather{}, fmt.Errorf("querying daily weather: %w", err)
	}
	return dw, nil
}

// History returns up to days of daily weather, newest first.
func (s *Store) History(locationID int64, days int) ([]weather.DailyWeather, error) {
	rows, err := s.db.Query(dailySelect+`
		WHERE dw.location_id = ?
		ORDER BY dw.date DESC
		LIMIT ?`, locationID, days)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var history []weather.DailyWeather
	for rows.Next() {
		dw, err := scanDaily(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		history = append(history, dw)
	}
	return history, rows.Err()
}

// CollectedDates returns the dates in [start, end] that already have a
// daily weather row, ascending. The backfill command uses this to find the
// gaps.
func (s *Store) CollectedDates(locationID int64, start, end string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT date FROM daily_weather
		WHERE location_id = ? AND date BETWEEN ? AND ?
		ORDER BY date`, locationID, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying collected dates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scanning date: %w", err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// WeeklyAverage computes average high/low over the seven calendar days
// ending at endDate. weather.ErrNotFound when no rows fall in the window.
func (s *Store) WeeklyAverage(locationID int64, endDate string) (weather.WeeklyAverage, error) {
	end, err := time.Parse(weather.DateLayout, endDate)
	if err != nil {
		return weather.WeeklyAverage{}, fmt.Errorf("invalid date %q: %w", endDate, err)
	}
	start := end.AddDate(0, 0, -6).Format(weather.DateLayout)

	var (
		avg             weather.WeeklyAverage
		avgHigh, avgLow sql.NullFloat64
		first, last     sql.NullString
	)
	err = s.db.QueryRow(`
		SELECT AVG(high_temp), AVG(low_temp), COUNT(*), MIN(date), MAX(date)
		FROM daily_weather
		WHERE location_id = ? AND date >= ? AND date <= ?`,
		locationID, start, endDate,
	).Scan(&avgHigh, &avgLow, &avg.DaysCount, &first, &last)
	if err != nil {
		return weather.WeeklyAverage{}, fmt.Errorf("querying weekly average: %w", err)
	}
	if avg.DaysCount == 0 {
		return weather.WeeklyAverage{}, fmt.Errorf("weekly average for location %d: %w", locationID, weather.ErrNotFound)
	}

	avg.AvgHigh = avgHigh.Float64
	avg.AvgLow = avgLow.Float64
	avg.StartDate = first.String
	avg.EndDate = last.String
	return avg, nil
}

// UpsertMoonPhase inserts or refreshes the day's moon record.
func (s *Store) UpsertMoonPhase(mp weather.MoonPhase) error {
	_, err := s.db.Exec(`
		INSERT INTO moon_phases (location_id, date, moonrise, moonset, moon_phase, moon_illumination)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(location_id, date) DO UPDATE SET
			moonrise = excluded.moonrise,
			moonset = excluded.moonset,
			moon_phase = excluded.moon_phase,
			moon_illumination = excluded.moon_illumination`,
		mp.LocationID, mp.Date, mp.Moonrise, mp.Moonset, mp.Phase, mp.Illumination,
	)
	if err != nil {
		return fmt.Errorf("upserting moon phase: %w", err)
	}
	return nil
}

// GetMoonPhase returns the moon record for a date.
func (s *Store) GetMoonPhase(locationID int64, date string) (weather.MoonPhase, error) {
	var mp weather.MoonPhase
	err := s.db.QueryRow(`
		SELECT id, location_id, date, moonrise, moonset, moon_phase, moon_illumination
		FROM moon_phases WHERE location_id = ? AND date = ?`, locationID, date,
	).Scan(&mp.ID, &mp.LocationID, &mp.Date, &mp.Moonrise, &mp.Moonset, &mp.Phase, &mp.Illumination)
	if errors.Is(err, sql.ErrNoRows) {
		return weather.MoonPhase{}, fmt.Errorf("moon phase for location %d on %s: %w", locationID, date, weather.ErrNotFound)
	}
	if err != nil {
		return weather.MoonPhase{}, fmt.Errorf("querying moon phase: %w", err)
	}
	return mp, nil
}

// UpsertForecast inserts or overwrites the projection for a forecast date.
// Forecasts legitimately refresh on every collection.
func (s *Store) UpsertForecast(f weather.Forecast) error {
	_, err := s.db.Exec(`
		INSERT INTO forecasts
			(location_id, forecast_date, high_temp, low_temp, precipitation_mm,
			 humidity, wind_speed_kmh, condition_text, condition_icon, chance_of_rain)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(location_id, forecast_date) DO UPDATE SET
			high_temp = excluded.high_temp,
			low_temp = excluded.low_temp,
			precipitation_mm = excluded.precipitation_mm,
			humidity = excluded.humidity,
			wind_speed_kmh = excluded.wind_speed_kmh,
			condition_text = excluded.condition_text,
			condition_icon = excluded.condition_icon,
			chance_of_rain = excluded.chance_of_rain`,
		f.LocationID, f.ForecastDate, f.HighTemp, f.LowTemp, f.PrecipitationMM,
		f.Humidity, f.WindSpeedKmh, f.ConditionText, f.ConditionIcon, f.ChanceOfRain,
	)
	if err != nil {
		return fmt.Errorf("upserting forecast: %w", err)
	}
	return nil
}

// ListForecasts returns forecasts with forecast_date after afterDate,
// ascending, capped at limit.
func (s *Store) ListForecasts(locationID int64, afterDate string, limit int) ([]weather.Forecast, error) {
	rows, err := s.db.Query(`
		SELECT id, location_id, forecast_date, high_temp, low_temp, precipitation_mm,
			humidity, wind_speed_kmh, condition_text, condition_icon, chance_of_rain
		FROM forecasts
		WHERE location_id = ? AND forecast_date > ?
		ORDER BY forecast_date ASC
		LIMIT ?`, locationID, afterDate, limit)
	if err != nil {
		return nil, fmt.Errorf("querying forecasts: %w", err)
	}
	defer rows.Close()

	var forecasts []weather.Forecast
	for rows.Next() {
		var f weather.Forecast
		if err := rows.Scan(&f.ID, &f.LocationID, &f.ForecastDate, &f.HighTemp, &f.LowTemp,
			&f.PrecipitationMM, &f.Humidity, &f.WindSpeedKmh, &f.ConditionText,
			&f.ConditionIcon, &f.ChanceOfRain); err != nil {
			return nil, fmt.Errorf("scanning forecast: %w", err)
		}
		forecasts = append(forecasts, f)
	}
	return forecasts, rows.Err()
}

// HasTides reports whether tide events exist for the day. Tides have no
// unique constraint, so this existence check is the only duplicate guard.
func (s *Store) HasTides(locationID int64, date string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM tides WHERE location_id = ? AND date = ?`,
		locationID, date).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking tides: %w", err)
	}
	return n > 0, nil
}

// InsertTides bulk-inserts the day's tide events in one transaction.
func (s *Store) InsertTides(locationID int64, date string, events []weather.TideEvent) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning tide insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO tides (location_id, date, time, tide_type, height_meters)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing tide insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.Exec(locationID, date, ev.Time, string(ev.Type), ev.HeightMeters); err != nil {
			return fmt.Errorf("inserting tide event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing tide insert: %w", err)
	}
	return nil
}

// ListTides returns the day's tide events ascending by time. No rows is a
// normal answer for locations without a station.
func (s *Store) ListTides(locationID int64, date string) ([]weather.TideEvent, error) {
	rows, err := s.db.Query(`
		SELECT id, location_id, date, time, tide_type, height_meters
		FROM tides
		WHERE location_id = ? AND date = ?
		ORDER BY time ASC`, locationID, date)
	if err != nil {
		return nil, fmt.Errorf("querying tides: %w", err)
	}
	defer rows.Close()

	var events []weather.TideEvent
	for rows.Next() {
		var ev weather.TideEvent
		var tideType string
		if err := rows.Scan(&ev.ID, &ev.LocationID, &ev.Date, &ev.Time, &tideType, &ev.HeightMeters); err != nil {
			return nil, fmt.Errorf("scanning tide event: %w", err)
		}
		ev.Type = weather.TideType(tideType)
		events = append(events, ev)
	}
	return events, rows.Err()
}
