package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/tseneadza/weather/internal/weather"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "weather.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func austin() weather.Location {
	return weather.Location{
		Name:      "Austin",
		Country:   "United States of America",
		Region:    "Texas",
		Latitude:  30.27,
		Longitude: -97.74,
		Timezone:  "America/Chicago",
	}
}

func TestCreateLocation(t *testing.T) {
	s := newTestStore(t)

	loc, err := s.CreateLocation(austin())
	if err != nil {
		t.Fatalf("CreateLocation() error = %v", err)
	}
	if loc.ID == 0 {
		t.Error("CreateLocation() returned zero id")
	}
	if loc.Name != "Austin" || loc.Region != "Texas" {
		t.Errorf("CreateLocation() = %+v, fields not persisted", loc)
	}

	got, err := s.GetLocation(loc.ID)
	if err != nil {
		t.Fatalf("GetLocation() error = %v", err)
	}
	if got != loc {
		t.Errorf("GetLocation() = %+v, want %+v", got, loc)
	}
}

func TestCreateLocationDuplicate(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.CreateLocation(austin()); err != nil {
		t.Fatalf("first CreateLocation() error = %v", err)
	}

	_, err := s.CreateLocation(austin())
	if !errors.Is(err, weather.ErrDuplicateLocation) {
		t.Fatalf("second CreateLocation() error = %v, want ErrDuplicateLocation", err)
	}

	locs, err := s.ListLocations()
	if err != nil {
		t.Fatalf("ListLocations() error = %v", err)
	}
	if len(locs) != 1 {
		t.Errorf("len(locations) = %d after duplicate add, want 1", len(locs))
	}
}

func TestCreateLocationSameNameDifferentRegion(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.CreateLocation(austin()); err != nil {
		t.Fatalf("CreateLocation() error = %v", err)
	}

	other := austin()
	other.Region = "Minnesota"
	if _, err := s.CreateLocation(other); err != nil {
		t.Fatalf("CreateLocation() with different region error = %v", err)
	}
}

func TestGetLocationNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetLocation(42)
	if !errors.Is(err, weather.ErrNotFound) {
		t.Fatalf("GetLocation(42) error = %v, want ErrNotFound", err)
	}
}

func TestDeleteLocationCascades(t *testing.T) {
	s := newTestStore(t)

	loc, err := s.CreateLocation(austin())
	if err != nil {
		t.Fatalf("CreateLocation() error = %v", err)
	}

	const date = "2026-08-28"
	if err := s.InsertDailyWeather(weather.DailyWeather{LocationID: loc.ID, Date: date, HighTemp: 35}); err != nil {
		t.Fatalf("InsertDailyWeather() error = %v", err)
	}
	if err := s.UpsertMoonPhase(weather.MoonPhase{LocationID: loc.ID, Date: date, Phase: "Full Moon"}); err != nil {
		t.Fatalf("UpsertMoonPhase() error = %v", err)
	}
	if err := s.UpsertForecast(weather.Forecast{LocationID: loc.ID, ForecastDate: "2026-08-29", HighTemp: 36}); err != nil {
		t.Fatalf("UpsertForecast() error = %v", err)
	}
	if err := s.InsertTides(loc.ID, date, []weather.TideEvent{
		{Time: "04:12", Type: weather.TideLow, HeightMeters: 0.2},
		{Time: "10:45", Type: weather.TideHigh, HeightMeters: 1.4},
	}); err != nil {
		t.Fatalf("InsertTides() error = %v", err)
	}

	if err := s.DeleteLocation(loc.ID); err != nil {
		t.Fatalf("DeleteLocation() error = %v", err)
	}

	if has, _ := s.HasDailyWeather(loc.ID, date); has {
		t.Error("daily_weather row survived location delete")
	}
	if _, err := s.GetMoonPhase(loc.ID, date); !errors.Is(err, weather.ErrNotFound) {
		t.Error("moon_phases row survived location delete")
	}
	if forecasts, _ := s.ListForecasts(loc.ID, date, 7); len(forecasts) != 0 {
		t.Error("forecasts rows survived location delete")
	}
	if tides, _ := s.ListTides(loc.ID, date); len(tides) != 0 {
		t.Error("tides rows survived location delete")
	}
}

func TestInsertDailyWeatherConflictKeepsFirstRow(t *testing.T) {
	s := newTestStore(t)

	loc, err := s.CreateLocation(austin())
	if err != nil {
		t.Fatalf("CreateLocation() error = %v", err)
	}

	const date = "2026-08-28"
	first := weather.DailyWeather{LocationID: loc.ID, Date: date, HighTemp: 35, ConditionText: "Sunny"}
	if err := s.InsertDailyWeather(first); err != nil {
		t.Fatalf("first InsertDailyWeather() error = %v", err)
	}

	// A racing second insert must be absorbed without replacing the row.
	second := first
	second.HighTemp = 20
	second.ConditionText = "Cloudy"
	if err := s.InsertDailyWeather(second); err != nil {
		t.Fatalf("second InsertDailyWeather() error = %v", err)
	}

	got, err := s.GetDailyWeather(loc.ID, date)
	if err != nil {
		t.Fatalf("GetDailyWeather() error = %v", err)
	}
	if got.HighTemp != 35 || got.ConditionText != "Sunny" {
		t.Errorf("GetDailyWeather() = %+v, first writer's row should stand", got)
	}
}

func TestGetDailyWeatherJoinsMoonPhase(t *testing.T) {
	s := newTestStore(t)

	loc, err := s.CreateLocation(austin())
	if err != nil {
		t.Fatalf("CreateLocation() error = %v", err)
	}

	const date = "2026-08-28"
	if err := s.InsertDailyWeather(weather.DailyWeather{LocationID: loc.ID, Date: date, HighTemp: 35}); err != nil {
		t.Fatalf("InsertDailyWeather() error = %v", err)
	}
	if err := s.UpsertMoonPhase(weather.MoonPhase{LocationID: loc.ID, Date: date, Phase: "Waxing Gibbous", Illumination: 82}); err != nil {
		t.Fatalf("UpsertMoonPhase() error = %v", err)
	}

	got, err := s.GetDailyWeather(loc.ID, date)
	if err != nil {
		t.Fatalf("GetDailyWeather() error = %v", err)
	}
	if got.MoonPhase != "Waxing Gibbous" {
		t.Errorf("MoonPhase = %q, want Waxing Gibbous", got.MoonPhase)
	}
	if got.MoonIllumination != 82 {
		t.Errorf("MoonIllumination = %v, want 82", got.MoonIllumination)
	}
}

func TestUpsertForecastOverwrites(t *testing.T) {
	s := newTestStore(t)

	loc, err := s.CreateLocation(austin())
	if err != nil {
		t.Fatalf("CreateLocation() error = %v", err)
	}

	f := weather.Forecast{LocationID: loc.ID, ForecastDate: "2026-09-01", HighTemp: 30, ChanceOfRain: 10}
	if err := s.UpsertForecast(f); err != nil {
		t.Fatalf("first UpsertForecast() error = %v", err)
	}

	// A later fetch refines the projection for the same date.
	f.HighTemp = 27
	f.ChanceOfRain = 80
	if err := s.UpsertForecast(f); err != nil {
		t.Fatalf("second UpsertForecast() error = %v", err)
	}

	forecasts, err := s.ListForecasts(loc.ID, "2026-08-28", 7)
	if err != nil {
		t.Fatalf("ListForecasts() error = %v", err)
	}
	if len(forecasts) != 1 {
		t.Fatalf("len(forecasts) = %d, want 1 (overwrite, not duplicate)", len(forecasts))
	}
	if forecasts[0].HighTemp != 27 || forecasts[0].ChanceOfRain != 80 {
		t.Errorf("forecast = %+v, want most recent fetch", forecasts[0])
	}
}

func TestListForecastsExcludesPastAndToday(t *testing.T) {
	s := newTestStore(t)

	loc, err := s.CreateLocation(austin())
	if err != nil {
		t.Fatalf("CreateLocation() error = %v", err)
	}

	for _, date := range []string{"2026-08-27", "2026-08-28", "2026-08-29", "2026-08-30"} {
		if err := s.UpsertForecast(weather.Forecast{LocationID: loc.ID, ForecastDate: date}); err != nil {
			t.Fatalf("UpsertForecast(%s) error = %v", date, err)
		}
	}

	forecasts, err := s.ListForecasts(loc.ID, "2026-08-28", 7)
	if err != nil {
		t.Fatalf("ListForecasts() error = %v", err)
	}
	if len(forecasts) != 2 {
		t.Fatalf("len(forecasts) = %d, want 2", len(forecasts))
	}
	if forecasts[0].ForecastDate != "2026-08-29" || forecasts[1].ForecastDate != "2026-08-30" {
		t.Errorf("forecasts out of order: %s, %s", forecasts[0].ForecastDate, forecasts[1].ForecastDate)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	s := newTestStore(t)

	loc, err := s.CreateLocation(austin())
	if err != nil {
		t.Fatalf("CreateLocation() error = %v", err)
	}

	for _, date := range []string{"2026-08-25", "2026-08-27", "2026-08-26"} {
		if err := s.InsertDailyWeather(weather.DailyWeather{LocationID: loc.ID, Date: date}); err != nil {
			t.Fatalf("InsertDailyWeather(%s) error = %v", date, err)
		}
	}

	history, err := s.History(loc.ID, 2)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(history))
	}
	if history[0].Date != "2026-08-27" || history[1].Date != "2026-08-26" {
		t.Errorf("history order = %s, %s; want newest first", history[0].Date, history[1].Date)
	}
}

func TestListTidesAscendingByTime(t *testing.T) {
	s := newTestStore(t)

	loc, err := s.CreateLocation(austin())
	if err != nil {
		t.Fatalf("CreateLocation() error = %v", err)
	}

	const date = "2026-08-28"
	if err := s.InsertTides(loc.ID, date, []weather.TideEvent{
		{Time: "16:30", Type: weather.TideLow, HeightMeters: 0.3},
		{Time: "04:12", Type: weather.TideLow, HeightMeters: 0.2},
		{Time: "10:45", Type: weather.TideHigh, HeightMeters: 1.4},
	}); err != nil {
		t.Fatalf("InsertTides() error = %v", err)
	}

	has, err := s.HasTides(loc.ID, date)
	if err != nil || !has {
		t.Fatalf("HasTides() = %v, %v; want true", has, err)
	}

	tides, err := s.ListTides(loc.ID, date)
	if err != nil {
		t.Fatalf("ListTides() error = %v", err)
	}
	if len(tides) != 3 {
		t.Fatalf("len(tides) = %d, want 3", len(tides))
	}
	if tides[0].Time != "04:12" || tides[1].Time != "10:45" || tides[2].Time != "16:30" {
		t.Errorf("tides out of order: %s, %s, %s", tides[0].Time, tides[1].Time, tides[2].Time)
	}
	if tides[1].Type != weather.TideHigh {
		t.Errorf("tides[1].Type = %s, want high", tides[1].Type)
	}
}

func TestWeeklyAverage(t *testing.T) {
	s := newTestStore(t)

	loc, err := s.CreateLocation(austin())
	if err != nil {
		t.Fatalf("CreateLocation() error = %v", err)
	}

	days := []struct {
		date string
		high float64
		low  float64
	}{
		{"2026-08-26", 30, 20},
		{"2026-08-27", 32, 22},
		{"2026-08-28", 34, 24},
		{"2026-08-20", 100, 0}, // outside the 7-day window
	}
	for _, d := range days {
		if err := s.InsertDailyWeather(weather.DailyWeather{LocationID: loc.ID, Date: d.date, HighTemp: d.high, LowTemp: d.low}); err != nil {
			t.Fatalf("InsertDailyWeather(%s) error = %v", d.date, err)
		}
	}

	avg, err := s.WeeklyAverage(loc.ID, "2026-08-28")
	if err != nil {
		t.Fatalf("WeeklyAverage() error = %v", err)
	}
	if avg.DaysCount != 3 {
		t.Errorf("DaysCount = %d, want 3", avg.DaysCount)
	}
	if avg.AvgHigh != 32 {
		t.Errorf("AvgHigh = %v, want 32", avg.AvgHigh)
	}
	if avg.AvgLow != 22 {
		t.Errorf("AvgLow = %v, want 22", avg.AvgLow)
	}
	if avg.StartDate != "2026-08-26" || avg.EndDate != "2026-08-28" {
		t.Errorf("window = %s..%s", avg.StartDate, avg.EndDate)
	}
}

func TestWeeklyAverageNoData(t *testing.T) {
	s := newTestStore(t)

	loc, err := s.CreateLocation(austin())
	if err != nil {
		t.Fatalf("CreateLocation() error = %v", err)
	}

	_, err = s.WeeklyAverage(loc.ID, "2026-08-28")
	if !errors.Is(err, weather.ErrNotFound) {
		t.Fatalf("WeeklyAverage() error = %v, want ErrNotFound", err)
	}
}

func TestCollectedDates(t *testing.T) {
	s := newTestStore(t)

	loc, err := s.CreateLocation(austin())
	if err != nil {
		t.Fatalf("CreateLocation() error = %v", err)
	}

	for _, date := range []string{"2026-08-25", "2026-08-27"} {
		if err := s.InsertDailyWeather(weather.DailyWeather{LocationID: loc.ID, Date: date}); err != nil {
			t.Fatalf("InsertDailyWeather(%s) error = %v", date, err)
		}
	}

	dates, err := s.CollectedDates(loc.ID, "2026-08-24", "2026-08-28")
	if err != nil {
		t.Fatalf("CollectedDates() error = %v", err)
	}
	if len(dates) != 2 || dates[0] != "2026-08-25" || dates[1] != "2026-08-27" {
		t.Errorf("CollectedDates() = %v", dates)
	}
}
