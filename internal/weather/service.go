package weather

import (
	"context"
	"log"
)

// forecastDays is the provider forecast window requested on collection.
const forecastDays = 7

// countryUS is how the weather provider spells the United States; tide
// predictions are only available for US coastal locations.
const countryUS = "United States of America"

// Service is the ingestion reconciler and read-side query service. All
// collection happens on demand through EnsureFresh; the persisted
// (location, date) rows are the cache and date equality is the TTL check.
type Service struct {
	store   Store
	weather WeatherProvider
	tides   TideProvider
}

// NewService creates a new Service.
func NewService(store Store, weather WeatherProvider, tides TideProvider) *Service {
	return &Service{
		store:   store,
		weather: weather,
		tides:   tides,
	}
}

// EnsureFresh collects weather, moon, forecast and tide data for a location
// if today's rows are missing. It is idempotent and safe to call on every
// request: once a daily_weather row exists for (location, today), no weather
// provider call is made until the next calendar day.
//
// The multi-table write sequence is deliberately not wrapped in a
// transaction: a provider failure aborts the remaining steps but leaves
// already-inserted rows in place, and the next request picks up where this
// one left off.
func (s *Service) EnsureFresh(ctx context.Context, loc Location, today string) error {
	collected, err := s.store.HasDailyWeather(loc.ID, today)
	if err != nil {
		return err
	}

	if !collected {
		obs, err := s.weather.FetchCurrentAndForecast(ctx, loc.Query(), forecastDays)
		if err != nil {
			return err
		}

		// Fill in coordinates from the provider's resolved location the
		// first time we see them.
		if !loc.HasCoordinates() && (obs.Location.Latitude != 0 || obs.Location.Longitude != 0) {
			if err := s.store.SetCoordinates(loc.ID, obs.Location.Latitude, obs.Location.Longitude, obs.Location.Timezone); err != nil {
				return err
			}
			loc.Latitude = obs.Location.Latitude
			loc.Longitude = obs.Location.Longitude
		}

		// A concurrent request may have inserted the row between the
		// existence check and here; the store swallows the unique-constraint
		// conflict and we proceed as if fresh.
		if err := s.store.InsertDailyWeather(composeDaily(loc.ID, today, obs)); err != nil {
			return err
		}

		if err := s.store.UpsertMoonPhase(MoonPhase{
			LocationID:   loc.ID,
			Date:         today,
			Moonrise:     obs.Astro.Moonrise,
			Moonset:      obs.Astro.Moonset,
			Phase:        obs.Astro.MoonPhase,
			Illumination: obs.Astro.MoonIllumination,
		}); err != nil {
			return err
		}

		// Today's numbers already live in daily_weather; only future days
		// are kept as forecasts, and each fetch overwrites the prior
		// projection for the same date.
		for _, day := range obs.Forecast {
			if day.Date <= today {
				continue
			}
			if err := s.store.UpsertForecast(Forecast{
				LocationID:      loc.ID,
				ForecastDate:    day.Date,
				HighTemp:        day.HighTemp,
				LowTemp:         day.LowTemp,
				PrecipitationMM: day.PrecipitationMM,
				Humidity:        day.Humidity,
				WindSpeedKmh:    day.WindKph,
				ConditionText:   day.ConditionText,
				ConditionIcon:   day.ConditionIcon,
				ChanceOfRain:    day.ChanceOfRain,
			}); err != nil {
				return err
			}
		}

		// US locations without a station get one assigned on collection
		// days only, so station discovery runs at most once per day.
		if loc.TideStationID == "" && loc.Country == countryUS && loc.HasCoordinates() {
			station, err := s.tides.FindNearestStation(ctx, loc.Latitude, loc.Longitude)
			if err != nil {
				log.Printf("weather: station lookup failed for location %d: %v", loc.ID, err)
			} else if station != "" {
				if err := s.store.SetTideStation(loc.ID, station); err != nil {
					return err
				}
				loc.TideStationID = station
			}
		}
	}

	if loc.TideStationID == "" {
		return nil
	}

	haveTides, err := s.store.HasTides(loc.ID, today)
	if err != nil {
		return err
	}
	if haveTides {
		return nil
	}

	events, err := s.tides.FetchTides(ctx, loc.TideStationID, today)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}
	return s.store.InsertTides(loc.ID, today, events)
}

// composeDaily merges the current conditions, today's forecast entry and
// astronomy into the stored daily record. High/low come from the forecast
// (current conditions carry no daily extremes); everything else comes from
// the current observation.
func composeDaily(locationID int64, today string, obs Observation) DailyWeather {
	dw := DailyWeather{
		LocationID:      locationID,
		Date:            today,
		HighTemp:        obs.Current.TempC,
		LowTemp:         obs.Current.TempC,
		AvgTemp:         obs.Current.TempC,
		PrecipitationMM: obs.Current.PrecipMM,
		Humidity:        obs.Current.Humidity,
		WindSpeedKmh:    obs.Current.WindKph,
		WindDirection:   obs.Current.WindDir,
		PressureMb:      obs.Current.PressureMb,
		VisibilityKm:    obs.Current.VisibilityKm,
		UVIndex:         obs.Current.UVIndex,
		ConditionText:   obs.Current.ConditionText,
		ConditionIcon:   obs.Current.ConditionIcon,
		Sunrise:         obs.Astro.Sunrise,
		Sunset:          obs.Astro.Sunset,
	}

	for _, day := range obs.Forecast {
		if day.Date == today {
			dw.HighTemp = day.HighTemp
			dw.LowTemp = day.LowTemp
			dw.PrecipitationMM = day.PrecipitationMM
			break
		}
	}

	return dw
}

// AddLocation registers a new location. When coordinates are missing the
// name is resolved through the provider's search endpoint so the stored row
// carries canonical country/region/coordinates. Initial data collection is
// best effort; a provider outage leaves the location registered with its
// first collection deferred to the next request.
func (s *Service) AddLocation(ctx context.Context, loc Location) (Location, error) {
	if !loc.HasCoordinates() {
		candidates, err := s.weather.SearchLocations(ctx, loc.Name)
		if err != nil {
			return Location{}, err
		}
		if len(candidates) > 0 {
			c := candidates[0]
			loc.Name = c.Name
			if loc.Country == "" {
				loc.Country = c.Country
			}
			if loc.Region == "" {
				loc.Region = c.Region
			}
			loc.Latitude = c.Latitude
			loc.Longitude = c.Longitude
			if loc.Timezone == "" {
				loc.Timezone = c.Timezone
			}
		}
	}

	created, err := s.store.CreateLocation(loc)
	if err != nil {
		return Location{}, err
	}

	if err := s.EnsureFresh(ctx, created, Today()); err != nil {
		log.Printf("weather: initial collection failed for location %d: %v", created.ID, err)
	}

	return created, nil
}

// Search returns candidate locations from the external search provider.
func (s *Service) Search(ctx context.Context, query string) ([]Candidate, error) {
	return s.weather.SearchLocations(ctx, query)
}

// Location returns a registered location by id.
func (s *Service) Location(id int64) (Location, error) {
	return s.store.GetLocation(id)
}

// Locations returns all registered locations ordered by name.
func (s *Service) Locations() ([]Location, error) {
	return s.store.ListLocations()
}

// DeleteLocation removes a location and, through the schema's cascading
// foreign keys, every dependent weather, moon, forecast and tide row.
func (s *Service) DeleteLocation(id int64) error {
	return s.store.DeleteLocation(id)
}

// TodayWeather returns the stored daily record (joined with moon data) for
// the given date. It never triggers collection.
func (s *Service) TodayWeather(locationID int64, date string) (DailyWeather, error) {
	return s.store.GetDailyWeather(locationID, date)
}

// History returns up to days of stored daily weather, newest first.
func (s *Service) History(locationID int64, days int) ([]DailyWeather, error) {
	if days <= 0 {
		days = 30
	}
	return s.store.History(locationID, days)
}

// Forecast returns the stored forecast rows after today, ascending by date.
func (s *Service) Forecast(locationID int64) ([]Forecast, error) {
	return s.store.ListForecasts(locationID, Today(), forecastDays)
}

// Moon returns the moon phase row for a date.
func (s *Service) Moon(locationID int64, date string) (MoonPhase, error) {
	return s.store.GetMoonPhase(locationID, date)
}

// Tides returns the stored tide events for a date, ascending by time. A
// location without a station simply has no rows; no provider is consulted.
func (s *Service) Tides(locationID int64, date string) ([]TideEvent, error) {
	return s.store.ListTides(locationID, date)
}

// WeeklyAverage returns average stored high/low over the last seven days.
func (s *Service) WeeklyAverage(locationID int64) (WeeklyAverage, error) {
	return s.store.WeeklyAverage(locationID, Today())
}
