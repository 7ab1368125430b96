// Command backfill fills gaps in stored daily weather using the provider's
// history endpoint. It finds dates inside the requested window with no
// daily_weather row and fetches each one individually, so re-running it is
// harmless.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/tseneadza/weather/internal/config"
	"github.com/tseneadza/weather/internal/store"
	"github.com/tseneadza/weather/internal/weather"
	"github.com/tseneadza/weather/internal/weather/providers"
)

func main() {
	var (
		locationID = flag.Int64("location", 0, "location id to backfill (0 = all locations)")
		days       = flag.Int("days", 7, "number of past days to inspect")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	provider := providers.NewWeatherAPI(httpClient, cfg.WeatherAPIKey, cfg.WeatherAPIBase)

	var locations []weather.Location
	if *locationID > 0 {
		loc, err := db.GetLocation(*locationID)
		if err != nil {
			log.Fatalf("location %d: %v", *locationID, err)
		}
		locations = []weather.Location{loc}
	} else {
		locations, err = db.ListLocations()
		if err != nil {
			log.Fatalf("failed to list locations: %v", err)
		}
	}

	end := time.Now().AddDate(0, 0, -1) // yesterday; today belongs to EnsureFresh
	start := end.AddDate(0, 0, -(*days - 1))

	for _, loc := range locations {
		if err := backfillLocation(db, provider, loc, start, end); err != nil {
			log.Printf("backfill failed for location %d (%s): %v", loc.ID, loc.Name, err)
		}
	}
}

func backfillLocation(db *store.Store, provider *providers.WeatherAPI, loc weather.Location, start, end time.Time) error {
	missing, err := missingDates(db, loc.ID, start, end)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		log.Printf("location %d (%s): nothing to backfill", loc.ID, loc.Name)
		return nil
	}

	for _, date := range missing {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		hist, err := provider.FetchHistory(ctx, loc.Query(), date)
		cancel()
		if err != nil {
			// The free tier only reaches a few days back; skip and move on.
			log.Printf("location %d: history fetch for %s failed: %v", loc.ID, date, err)
			continue
		}

		if err := db.InsertDailyWeather(weather.DailyWeather{
			LocationID:      loc.ID,
			Date:            date,
			HighTemp:        hist.HighTemp,
			LowTemp:         hist.LowTemp,
			AvgTemp:         hist.AvgTemp,
			PrecipitationMM: hist.PrecipitationMM,
			Humidity:        hist.Humidity,
			WindSpeedKmh:    hist.WindKph,
			ConditionText:   hist.ConditionText,
			ConditionIcon:   hist.ConditionIcon,
			Sunrise:         hist.Astro.Sunrise,
			Sunset:          hist.Astro.Sunset,
		}); err != nil {
			return err
		}

		if hist.Astro.MoonPhase != "" {
			if err := db.UpsertMoonPhase(weather.MoonPhase{
				LocationID:   loc.ID,
				Date:         date,
				Moonrise:     hist.Astro.Moonrise,
				Moonset:      hist.Astro.Moonset,
				Phase:        hist.Astro.MoonPhase,
				Illumination: hist.Astro.MoonIllumination,
			}); err != nil {
				return err
			}
		}

		log.Printf("location %d: backfilled %s", loc.ID, date)
	}

	return nil
}

// missingDates returns the dates in [start, end] with no stored daily row.
func missingDates(db *store.Store, locationID int64, start, end time.Time) ([]string, error) {
	startStr := start.Format(weather.DateLayout)
	endStr := end.Format(weather.DateLayout)

	collected, err := db.CollectedDates(locationID, startStr, endStr)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(collected))
	for _, d := range collected {
		have[d] = true
	}

	var missing []string
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		d := day.Format(weather.DateLayout)
		if !have[d] {
			missing = append(missing, d)
		}
	}
	return missing, nil
}
