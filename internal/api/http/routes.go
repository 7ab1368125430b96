package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/tseneadza/weather/internal/weather"
)

var validate = validator.New()

// addLocationRequest is the POST /api/locations body. Only the name is
// required; coordinates are resolved through the search provider when
// absent.
type addLocationRequest struct {
	Name        string  `json:"name" validate:"required"`
	Country     string  `json:"country"`
	Region      string  `json:"region"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Timezone    string  `json:"timezone"`
	TideStation string  `json:"tide_station"`
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service) {
	api := app.Group("/api")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api.Get("/locations", func(c *fiber.Ctx) error {
		locs, err := service.Locations()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list locations")
		}
		if locs == nil {
			locs = []weather.Location{}
		}
		return c.JSON(locs)
	})

	api.Post("/locations", func(c *fiber.Ctx) error {
		var req addLocationRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		loc, err := service.AddLocation(c.Context(), weather.Location{
			Name:          req.Name,
			Country:       req.Country,
			Region:        req.Region,
			Latitude:      req.Lat,
			Longitude:     req.Lon,
			Timezone:      req.Timezone,
			TideStationID: req.TideStation,
		})
		switch {
		case errors.Is(err, weather.ErrDuplicateLocation):
			return fiber.NewError(fiber.StatusConflict, "location already exists")
		case errors.Is(err, weather.ErrProviderUnavailable):
			return fiber.NewError(fiber.StatusBadGateway, "location lookup unavailable")
		case err != nil:
			return fiber.NewError(fiber.StatusInternalServerError, "failed to add location")
		}

		return c.Status(fiber.StatusCreated).JSON(loc)
	})

	api.Delete("/locations/:id", func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		if err := service.DeleteLocation(id); err != nil {
			if errors.Is(err, weather.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "location not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to delete location")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	api.Get("/search", func(c *fiber.Ctx) error {
		query := c.Query("q")
		if len(query) < 2 {
			return fiber.NewError(fiber.StatusBadRequest, "query must be at least 2 characters")
		}

		candidates, err := service.Search(c.Context(), query)
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, "location search unavailable")
		}
		if candidates == nil {
			candidates = []weather.Candidate{}
		}
		return c.JSON(candidates)
	})

	api.Get("/weather/:id", func(c *fiber.Ctx) error {
		loc, err := lookupLocation(c, service)
		if err != nil {
			return err
		}

		today := weather.Today()
		freshErr := service.EnsureFresh(c.Context(), loc, today)

		// Ingestion is at-least-once without atomicity: a provider failure
		// mid-sequence still leaves whatever was inserted, so serve the row
		// when it exists and only surface the outage when it does not.
		dw, err := service.TodayWeather(loc.ID, today)
		if err != nil {
			if errors.Is(freshErr, weather.ErrProviderUnavailable) {
				return fiber.NewError(fiber.StatusBadGateway, "weather provider unavailable")
			}
			if errors.Is(err, weather.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "weather data not available")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
		}
		return c.JSON(dw)
	})

	api.Get("/forecast/:id", func(c *fiber.Ctx) error {
		loc, err := lookupLocation(c, service)
		if err != nil {
			return err
		}

		forecasts, err := service.Forecast(loc.ID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch forecast")
		}
		if forecasts == nil {
			forecasts = []weather.Forecast{}
		}
		return c.JSON(forecasts)
	})

	api.Get("/moon/:id", func(c *fiber.Ctx) error {
		loc, err := lookupLocation(c, service)
		if err != nil {
			return err
		}
		date, err := parseDate(c)
		if err != nil {
			return err
		}

		mp, err := service.Moon(loc.ID, date)
		if err != nil {
			if errors.Is(err, weather.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "moon phase data not available")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch moon phase")
		}
		return c.JSON(mp)
	})

	api.Get("/tides/:id", func(c *fiber.Ctx) error {
		loc, err := lookupLocation(c, service)
		if err != nil {
			return err
		}
		date, err := parseDate(c)
		if err != nil {
			return err
		}

		// Locations without a tide station read as an empty list; no
		// provider is ever consulted here.
		events, err := service.Tides(loc.ID, date)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch tides")
		}
		if events == nil {
			events = []weather.TideEvent{}
		}
		return c.JSON(events)
	})

	api.Get("/weekly-average/:id", func(c *fiber.Ctx) error {
		loc, err := lookupLocation(c, service)
		if err != nil {
			return err
		}

		avg, err := service.WeeklyAverage(loc.ID)
		if err != nil {
			if errors.Is(err, weather.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "insufficient data for weekly average")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to compute weekly average")
		}
		return c.JSON(avg)
	})
}

func parseID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid location id")
	}
	return id, nil
}

func lookupLocation(c *fiber.Ctx, service *weather.Service) (weather.Location, error) {
	id, err := parseID(c)
	if err != nil {
		return weather.Location{}, err
	}
	loc, err := service.Location(id)
	if err != nil {
		if errors.Is(err, weather.ErrNotFound) {
			return weather.Location{}, fiber.NewError(fiber.StatusNotFound, "location not found")
		}
		return weather.Location{}, fiber.NewError(fiber.StatusInternalServerError, "failed to load location")
	}
	return loc, nil
}

// parseDate reads the optional date query parameter, defaulting to today.
func parseDate(c *fiber.Ctx) (string, error) {
	date := c.Query("date")
	if date == "" {
		return weather.Today(), nil
	}
	if _, err := time.Parse(weather.DateLayout, date); err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
	}
	return date, nil
}
