package httpapi

import (
	"bytes"
	"errors"
	"html/template"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/tseneadza/weather/internal/weather"
)

// The dashboard pages are deliberately thin: the query service supplies the
// data and these templates only lay it out.

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>Weather Monitor</title></head>
<body>
<h1>Weather Monitor</h1>
{{if not .}}<p>No locations yet. Add one via POST /api/locations.</p>{{end}}
<ul>
{{range .}}
  <li>
    <a href="/location/{{.Location.ID}}">{{.Location.Name}}{{if .Location.Region}}, {{.Location.Region}}{{end}}</a>
    {{if .Weather}} &mdash; {{.Weather.ConditionText}},
      {{printf "%.1f" .Weather.HighTemp}}&deg;C / {{printf "%.1f" .Weather.LowTemp}}&deg;C{{end}}
  </li>
{{end}}
</ul>
</body>
</html>
`))

var detailTmpl = template.Must(template.New("detail").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Location.Name}} - Weather Monitor</title></head>
<body>
<h1>{{.Location.Name}}{{if .Location.Region}}, {{.Location.Region}}{{end}}</h1>
{{if .Weather}}
<h2>Today</h2>
<p>{{.Weather.ConditionText}} &mdash; high {{printf "%.1f" .Weather.HighTemp}}&deg;C,
low {{printf "%.1f" .Weather.LowTemp}}&deg;C, humidity {{printf "%.0f" .Weather.Humidity}}%</p>
{{if .Weather.MoonPhase}}<p>Moon: {{.Weather.MoonPhase}} ({{printf "%.0f" .Weather.MoonIllumination}}%)</p>{{end}}
{{end}}
{{if .Forecast}}
<h2>Forecast</h2>
<ul>
{{range .Forecast}}
  <li>{{.ForecastDate}}: {{.ConditionText}}, {{printf "%.1f" .HighTemp}}&deg;C / {{printf "%.1f" .LowTemp}}&deg;C, rain {{.ChanceOfRain}}%</li>
{{end}}
</ul>
{{end}}
{{if .Tides}}
<h2>Tides</h2>
<ul>
{{range .Tides}}
  <li>{{.Time}} {{.Type}} {{printf "%.2f" .HeightMeters}} m</li>
{{end}}
</ul>
{{end}}
{{if .History}}
<h2>Last 30 days</h2>
<ul>
{{range .History}}
  <li>{{.Date}}: {{.ConditionText}}, {{printf "%.1f" .HighTemp}}&deg;C / {{printf "%.1f" .LowTemp}}&deg;C</li>
{{end}}
</ul>
{{end}}
</body>
</html>
`))

type locationSummary struct {
	Location weather.Location
	Weather  *weather.DailyWeather
}

// RegisterPages wires the two server-rendered dashboard pages. Page views
// trigger collection the same way API reads do.
func RegisterPages(app *fiber.App, service *weather.Service) {
	app.Get("/", func(c *fiber.Ctx) error {
		locs, err := service.Locations()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list locations")
		}

		today := weather.Today()
		summaries := make([]locationSummary, 0, len(locs))
		for _, loc := range locs {
			if err := service.EnsureFresh(c.Context(), loc, today); err != nil {
				log.Printf("httpapi: collection failed for location %d: %v", loc.ID, err)
			}
			summary := locationSummary{Location: loc}
			if dw, err := service.TodayWeather(loc.ID, today); err == nil {
				summary.Weather = &dw
			}
			summaries = append(summaries, summary)
		}

		return renderTemplate(c, indexTmpl, summaries)
	})

	app.Get("/location/:id", func(c *fiber.Ctx) error {
		loc, err := lookupLocation(c, service)
		if err != nil {
			return err
		}

		today := weather.Today()
		if err := service.EnsureFresh(c.Context(), loc, today); err != nil {
			log.Printf("httpapi: collection failed for location %d: %v", loc.ID, err)
		}

		data := struct {
			Location weather.Location
			Weather  *weather.DailyWeather
			Forecast []weather.Forecast
			Tides    []weather.TideEvent
			History  []weather.DailyWeather
		}{Location: loc}

		if dw, err := service.TodayWeather(loc.ID, today); err == nil {
			data.Weather = &dw
		} else if !errors.Is(err, weather.ErrNotFound) {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load weather")
		}
		if forecasts, err := service.Forecast(loc.ID); err == nil {
			data.Forecast = forecasts
		}
		if tides, err := service.Tides(loc.ID, today); err == nil {
			data.Tides = tides
		}
		if history, err := service.History(loc.ID, 30); err == nil {
			data.History = history
		}

		return renderTemplate(c, detailTmpl, data)
	})
}

func renderTemplate(c *fiber.Ctx, tmpl *template.Template, data any) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to render page")
	}
	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}
