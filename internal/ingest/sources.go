package ingest

import (
	"log/slog"

	"github.com/worldpulse/hazard-aqi-service/internal/config"
	"github.com/worldpulse/hazard-aqi-service/internal/source"
)

// BuildDisasterSources assembles the disaster adapters enabled by config.
func BuildDisasterSources(cfg *config.Config, logger *slog.Logger) []source.DisasterSource {
	sources := []source.DisasterSource{
		source.NewUSGS(logger),
		source.NewGDACS(logger),
		source.NewIBTrACS(logger),
		source.NewNCEITsunami(logger),
		source.NewEONET(logger),
	}
	// FIRMS needs an API key; without one the wildfire source is skipped.
	if cfg.Ingest.FIRMSAPIKey != "" {
		sources = append(sources, source.NewFIRMS(cfg.Ingest.FIRMSAPIKey, logger))
	} else {
		logger.Info("FIRMS_API_KEY not set, wildfire source disabled")
	}
	return sources
}

// BuildAQISources assembles the air-quality adapters enabled by config.
func BuildAQISources(cfg *config.Config, logger *slog.Logger) []source.AQISource {
	sources := []source.AQISource{
		source.NewOpenAQ(cfg.Ingest.OpenAQAPIKey, cfg.Ingest.OpenAQLimit, logger),
	}
	if cfg.Ingest.OpenWeatherAPIKey != "" {
		cities, err := cfg.Ingest.CityTargets()
		if err != nil {
			logger.Error("malformed OPENWEATHER_CITIES, using defaults", "error", err)
			cities = nil
		}
		targets := make([]source.CityTarget, len(cities))
		for i, c := range cities {
			targets[i] = source.CityTarget{Name: c.Name, Lat: c.Lat, Lon: c.Lon}
		}
		sources = append(sources, source.NewOpenWeather(cfg.Ingest.OpenWeatherAPIKey, targets, logger))
	} else {
		logger.Info("OPENWEATHER_API_KEY not set, OpenWeather source disabled")
	}
	return sources
}
