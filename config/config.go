package config

import "github.com/caarlos0/env/v6"

type Config struct {
	// HTTP server configuration
	Server struct {
		Port int `env:"PORT" envDefault:"5250"`

		// Origins allowed to call the API, comma separated
		CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	}

	// Upstream service endpoints
	Upstream struct {
		// Postcode lookup service
		GeocodeBaseURL string `env:"GEOCODE_BASE_URL" envDefault:"https://api.postcodes.io"`

		// Listing stream service
		ScraperBaseURL string `env:"SCRAPER_BASE_URL" envDefault:"http://localhost:5001"`

		// Transactions / demographics / crime service
		AreaDataBaseURL string `env:"AREA_DATA_BASE_URL" envDefault:"http://localhost:5002"`

		// Price prediction service
		PredictorBaseURL string `env:"PREDICTOR_BASE_URL" envDefault:"http://localhost:5003"`

		// Timeout for single request/response calls in seconds. The
		// listing stream is exempt since it stays open for the life
		// of a search.
		RequestTimeout int `env:"REQUEST_TIMEOUT" envDefault:"15"`
	}

	// Search history persistence
	History struct {
		DatabasePath string `env:"HISTORY_DB_PATH" envDefault:"data/history.db"`

		// Days to keep settled searches before pruning
		RetentionDays int `env:"HISTORY_RETENTION_DAYS" envDefault:"90"`

		// Hours between prune runs
		PruneIntervalHours int `env:"HISTORY_PRUNE_INTERVAL_HOURS" envDefault:"24"`
	}

	// Prediction request settings
	Prediction struct {
		// Forecast horizon in years (the predictor accepts 1-5)
		HorizonYears int `env:"PREDICTION_HORIZON_YEARS" envDefault:"5"`
	}
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
