package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 5250, cfg.Server.Port)
	assert.Equal(t, "https://api.postcodes.io", cfg.Upstream.GeocodeBaseURL)
	assert.Equal(t, 15, cfg.Upstream.RequestTimeout)
	assert.Equal(t, 90, cfg.History.RetentionDays)
	assert.Equal(t, 5, cfg.Prediction.HorizonYears)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("SCRAPER_BASE_URL", "http://scraper:9000")
	t.Setenv("CORS_ORIGINS", "http://a.example,http://b.example")
	t.Setenv("PREDICTION_HORIZON_YEARS", "3")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "http://scraper:9000", cfg.Upstream.ScraperBaseURL)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 3, cfg.Prediction.HorizonYears)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("PORT", "not-a-number")

	_, err := LoadConfig()
	assert.Error(t, err)
}
