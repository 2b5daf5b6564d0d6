package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func validConfig() *Config {
	return &Config{
		Simulation: Simulation{Workers: 5, RequestsPerSecond: 20, TimeoutSeconds: 30},
		UserTypes: []UserType{
			{Name: "browser", Weight: 2, RequestsPerSession: []int{3, 9}, ThinkTimeSeconds: []float64{0.5, 2}},
		},
		Regions: []Region{
			{Region: "us-east", Weight: 1, IPRanges: []string{"10.0.0.0/8"}},
		},
		Services: map[string]Service{
			"crud-api": {
				BaseURL: "http://localhost:8001",
				Endpoints: []Endpoint{
					{Path: "/products", Methods: []string{"GET"}, Weight: 5},
				},
			},
		},
	}
}

func TestLoadExampleConfig(t *testing.T) {
	path := writeConfig(t, Example)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 10, cfg.Simulation.Workers)
	assert.Equal(t, 50.0, cfg.Simulation.RequestsPerSecond)
	assert.Equal(t, 30, cfg.Simulation.RampUpSeconds)
	assert.Len(t, cfg.UserTypes, 3)
	assert.Len(t, cfg.Regions, 3)
	assert.Contains(t, cfg.Services, "crud-api")
	assert.Contains(t, cfg.Services, "ecommerce-api")

	browser := cfg.UserTypes[0]
	assert.Equal(t, "browser", browser.Name)
	assert.Equal(t, []int{5, 15}, browser.RequestsPerSession)
	assert.Equal(t, []float64{1.0, 5.0}, browser.ThinkTimeSeconds)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `simulation:
  workers: 2
  requests_per_second: 5
user_types:
  - name: browser
    weight: 1
    requests_per_session: [1, 3]
    think_time_seconds: [0, 1]
geographic_distribution:
  - region: local
    weight: 1
endpoints:
  svc:
    base_url: http://localhost:9000
    endpoints:
      - path: /ping
        methods: [GET]
        weight: 1
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 10, cfg.Reporting.StatsIntervalSeconds)
	assert.Equal(t, 30, cfg.Simulation.TimeoutSeconds)
	assert.Equal(t, "info", cfg.Reporting.LogLevel)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"zero workers", func(c *Config) { c.Simulation.Workers = 0 }, "simulation.workers"},
		{"negative rate", func(c *Config) { c.Simulation.RequestsPerSecond = -1 }, "requests_per_second"},
		{"no user types", func(c *Config) { c.UserTypes = nil }, "user_types"},
		{"zero user weight", func(c *Config) { c.UserTypes[0].Weight = 0 }, "weight"},
		{"bad session range", func(c *Config) { c.UserTypes[0].RequestsPerSession = []int{5, 2} }, "requests_per_session"},
		{"zero min requests", func(c *Config) { c.UserTypes[0].RequestsPerSession = []int{0, 2} }, "requests_per_session"},
		{"bad think time", func(c *Config) { c.UserTypes[0].ThinkTimeSeconds = []float64{3, 1} }, "think_time_seconds"},
		{"no regions", func(c *Config) { c.Regions = nil }, "geographic_distribution"},
		{"zero region weight", func(c *Config) { c.Regions[0].Weight = 0 }, "weight"},
		{"no services", func(c *Config) { c.Services = nil }, "endpoints"},
		{"missing base url", func(c *Config) {
			s := c.Services["crud-api"]
			s.BaseURL = ""
			c.Services["crud-api"] = s
		}, "base_url"},
		{"missing endpoint list", func(c *Config) {
			s := c.Services["crud-api"]
			s.Endpoints = nil
			c.Services["crud-api"] = s
		}, "endpoint list"},
		{"zero endpoint weight", func(c *Config) {
			c.Services["crud-api"].Endpoints[0].Weight = 0
		}, "weight"},
		{"bad method", func(c *Config) {
			c.Services["crud-api"].Endpoints[0].Methods = []string{"YEET"}
		}, "method"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantSub)
		})
	}
}

func TestValidateAcceptsValid(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}
