package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full simulation configuration loaded from YAML.
type Config struct {
	Simulation Simulation         `mapstructure:"simulation"`
	UserTypes  []UserType         `mapstructure:"user_types"`
	Regions    []Region           `mapstructure:"geographic_distribution"`
	Services   map[string]Service `mapstructure:"endpoints"`
	Reporting  Reporting          `mapstructure:"reporting"`
}

type Simulation struct {
	Workers           int     `mapstructure:"workers"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	DurationMinutes   int     `mapstructure:"duration_minutes"`
	RampUpSeconds     int     `mapstructure:"ramp_up_seconds"`
	TimeoutSeconds    int     `mapstructure:"request_timeout_seconds"`
}

type UserType struct {
	Name               string    `mapstructure:"name"`
	Weight             float64   `mapstructure:"weight"`
	RequestsPerSession []int     `mapstructure:"requests_per_session"`
	ThinkTimeSeconds   []float64 `mapstructure:"think_time_seconds"`
}

type Region struct {
	Region   string   `mapstructure:"region"`
	Weight   float64  `mapstructure:"weight"`
	IPRanges []string `mapstructure:"ip_ranges"`
}

type Service struct {
	BaseURL   string     `mapstructure:"base_url"`
	Endpoints []Endpoint `mapstructure:"endpoints"`
}

type Endpoint struct {
	Path             string   `mapstructure:"path"`
	Methods          []string `mapstructure:"methods"`
	Weight           float64  `mapstructure:"weight"`
	UserTypes        []string `mapstructure:"user_types"`
	PayloadGenerator string   `mapstructure:"payload_generator"`
	PathGenerator    string   `mapstructure:"path_generator"`
}

type Reporting struct {
	StatsIntervalSeconds int    `mapstructure:"stats_interval_seconds"`
	DetailedLogging      bool   `mapstructure:"detailed_logging"`
	LogLevel             string `mapstructure:"log_level"`
	MetricsListen        string `mapstructure:"metrics_listen"`
	HistoryDir           string `mapstructure:"history_dir"`
}

// Load reads and decodes the YAML config at path. Validation is a
// separate step so callers can report all startup problems before
// exiting.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("simulation.request_timeout_seconds", 30)
	v.SetDefault("reporting.stats_interval_seconds", 10)
	v.SetDefault("reporting.log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return &cfg, nil
}

var validMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true, "PATCH": true,
}

// Validate checks the structural rules the engine depends on. The first
// failure is returned with the offending section and field named, and
// the process must not start any worker after a failure.
func (c *Config) Validate() error {
	if c.Simulation.Workers <= 0 {
		return fmt.Errorf("simulation.workers must be positive, got %d", c.Simulation.Workers)
	}
	if c.Simulation.RequestsPerSecond <= 0 {
		return fmt.Errorf("simulation.requests_per_second must be positive, got %v", c.Simulation.RequestsPerSecond)
	}
	if c.Simulation.DurationMinutes < 0 {
		return fmt.Errorf("simulation.duration_minutes must not be negative, got %d", c.Simulation.DurationMinutes)
	}
	if c.Simulation.RampUpSeconds < 0 {
		return fmt.Errorf("simulation.ramp_up_seconds must not be negative, got %d", c.Simulation.RampUpSeconds)
	}

	if len(c.UserTypes) == 0 {
		return fmt.Errorf("user_types section is missing or empty")
	}
	seen := map[string]bool{}
	for _, ut := range c.UserTypes {
		if ut.Name == "" {
			return fmt.Errorf("user_types: entry without a name")
		}
		if seen[ut.Name] {
			return fmt.Errorf("user_types: duplicate name %q", ut.Name)
		}
		seen[ut.Name] = true
		if ut.Weight <= 0 {
			return fmt.Errorf("user_types.%s: weight must be positive, got %v", ut.Name, ut.Weight)
		}
		if len(ut.RequestsPerSession) != 2 {
			return fmt.Errorf("user_types.%s: requests_per_session must be [min, max]", ut.Name)
		}
		if ut.RequestsPerSession[0] < 1 || ut.RequestsPerSession[1] < ut.RequestsPerSession[0] {
			return fmt.Errorf("user_types.%s: requests_per_session range [%d, %d] is invalid",
				ut.Name, ut.RequestsPerSession[0], ut.RequestsPerSession[1])
		}
		if len(ut.ThinkTimeSeconds) != 2 {
			return fmt.Errorf("user_types.%s: think_time_seconds must be [min, max]", ut.Name)
		}
		if ut.ThinkTimeSeconds[0] < 0 || ut.ThinkTimeSeconds[1] < ut.ThinkTimeSeconds[0] {
			return fmt.Errorf("user_types.%s: think_time_seconds range [%v, %v] is invalid",
				ut.Name, ut.ThinkTimeSeconds[0], ut.ThinkTimeSeconds[1])
		}
	}

	if len(c.Regions) == 0 {
		return fmt.Errorf("geographic_distribution section is missing or empty")
	}
	for _, r := range c.Regions {
		if r.Region == "" {
			return fmt.Errorf("geographic_distribution: entry without a region label")
		}
		if r.Weight <= 0 {
			return fmt.Errorf("geographic_distribution.%s: weight must be positive, got %v", r.Region, r.Weight)
		}
	}

	if len(c.Services) == 0 {
		return fmt.Errorf("endpoints section is missing or empty")
	}
	for name, svc := range c.Services {
		if svc.BaseURL == "" {
			return fmt.Errorf("endpoints.%s: base_url is required", name)
		}
		if len(svc.Endpoints) == 0 {
			return fmt.Errorf("endpoints.%s: endpoint list is required", name)
		}
		for _, ep := range svc.Endpoints {
			if ep.Path == "" {
				return fmt.Errorf("endpoints.%s: endpoint without a path", name)
			}
			if len(ep.Methods) == 0 {
				return fmt.Errorf("endpoints.%s%s: methods list is required", name, ep.Path)
			}
			for _, m := range ep.Methods {
				if !validMethods[strings.ToUpper(m)] {
					return fmt.Errorf("endpoints.%s%s: unsupported method %q", name, ep.Path, m)
				}
			}
			if ep.Weight <= 0 {
				return fmt.Errorf("endpoints.%s%s: weight must be positive, got %v", name, ep.Path, ep.Weight)
			}
		}
	}

	return nil
}

// UserTypeNames returns the configured names in declaration order.
func (c *Config) UserTypeNames() []string {
	names := make([]string, len(c.UserTypes))
	for i, ut := range c.UserTypes {
		names[i] = ut.Name
	}
	return names
}

// ServiceNames returns the configured service names.
func (c *Config) ServiceNames() []string {
	names := make([]string, 0, len(c.Services))
	for name := range c.Services {
		names = append(names, name)
	}
	return names
}
