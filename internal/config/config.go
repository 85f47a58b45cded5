package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"studiobook/internal/money"
	"studiobook/internal/schedule"
	"studiobook/internal/slots"
	"studiobook/internal/surcharge"
)

// EnvConfigPath names the variable holding the config file path.
const EnvConfigPath = "STUDIO_CONFIG_PATH"

type Config struct {
	Server struct {
		Port                int `yaml:"port"`
		ReadTimeoutSeconds  int `yaml:"read_timeout_seconds"`
		WriteTimeoutSeconds int `yaml:"write_timeout_seconds"`
	} `yaml:"server"`

	Studio struct {
		Location            string                              `yaml:"location"`
		CooldownMinutes     *int                                `yaml:"cooldown_minutes"`
		SlotIntervalMinutes int                                 `yaml:"slot_interval_minutes"`
		Hours               map[string]schedule.OperatingWindow `yaml:"hours"`
	} `yaml:"studio"`

	Surcharge struct {
		RatePercent      *float64 `yaml:"rate_percent"`
		EveningStartHour *int     `yaml:"evening_start_hour"`
		WeekendDays      []string `yaml:"weekend_days"`
	} `yaml:"surcharge"`

	Catalog struct {
		Path                  string `yaml:"path"`
		ReloadIntervalSeconds int    `yaml:"reload_interval_seconds"`
	} `yaml:"catalog"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`

	Calendar struct {
		Enabled           bool    `yaml:"enabled"`
		CredentialsFile   string  `yaml:"credentials_file"`
		Endpoint          string  `yaml:"endpoint"`
		TimeoutSeconds    int     `yaml:"timeout_seconds"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"calendar"`

	Stripe struct {
		SecretKey  string `yaml:"secret_key"`
		SuccessURL string `yaml:"success_url"`
		CancelURL  string `yaml:"cancel_url"`
		Currency   string `yaml:"currency"`
	} `yaml:"stripe"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Load reads the YAML config at path, falling back to $STUDIO_CONFIG_PATH and then
// configs/config.yaml. ${VAR} placeholders are expanded from the environment.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes, defaults and validates config YAML without touching the filesystem.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Studio.Location == "" {
		c.Studio.Location = schedule.DefaultLocation
	}
	if c.Studio.SlotIntervalMinutes == 0 {
		c.Studio.SlotIntervalMinutes = slots.DefaultIntervalMinutes
	}
	if len(c.Studio.Hours) == 0 {
		c.Studio.Hours = make(map[string]schedule.OperatingWindow, 7)
		for d := time.Sunday; d <= time.Saturday; d++ {
			c.Studio.Hours[strings.ToLower(d.String())] = schedule.OperatingWindow{OpenHour: 8, CloseHour: 22}
		}
	}
	if c.Catalog.Path == "" {
		c.Catalog.Path = "configs/catalog.yaml"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/studiobook.db"
	}
	if c.Stripe.Currency == "" {
		c.Stripe.Currency = "gbp"
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Studio.Location); err != nil {
		return fmt.Errorf("studio.location: %w", err)
	}
	if c.Studio.CooldownMinutes != nil && *c.Studio.CooldownMinutes < 0 {
		return fmt.Errorf("studio.cooldown_minutes must not be negative")
	}
	if c.Studio.SlotIntervalMinutes < 0 || c.Studio.SlotIntervalMinutes > 60 {
		return fmt.Errorf("studio.slot_interval_minutes must be between 1 and 60")
	}
	for day, w := range c.Studio.Hours {
		if _, err := parseWeekday(day); err != nil {
			return fmt.Errorf("studio.hours: %w", err)
		}
		if err := w.Validate(); err != nil {
			return fmt.Errorf("studio.hours.%s: %w", day, err)
		}
	}
	for i, d := range c.Surcharge.WeekendDays {
		if _, err := parseWeekday(d); err != nil {
			return fmt.Errorf("surcharge.weekend_days[%d]: %w", i, err)
		}
	}
	if c.Surcharge.RatePercent != nil && (*c.Surcharge.RatePercent < 0 || *c.Surcharge.RatePercent > 100) {
		return fmt.Errorf("surcharge.rate_percent must be between 0 and 100")
	}
	if h := c.Surcharge.EveningStartHour; h != nil && (*h < 0 || *h > 24) {
		return fmt.Errorf("surcharge.evening_start_hour must be between 0 and 24")
	}
	if c.Calendar.Enabled && c.Calendar.CredentialsFile == "" && c.Calendar.Endpoint == "" {
		return fmt.Errorf("calendar.credentials_file is required when calendar is enabled")
	}
	return nil
}

// Engine is the immutable rule set handed to the booking engine.
type Engine struct {
	Schedule            schedule.Rules
	Surcharge           surcharge.Rules
	SlotIntervalMinutes int
}

// Engine builds schedule and surcharge rules from the studio and surcharge sections.
func (c *Config) Engine() (Engine, error) {
	loc, err := time.LoadLocation(c.Studio.Location)
	if err != nil {
		return Engine{}, fmt.Errorf("studio.location: %w", err)
	}

	windows := make(map[time.Weekday]schedule.OperatingWindow, len(c.Studio.Hours))
	for day, w := range c.Studio.Hours {
		wd, err := parseWeekday(day)
		if err != nil {
			return Engine{}, err
		}
		windows[wd] = w
	}

	rules, err := schedule.NewRules(windows, c.Cooldown(), loc)
	if err != nil {
		return Engine{}, err
	}

	sr := surcharge.DefaultRules()
	if c.Surcharge.RatePercent != nil {
		sr.RateBasisPoints = money.PercentToBasisPoints(*c.Surcharge.RatePercent)
	}
	if c.Surcharge.EveningStartHour != nil {
		sr.EveningStartHour = *c.Surcharge.EveningStartHour
	}
	if len(c.Surcharge.WeekendDays) > 0 {
		sr.WeekendDays = nil
		for _, d := range c.Surcharge.WeekendDays {
			wd, err := parseWeekday(d)
			if err != nil {
				return Engine{}, err
			}
			sr.WeekendDays = append(sr.WeekendDays, wd)
		}
	}
	if err := sr.Validate(); err != nil {
		return Engine{}, err
	}

	return Engine{Schedule: rules, Surcharge: sr, SlotIntervalMinutes: c.Studio.SlotIntervalMinutes}, nil
}

// Cooldown returns the post-booking buffer, 60 minutes unless configured.
func (c *Config) Cooldown() time.Duration {
	if c.Studio.CooldownMinutes == nil {
		return schedule.DefaultCooldown
	}
	return time.Duration(*c.Studio.CooldownMinutes) * time.Minute
}

func (c *Config) CalendarTimeout() time.Duration {
	if c.Calendar.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Calendar.TimeoutSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	if c.Redis.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}

func (c *Config) CatalogReloadInterval() time.Duration {
	if c.Catalog.ReloadIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Catalog.ReloadIntervalSeconds) * time.Second
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

func (c *Config) BackupRetention() time.Duration {
	if c.Backup.RetentionDays <= 0 {
		return 14 * 24 * time.Hour
	}
	return time.Duration(c.Backup.RetentionDays) * 24 * time.Hour
}

// parseWeekday accepts English day names ("monday", "Sat") and numbers 0-6 (0=Sunday).
func parseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) == 1 && s[0] >= '0' && s[0] <= '6' {
		return time.Weekday(s[0] - '0'), nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || (len(s) >= 3 && strings.HasPrefix(name, s)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}
