package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Star     StarConfig     `mapstructure:"star"`
	Model    ModelConfig    `mapstructure:"model"`
	Filter   FilterConfig   `mapstructure:"filter"`
	Sampler  SamplerConfig  `mapstructure:"sampler"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Data     DataConfig     `mapstructure:"data"`
	Output   OutputConfig   `mapstructure:"output"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// StarConfig holds the fixed stellar and planetary properties
type StarConfig struct {
	StellarRadius float64 `mapstructure:"stellar_radius"` // R☉
	PlanetRadius  float64 `mapstructure:"planet_radius"`  // R⊕
	LogG          float64 `mapstructure:"logg"`
}

// ModelConfig holds prior bounds and model switches
type ModelConfig struct {
	MaxTemperatureOffset float64 `mapstructure:"max_temperature_offset"`
	MinTemperature       float64 `mapstructure:"min_temperature"`
	MaxTemperature       float64 `mapstructure:"max_temperature"`
	MinSpotFraction      float64 `mapstructure:"min_spot_fraction"`
	MaxSpotFraction      float64 `mapstructure:"max_spot_fraction"`
	MaxDepthOffset       float64 `mapstructure:"max_depth_offset"`
	IncludePoisson       bool    `mapstructure:"include_poisson"`
	QuadratureNodes      int     `mapstructure:"quadrature_nodes"`
}

// FilterConfig holds light-curve declustering and binning options
type FilterConfig struct {
	ClusterPoints    int           `mapstructure:"cluster_points"`
	ClusterThreshold time.Duration `mapstructure:"cluster_threshold"`
	BinWidth         time.Duration `mapstructure:"bin_width"`
	Aggregate        string        `mapstructure:"aggregate"`
}

// GuessConfig holds one value per physical parameter
type GuessConfig struct {
	DeltaT float64 `mapstructure:"delta_t"`
	TPhot  float64 `mapstructure:"t_phot"`
	F      float64 `mapstructure:"f"`
	DeltaF float64 `mapstructure:"delta_f"`
	F1     float64 `mapstructure:"f1"`
}

// SamplerConfig holds MCMC run options
type SamplerConfig struct {
	Walkers       int         `mapstructure:"walkers"`
	BurnIn        int         `mapstructure:"burn_in"`
	Production    int         `mapstructure:"production"`
	MaxSteps      int         `mapstructure:"max_steps"`
	Seed          uint64      `mapstructure:"seed"`
	StretchScale  float64     `mapstructure:"stretch_scale"`
	InitAttempts  int         `mapstructure:"init_attempts"`
	CredibleLevel float64     `mapstructure:"credible_level"`
	Categories    []string    `mapstructure:"categories"` // empty means every category present
	Guess         GuessConfig `mapstructure:"guess"`      // walker starting point
	Spread        GuessConfig `mapstructure:"spread"`     // standard deviation of the initial walker cloud
}

// CacheConfig holds chain cache options
type CacheConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxEntries int    `mapstructure:"max_entries"`
}

// LightCurveSource is one photometry file
type LightCurveSource struct {
	Path   string `mapstructure:"path"`
	Source string `mapstructure:"source"`
}

// ConstraintSource is one constraint table
type ConstraintSource struct {
	Path     string `mapstructure:"path"`
	Category string `mapstructure:"category"`
	Group    string `mapstructure:"group"`
}

// DataConfig lists the inputs of an analysis
type DataConfig struct {
	Label       string             `mapstructure:"label"`
	LightCurves []LightCurveSource `mapstructure:"light_curves"`
	Constraints []ConstraintSource `mapstructure:"constraints"`
}

// OutputConfig holds report options
type OutputConfig struct {
	Dir           string  `mapstructure:"dir"`
	CurveMin      float64 `mapstructure:"curve_min"` // microns
	CurveMax      float64 `mapstructure:"curve_max"` // microns
	CurvePoints   int     `mapstructure:"curve_points"`
	CurveWidth    float64 `mapstructure:"curve_width"` // microns
	DirPermission uint32  `mapstructure:"dir_permission"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	Enabled  bool   `mapstructure:"enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set config file
	v.SetConfigFile(path)

	// Set defaults
	setDefaults(v)

	// Enable environment variable override, e.g. SPOTFIT_SAMPLER_SEED
	v.SetEnvPrefix("SPOTFIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Model defaults
	v.SetDefault("model.max_temperature_offset", 3000.0)
	v.SetDefault("model.min_temperature", 2300.0)
	v.SetDefault("model.max_temperature", 7000.0)
	v.SetDefault("model.min_spot_fraction", 1e-4)
	v.SetDefault("model.max_spot_fraction", 0.5)
	v.SetDefault("model.max_depth_offset", 0.01)
	v.SetDefault("model.include_poisson", true)
	v.SetDefault("model.quadrature_nodes", 48)

	// Filter defaults
	v.SetDefault("filter.cluster_points", 30)
	v.SetDefault("filter.cluster_threshold", "30m")
	v.SetDefault("filter.bin_width", "24h")
	v.SetDefault("filter.aggregate", "median")

	// Sampler defaults
	v.SetDefault("sampler.walkers", 32)
	v.SetDefault("sampler.burn_in", 1000)
	v.SetDefault("sampler.production", 1000)
	v.SetDefault("sampler.max_steps", 100000)
	v.SetDefault("sampler.seed", 42)
	v.SetDefault("sampler.stretch_scale", 2.0)
	v.SetDefault("sampler.init_attempts", 1000)
	v.SetDefault("sampler.credible_level", 0.95)
	v.SetDefault("sampler.guess.delta_t", -300.0)
	v.SetDefault("sampler.guess.t_phot", 3300.0)
	v.SetDefault("sampler.guess.f", 0.1)
	v.SetDefault("sampler.guess.delta_f", 0.02)
	v.SetDefault("sampler.guess.f1", 0.01)
	v.SetDefault("sampler.spread.delta_t", 10.0)
	v.SetDefault("sampler.spread.t_phot", 10.0)
	v.SetDefault("sampler.spread.f", 0.01)
	v.SetDefault("sampler.spread.delta_f", 0.002)
	v.SetDefault("sampler.spread.f1", 0.001)

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", "./data/chains.db")
	v.SetDefault("cache.max_entries", 50)

	// Output defaults
	v.SetDefault("output.dir", "./output")
	v.SetDefault("output.curve_min", 0.4)
	v.SetDefault("output.curve_max", 5.0)
	v.SetDefault("output.curve_points", 100)
	v.SetDefault("output.curve_width", 0.02)
	v.SetDefault("output.dir_permission", 0o755)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Star config
	if c.Star.StellarRadius <= 0 {
		return fmt.Errorf("star.stellar_radius must be positive")
	}
	if c.Star.PlanetRadius <= 0 {
		return fmt.Errorf("star.planet_radius must be positive")
	}

	// Validate Model config
	if c.Model.MaxTemperatureOffset <= 0 {
		return fmt.Errorf("model.max_temperature_offset must be positive")
	}
	if c.Model.MinTemperature <= 0 || c.Model.MaxTemperature <= c.Model.MinTemperature {
		return fmt.Errorf("model.min_temperature and model.max_temperature must satisfy 0 < min < max")
	}
	if c.Model.MinSpotFraction <= 0 || c.Model.MaxSpotFraction < c.Model.MinSpotFraction || c.Model.MaxSpotFraction > 1 {
		return fmt.Errorf("model.min_spot_fraction and model.max_spot_fraction must satisfy 0 < min <= max <= 1")
	}
	if c.Model.MaxDepthOffset < 0 {
		return fmt.Errorf("model.max_depth_offset must not be negative")
	}
	if c.Model.QuadratureNodes < 1 {
		return fmt.Errorf("model.quadrature_nodes must be at least 1")
	}

	// Validate Filter config
	if c.Filter.ClusterPoints < 1 {
		return fmt.Errorf("filter.cluster_points must be at least 1")
	}
	if c.Filter.ClusterThreshold <= 0 {
		return fmt.Errorf("filter.cluster_threshold must be positive")
	}
	if c.Filter.BinWidth <= 0 {
		return fmt.Errorf("filter.bin_width must be positive")
	}
	validAggregates := map[string]bool{"median": true, "mean": true}
	if !validAggregates[c.Filter.Aggregate] {
		return fmt.Errorf("filter.aggregate must be one of: median, mean")
	}

	// Validate Sampler config
	if c.Sampler.Walkers < 2 || c.Sampler.Walkers%2 != 0 {
		return fmt.Errorf("sampler.walkers must be an even number of at least 2")
	}
	if c.Sampler.BurnIn < 0 {
		return fmt.Errorf("sampler.burn_in must not be negative")
	}
	if c.Sampler.Production < 1 {
		return fmt.Errorf("sampler.production must be at least 1")
	}
	if c.Sampler.BurnIn+c.Sampler.Production > c.Sampler.MaxSteps {
		return fmt.Errorf("sampler.burn_in + sampler.production must not exceed sampler.max_steps")
	}
	if c.Sampler.StretchScale <= 1 {
		return fmt.Errorf("sampler.stretch_scale must be greater than 1")
	}
	if c.Sampler.CredibleLevel <= 0 || c.Sampler.CredibleLevel >= 1 {
		return fmt.Errorf("sampler.credible_level must be between 0 and 1")
	}
	spread := c.Sampler.Spread
	if spread.DeltaT <= 0 || spread.TPhot <= 0 || spread.F <= 0 || spread.DeltaF <= 0 || spread.F1 <= 0 {
		return fmt.Errorf("sampler.spread values must all be greater than 0")
	}

	// Validate Cache config
	if c.Cache.Enabled && c.Cache.Path == "" {
		return fmt.Errorf("cache.path is required when cache is enabled")
	}

	// Validate Data config
	if c.Data.Label == "" {
		return fmt.Errorf("data.label is required")
	}
	if len(c.Data.Constraints) == 0 {
		return fmt.Errorf("data.constraints must contain at least one table")
	}
	for i, src := range c.Data.Constraints {
		if src.Path == "" {
			return fmt.Errorf("data.constraints[%d].path is required", i)
		}
		if src.Category == "" {
			return fmt.Errorf("data.constraints[%d].category is required", i)
		}
	}
	for i, src := range c.Data.LightCurves {
		if src.Path == "" {
			return fmt.Errorf("data.light_curves[%d].path is required", i)
		}
	}

	// Validate Output config
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}
	if c.Output.CurvePoints < 2 {
		return fmt.Errorf("output.curve_points must be at least 2")
	}
	if c.Output.CurveMin <= 0 || c.Output.CurveMax <= c.Output.CurveMin {
		return fmt.Errorf("output.curve_min and output.curve_max must satisfy 0 < min < max")
	}
	if c.Output.CurveWidth <= 0 {
		return fmt.Errorf("output.curve_width must be positive")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// CurveGrid returns the evenly spaced wavelength grid for model curves
func (c *Config) CurveGrid() []float64 {
	n := c.Output.CurvePoints
	grid := make([]float64, n)
	step := (c.Output.CurveMax - c.Output.CurveMin) / float64(n-1)
	for i := range grid {
		grid[i] = c.Output.CurveMin + float64(i)*step
	}
	return grid
}
