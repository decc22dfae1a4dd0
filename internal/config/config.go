package config

import (
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type CadenceConfig struct {
	ActiveIntervalSeconds    int `mapstructure:"active_interval_seconds"`
	IdleIntervalSeconds      int `mapstructure:"idle_interval_seconds"`
	DeepIdleIntervalSeconds  int `mapstructure:"deep_idle_interval_seconds"`
	IdleThresholdSeconds     int `mapstructure:"idle_threshold_seconds"`
	DeepIdleThresholdSeconds int `mapstructure:"deep_idle_threshold_seconds"`
	SwitchDelayMillis        int `mapstructure:"switch_delay_millis"`
}

type MonitorConfig struct {
	PollIntervalSeconds   int `mapstructure:"poll_interval_seconds"`
	SwitchDebounceSeconds int `mapstructure:"switch_debounce_seconds"`
}

type PrivacyConfig struct {
	ExcludedApps          []string `mapstructure:"excluded_apps"`
	ExcludedTitleKeywords []string `mapstructure:"excluded_title_keywords"`
	MaxWidth              int      `mapstructure:"max_width"`
	JPEGQuality           int      `mapstructure:"jpeg_quality"` // 1-100
}

type CaptureConfig struct {
	Command []string `mapstructure:"command"` // external screenshot tool, writes frame to stdout
	MIME    string   `mapstructure:"mime"`
}

type AIConfig struct {
	Provider               string  `mapstructure:"provider"` // "gemini" or "openai"
	APIKey                 string  `mapstructure:"api_key"`
	APIBase                string  `mapstructure:"api_base"`
	Model                  string  `mapstructure:"model"`
	Temperature            float64 `mapstructure:"temperature"`
	MaxOutputTokens        int     `mapstructure:"max_output_tokens"`
	HeaderTimeoutSeconds   int     `mapstructure:"header_timeout_seconds"`
	RequestTimeoutSeconds  int     `mapstructure:"request_timeout_seconds"`
	BatchSize              int     `mapstructure:"batch_size"`
	BatchIntervalSeconds   int     `mapstructure:"batch_interval_seconds"`
	CardContextWindowCards int     `mapstructure:"card_context_window"`
}

type Config struct {
	DatabasePath   string        `mapstructure:"database_path"`
	MainQuest      string        `mapstructure:"main_quest"`
	MaxStoredCards int           `mapstructure:"max_stored_cards"`
	Debug          bool          `mapstructure:"debug"`
	Cadence        CadenceConfig `mapstructure:"cadence"`
	Monitor        MonitorConfig `mapstructure:"monitor"`
	Privacy        PrivacyConfig `mapstructure:"privacy"`
	Capture        CaptureConfig `mapstructure:"capture"`
	AI             AIConfig      `mapstructure:"ai"`
}

func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/sls")
		viper.AddConfigPath("/etc/sls/")
	}

	viper.SetEnvPrefix("SLS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("database_path", "sls.db")
	viper.SetDefault("main_quest", "")
	viper.SetDefault("max_stored_cards", 200)
	viper.SetDefault("debug", false)
	viper.SetDefault("cadence.active_interval_seconds", 60)
	viper.SetDefault("cadence.idle_interval_seconds", 120)
	viper.SetDefault("cadence.deep_idle_interval_seconds", 300)
	viper.SetDefault("cadence.idle_threshold_seconds", 120)
	viper.SetDefault("cadence.deep_idle_threshold_seconds", 300)
	viper.SetDefault("cadence.switch_delay_millis", 1000)
	viper.SetDefault("monitor.poll_interval_seconds", 5)
	viper.SetDefault("monitor.switch_debounce_seconds", 5)
	viper.SetDefault("privacy.excluded_apps", []string{})
	viper.SetDefault("privacy.excluded_title_keywords", []string{"password", "private browsing", "incognito"})
	viper.SetDefault("privacy.max_width", 1280)
	viper.SetDefault("privacy.jpeg_quality", 60)
	viper.SetDefault("capture.command", []string{})
	viper.SetDefault("capture.mime", "image/png")
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.api_key", "")
	viper.SetDefault("ai.api_base", "https://generativelanguage.googleapis.com")
	viper.SetDefault("ai.model", "gemini-2.0-flash")
	viper.SetDefault("ai.temperature", 0.3)
	viper.SetDefault("ai.max_output_tokens", 2048)
	viper.SetDefault("ai.header_timeout_seconds", 120)
	viper.SetDefault("ai.request_timeout_seconds", 300)
	viper.SetDefault("ai.batch_size", 5)
	viper.SetDefault("ai.batch_interval_seconds", 60)
	viper.SetDefault("ai.card_context_window", 10)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logrus.Info("Config file not found, using defaults.")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Monitor.PollIntervalSeconds < 1 {
		logrus.Warn("monitor.poll_interval_seconds too low, setting to 1")
		cfg.Monitor.PollIntervalSeconds = 1
	}
	if cfg.AI.Provider != "gemini" && cfg.AI.Provider != "openai" {
		logrus.Warnf("invalid ai.provider '%s', defaulting to 'gemini'", cfg.AI.Provider)
		cfg.AI.Provider = "gemini"
	}
	if cfg.Privacy.JPEGQuality < 1 || cfg.Privacy.JPEGQuality > 100 {
		logrus.Warnf("privacy.jpeg_quality %d out of range, setting to 60", cfg.Privacy.JPEGQuality)
		cfg.Privacy.JPEGQuality = 60
	}
	if cfg.Privacy.MaxWidth < 1 {
		logrus.Warnf("privacy.max_width %d invalid, setting to 1280", cfg.Privacy.MaxWidth)
		cfg.Privacy.MaxWidth = 1280
	}

	return &cfg, nil
}

// WatchPrivacy re-reads the privacy section whenever the config file changes
// on disk, so exclusion lists can be tightened without restarting the daemon.
func WatchPrivacy(onChange func(PrivacyConfig)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		logrus.Infof("Config file changed: %s", e.Name)
		var cfg Config
		if err := viper.Unmarshal(&cfg); err != nil {
			logrus.Warnf("Failed to reload config: %v", err)
			return
		}
		onChange(cfg.Privacy)
	})
	viper.WatchConfig()
}

func (c CadenceConfig) ActiveInterval() time.Duration {
	return time.Duration(c.ActiveIntervalSeconds) * time.Second
}
func (c CadenceConfig) IdleInterval() time.Duration {
	return time.Duration(c.IdleIntervalSeconds) * time.Second
}
func (c CadenceConfig) DeepIdleInterval() time.Duration {
	return time.Duration(c.DeepIdleIntervalSeconds) * time.Second
}
func (c CadenceConfig) IdleThreshold() time.Duration {
	return time.Duration(c.IdleThresholdSeconds) * time.Second
}
func (c CadenceConfig) DeepIdleThreshold() time.Duration {
	return time.Duration(c.DeepIdleThresholdSeconds) * time.Second
}
func (c CadenceConfig) SwitchDelay() time.Duration {
	return time.Duration(c.SwitchDelayMillis) * time.Millisecond
}

func (m MonitorConfig) PollInterval() time.Duration {
	return time.Duration(m.PollIntervalSeconds) * time.Second
}
func (m MonitorConfig) SwitchDebounce() time.Duration {
	return time.Duration(m.SwitchDebounceSeconds) * time.Second
}
