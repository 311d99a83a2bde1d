package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Log      LogConfig
	Data     DataConfig
	Report   ReportConfig
	PDF      PDFConfig
	Storage  StorageConfig
	Metrics  MetricsConfig
	Schedule ScheduleConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string `validate:"required"`
	Env  string `validate:"oneof=development production test"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn warning error"`
	Format string `validate:"oneof=json console"`
	Output string // stdout, stderr, or file path
}

// DataConfig locates the store exports
type DataConfig struct {
	Dir string `validate:"required"`
}

// ReportConfig holds report generation settings
type ReportConfig struct {
	WeekDays   int `validate:"gt=0"`
	MonthDays  int `validate:"gt=0"`
	OutputDir  string
	FilePrefix string `validate:"required"`
	PDFEnabled bool
	Workers    int `validate:"gte=0"`
	Timezone   string
}

// PDFConfig holds headless Chrome settings for PDF export
type PDFConfig struct {
	RemoteURL string // DevTools websocket URL; empty launches a local browser
	NoSandbox bool
	Timeout   time.Duration `validate:"gt=0"`
}

// StorageConfig holds S3-compatible object storage settings
type StorageConfig struct {
	Enabled      bool
	Bucket       string `validate:"required_if=Enabled true"`
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	UsePathStyle bool
	KeyPrefix    string
}

// MetricsConfig holds run metrics export settings
type MetricsConfig struct {
	TextfilePath string // node-exporter textfile; empty disables export
}

// ScheduleConfig holds the daily run schedule of the schedule command
type ScheduleConfig struct {
	Cron          string // "minute hour * * *"
	RetryAttempts int    `validate:"gte=0"`
	RetryDelay    time.Duration
	JobTimeout    time.Duration
}

// Load reads configuration from an optional TOML file and KPIREPORT_* environment variables.
// An explicit configFile must exist; otherwise kpireport.toml is searched in the usual places.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("kpireport")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/kpireport")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("KPIREPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Data: DataConfig{
			Dir: v.GetString("data.dir"),
		},
		Report: ReportConfig{
			WeekDays:   v.GetInt("report.week_days"),
			MonthDays:  v.GetInt("report.month_days"),
			OutputDir:  v.GetString("report.output_dir"),
			FilePrefix: v.GetString("report.file_prefix"),
			PDFEnabled: v.GetBool("report.pdf_enabled"),
			Workers:    v.GetInt("report.workers"),
			Timezone:   v.GetString("report.timezone"),
		},
		PDF: PDFConfig{
			RemoteURL: v.GetString("pdf.remote_url"),
			NoSandbox: v.GetBool("pdf.no_sandbox"),
			Timeout:   v.GetDuration("pdf.timeout"),
		},
		Storage: StorageConfig{
			Enabled:      v.GetBool("storage.enabled"),
			Bucket:       v.GetString("storage.bucket"),
			Endpoint:     v.GetString("storage.endpoint"),
			Region:       v.GetString("storage.region"),
			AccessKey:    v.GetString("storage.access_key"),
			SecretKey:    v.GetString("storage.secret_key"),
			UseSSL:       v.GetBool("storage.use_ssl"),
			UsePathStyle: v.GetBool("storage.use_path_style"),
			KeyPrefix:    v.GetString("storage.key_prefix"),
		},
		Metrics: MetricsConfig{
			TextfilePath: v.GetString("metrics.textfile_path"),
		},
		Schedule: ScheduleConfig{
			Cron:          v.GetString("schedule.cron"),
			RetryAttempts: v.GetInt("schedule.retry_attempts"),
			RetryDelay:    v.GetDuration("schedule.retry_delay"),
			JobTimeout:    v.GetDuration("schedule.job_timeout"),
		},
	}

	// pdf_enabled defaults to true, so absence and "false" must be told apart
	if !v.IsSet("report.pdf_enabled") {
		cfg.Report.PDFEnabled = true
	}
	if !v.IsSet("schedule.retry_attempts") {
		cfg.Schedule.RetryAttempts = 3
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "kpireport"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}
	if cfg.Data.Dir == "" {
		cfg.Data.Dir = "data"
	}
	if cfg.Report.WeekDays == 0 {
		cfg.Report.WeekDays = 7
	}
	if cfg.Report.MonthDays == 0 {
		cfg.Report.MonthDays = 30
	}
	if cfg.Report.OutputDir == "" {
		cfg.Report.OutputDir = "reports"
	}
	if cfg.Report.FilePrefix == "" {
		cfg.Report.FilePrefix = "franchise_report"
	}
	if cfg.Report.Timezone == "" {
		cfg.Report.Timezone = "UTC"
	}
	if cfg.PDF.Timeout == 0 {
		cfg.PDF.Timeout = 60 * time.Second
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Schedule.Cron == "" {
		cfg.Schedule.Cron = "0 6 * * *"
	}
	if cfg.Schedule.RetryDelay == 0 {
		cfg.Schedule.RetryDelay = 5 * time.Minute
	}
	if cfg.Schedule.JobTimeout == 0 {
		cfg.Schedule.JobTimeout = 30 * time.Minute
	}
}

// Validate checks field constraints and cross-field rules
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := time.LoadLocation(c.Report.Timezone); err != nil {
		return fmt.Errorf("report.timezone %q is not a known time zone", c.Report.Timezone)
	}
	if c.Storage.Enabled && (c.Storage.AccessKey == "") != (c.Storage.SecretKey == "") {
		return fmt.Errorf("storage.access_key and storage.secret_key must be set together")
	}
	return nil
}

// Location returns the report time zone
func (r *ReportConfig) Location() *time.Location {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
