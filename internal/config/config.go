// Package config handles configuration loading using viper.
package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the top-level configuration.
// Maps to the `otus-inject:` root key in YAML.
type Config struct {
	Log      LogConfig               `mapstructure:"log"`
	Metrics  MetricsConfig           `mapstructure:"metrics"`
	Device   DeviceConfig            `mapstructure:"device"`
	Pipeline PipelineConfig          `mapstructure:"pipeline"`
	Packet   PacketConfig            `mapstructure:"packet"`
	Presets  map[string]PacketConfig `mapstructure:"presets"` // user presets, registered next to the built-ins
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string     `mapstructure:"level"`   // trace / debug / info / warn / error
	Format  string     `mapstructure:"format"`  // text / json
	Pattern string     `mapstructure:"pattern"` // text only, see log.formatter
	Time    string     `mapstructure:"time"`    // Go time layout
	File    FileConfig `mapstructure:"file"`
}

// FileConfig configures rotated file output next to stdout.
type FileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Device ───

// DeviceConfig selects the injection device.
type DeviceConfig struct {
	Type      string         `mapstructure:"type"`      // pcap | afpacket | pcapfile | discard
	Interface string         `mapstructure:"interface"` // required for pcap and afpacket
	Options   map[string]any `mapstructure:"options"`   // type specific, decoded by the device package
}

// ─── Pipeline ───

// PipelineConfig tunes the injection pipeline.
type PipelineConfig struct {
	BatchSize           int           `mapstructure:"batch_size"`
	QueueCapacity       int           `mapstructure:"queue_capacity"`
	Workers             int           `mapstructure:"workers"` // 0 = GOMAXPROCS
	ProgressEvery       uint64        `mapstructure:"progress_every"`
	ProgressMinInterval time.Duration `mapstructure:"progress_min_interval"`
	Seed                int64         `mapstructure:"seed"` // 0 = time based
}

// ─── Packet ───

// PacketConfig holds textual packet overrides. Unset fields (nil pointers,
// empty strings) keep the value of the preset or of the defaults table.
type PacketConfig struct {
	Preset string `mapstructure:"preset"`

	SrcMAC string `mapstructure:"src_mac"`
	DstMAC string `mapstructure:"dst_mac"`

	SrcIP          string  `mapstructure:"src_ip"`
	DstIP          string  `mapstructure:"dst_ip"`
	IPVersion      *uint8  `mapstructure:"ip_version"`
	IPHeaderLength *uint8  `mapstructure:"ip_header_length"`
	DSCP           *uint8  `mapstructure:"dscp"`
	ECN            *uint8  `mapstructure:"ecn"`
	Identification *uint16 `mapstructure:"identification"`
	IPFlags        *uint8  `mapstructure:"ip_flags"`
	TTL            *uint8  `mapstructure:"ttl"`
	Protocol       *uint8  `mapstructure:"protocol"`

	SrcPort  *uint16 `mapstructure:"src_port"`
	DstPort  *uint16 `mapstructure:"dst_port"`
	TCPFlags string  `mapstructure:"tcp_flags"` // e.g. "SYN|ACK" or "0x12"
	SeqMode  string  `mapstructure:"seq_mode"`  // zero | random | per-frame

	Payload     string `mapstructure:"payload"`      // literal text
	PayloadHex  string `mapstructure:"payload_hex"`  // wins over payload
	PayloadSize *int   `mapstructure:"payload_size"` // zero filled, used when no payload is given

	Count    *uint64        `mapstructure:"count"`
	Interval *time.Duration `mapstructure:"interval"`
	Timeout  *time.Duration `mapstructure:"timeout"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `otus-inject: ...`.
type configRoot struct {
	OtusInject Config `mapstructure:"otus-inject"`
}

// Load loads configuration from file. An empty path loads defaults and
// environment overrides only.
// Env vars use the OTUS_INJECT_ prefix (e.g., OTUS_INJECT_LOG_LEVEL).
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `otus-inject.` key prefix maps to `OTUS_INJECT_` through the replacer.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindPacketEnv(v); err != nil {
		return nil, fmt.Errorf("failed to bind packet env: %w", err)
	}

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.OtusInject

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// bindPacketEnv makes OTUS_INJECT_PACKET_* variables visible. Packet keys have
// no defaults (unset means "keep the preset value"), so AutomaticEnv alone
// never looks them up.
func bindPacketEnv(v *viper.Viper) error {
	t := reflect.TypeOf(PacketConfig{})
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("mapstructure")
		if tag == "" {
			continue
		}
		key := "otus-inject.packet." + tag
		if err := v.BindEnv(key, "OTUS_INJECT_PACKET_"+strings.ToUpper(tag)); err != nil {
			return err
		}
	}
	return nil
}

// setDefaults sets default values for configuration.
// All keys use "otus-inject." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("otus-inject.log.level", "info")
	v.SetDefault("otus-inject.log.format", "text")
	v.SetDefault("otus-inject.log.pattern", "%time [%level] %msg %field\n")
	v.SetDefault("otus-inject.log.time", "2006-01-02 15:04:05.000")
	v.SetDefault("otus-inject.log.file.enabled", false)
	v.SetDefault("otus-inject.log.file.path", "/var/log/otus-inject/otus-inject.log")
	v.SetDefault("otus-inject.log.file.max_size_mb", 100)
	v.SetDefault("otus-inject.log.file.max_age_days", 30)
	v.SetDefault("otus-inject.log.file.max_backups", 5)
	v.SetDefault("otus-inject.log.file.compress", true)

	// Metrics defaults
	v.SetDefault("otus-inject.metrics.enabled", false)
	v.SetDefault("otus-inject.metrics.listen", ":9091")
	v.SetDefault("otus-inject.metrics.path", "/metrics")

	// Device defaults
	v.SetDefault("otus-inject.device.type", "pcap")
	v.SetDefault("otus-inject.device.interface", "")

	// Pipeline defaults
	v.SetDefault("otus-inject.pipeline.batch_size", 1000)
	v.SetDefault("otus-inject.pipeline.queue_capacity", 100)
	v.SetDefault("otus-inject.pipeline.workers", 0)
	v.SetDefault("otus-inject.pipeline.progress_every", 10000)
	v.SetDefault("otus-inject.pipeline.progress_min_interval", "1s")
	v.SetDefault("otus-inject.pipeline.seed", 0)
}

var (
	validLevels      = map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	validDeviceTypes = map[string]bool{"pcap": true, "afpacket": true, "pcapfile": true, "discard": true}
)

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *Config) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be trace/debug/info/warn/error)", cfg.Log.Level)
	}
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json/text)", cfg.Log.Format)
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Path == "" {
		return fmt.Errorf("log.file.path is required when log.file.enabled=true")
	}

	// ── Device validation ──
	cfg.Device.Type = strings.ToLower(strings.TrimSpace(cfg.Device.Type))
	if !validDeviceTypes[cfg.Device.Type] {
		return fmt.Errorf("unsupported device.type: %s (must be pcap/afpacket/pcapfile/discard)", cfg.Device.Type)
	}
	if cfg.Device.Options == nil {
		cfg.Device.Options = map[string]any{}
	}

	// ── Pipeline validation ──
	if cfg.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("pipeline.batch_size must be positive, got %d", cfg.Pipeline.BatchSize)
	}
	if cfg.Pipeline.QueueCapacity <= 0 {
		return fmt.Errorf("pipeline.queue_capacity must be positive, got %d", cfg.Pipeline.QueueCapacity)
	}
	if cfg.Pipeline.Workers < 0 {
		return fmt.Errorf("pipeline.workers must not be negative, got %d", cfg.Pipeline.Workers)
	}
	if cfg.Pipeline.ProgressMinInterval < 0 {
		return fmt.Errorf("pipeline.progress_min_interval must not be negative, got %s", cfg.Pipeline.ProgressMinInterval)
	}

	// ── Metrics ──
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen is required when metrics.enabled=true")
	}

	for name := range cfg.Presets {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("presets: empty preset name")
		}
	}

	return nil
}

// RequiresInterface reports whether the configured device type writes to a
// network interface.
func (d DeviceConfig) RequiresInterface() bool {
	return d.Type == "pcap" || d.Type == "afpacket"
}
