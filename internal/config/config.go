// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"firestige.xyz/rohc/internal/core"
	"firestige.xyz/rohc/internal/core/cid"
	"firestige.xyz/rohc/internal/core/complist"
	"firestige.xyz/rohc/internal/core/decomp"
)

// GlobalConfig represents the top-level configuration.
// Maps to the `rohc:` root key in YAML.
type GlobalConfig struct {
	Decompressor DecompressorConfig `mapstructure:"decompressor"`
	Input        InputConfig        `mapstructure:"input"`
	Output       OutputConfig       `mapstructure:"output"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Log          LogConfig          `mapstructure:"log"`
}

// ─── Decompressor ───

// DecompressorConfig tunes the channel and every context created on it.
type DecompressorConfig struct {
	CIDType    string           `mapstructure:"cid_type"` // small | large
	MaxCID     int              `mapstructure:"max_cid"`
	List       ListConfig       `mapstructure:"list"`
	Correction CorrectionConfig `mapstructure:"correction"`

	// Profiles holds the raw option map of each profile, keyed by profile
	// name (rtp / udp / ip / udplite). See ProfileOptions.
	Profiles map[string]map[string]any `mapstructure:"profiles"`

	cidType core.CIDType
	options map[core.ProfileID]ProfileOptions
}

// ListConfig configures the extension header list decompressor.
type ListConfig struct {
	TranslationTableSize int `mapstructure:"translation_table_size"`
	WindowSize           int `mapstructure:"window_size"`
	RefConfirmations     int `mapstructure:"ref_confirmations"`
}

// CorrectionConfig configures the context damage detection.
type CorrectionConfig struct {
	MaxCRCFailures int `mapstructure:"max_crc_failures"`
}

// ProfileOptions are the per-profile switches.
type ProfileOptions struct {
	Enabled bool `mapstructure:"enabled"`
	// Strict drops the whole context of the profile once it is declared
	// damaged, instead of keeping its static part.
	Strict bool `mapstructure:"strict"`
}

// CID returns the parsed CID type. Valid after ValidateAndApplyDefaults.
func (c *DecompressorConfig) CID() core.CIDType { return c.cidType }

// ProfileOptions returns the decoded options of every configured profile.
// Valid after ValidateAndApplyDefaults.
func (c *DecompressorConfig) ProfileOptions() map[core.ProfileID]ProfileOptions {
	out := make(map[core.ProfileID]ProfileOptions, len(c.options))
	for id, o := range c.options {
		out[id] = o
	}
	return out
}

// ContextConfig returns the settings handed to every decompression context.
func (c *DecompressorConfig) ContextConfig() decomp.Config {
	return decomp.Config{
		List: complist.Config{
			TableSize:        c.List.TranslationTableSize,
			WindowSize:       c.List.WindowSize,
			RefConfirmations: c.List.RefConfirmations,
		},
		MaxCRCFailures: c.Correction.MaxCRCFailures,
	}
}

// ─── Input / Output ───

// InputConfig describes where ROHC packets come from.
type InputConfig struct {
	// Port is the UDP port carrying ROHC packets inside a capture file.
	Port int `mapstructure:"port"`
	// Listen is the UDP address the listen command binds to.
	Listen    string `mapstructure:"listen"`
	BatchSize int    `mapstructure:"batch_size"`
}

// OutputConfig describes where decompressed packets go.
type OutputConfig struct {
	Pcap   string `mapstructure:"pcap"`   // decompressed packets, empty = none
	Report string `mapstructure:"report"` // per-CID YAML report, empty = none
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"`   // trace / debug / info / warn / error
	Format  string           `mapstructure:"format"`  // json / text
	Pattern string           `mapstructure:"pattern"` // text layout, see log.formatter
	Time    string           `mapstructure:"time"`    // time layout of %time
	Outputs LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains log output destinations. Stdout is always used.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `rohc: ...`.
type configRoot struct {
	ROHC GlobalConfig `mapstructure:"rohc"`
}

// Load loads configuration from file. An empty path loads the defaults,
// still subject to environment overrides.
// The YAML file uses `rohc:` as root key; env vars use the ROHC_ prefix
// (e.g., ROHC_DECOMPRESSOR_CID_TYPE).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// key "rohc.log.level" maps to env "ROHC_LOG_LEVEL"
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.ROHC

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use the "rohc." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Decompressor defaults
	v.SetDefault("rohc.decompressor.cid_type", core.SmallCID.String())
	v.SetDefault("rohc.decompressor.max_cid", cid.MaxSmall)
	v.SetDefault("rohc.decompressor.list.translation_table_size", complist.DefaultTableSize)
	v.SetDefault("rohc.decompressor.list.window_size", complist.DefaultWindowSize)
	v.SetDefault("rohc.decompressor.list.ref_confirmations", complist.DefaultRefConfirmations)
	v.SetDefault("rohc.decompressor.correction.max_crc_failures", decomp.DefaultMaxCRCFailures)
	for _, p := range []core.ProfileID{core.ProfileRTP, core.ProfileUDP, core.ProfileIP, core.ProfileUDPLite} {
		v.SetDefault("rohc.decompressor.profiles."+p.String()+".enabled", true)
		v.SetDefault("rohc.decompressor.profiles."+p.String()+".strict", false)
	}

	// Input defaults
	v.SetDefault("rohc.input.port", 5004)
	v.SetDefault("rohc.input.listen", ":5004")
	v.SetDefault("rohc.input.batch_size", 32)

	// Log defaults
	v.SetDefault("rohc.log.level", "info")
	v.SetDefault("rohc.log.format", "text")
	v.SetDefault("rohc.log.pattern", "%time [%level] %field %msg\n")
	v.SetDefault("rohc.log.time", "2006-01-02 15:04:05.000")
	v.SetDefault("rohc.log.outputs.file.enabled", false)
	v.SetDefault("rohc.log.outputs.file.path", "/var/log/rohc/rohc.log")
	v.SetDefault("rohc.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("rohc.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("rohc.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("rohc.log.outputs.file.rotation.compress", true)

	// Metrics defaults
	v.SetDefault("rohc.metrics.enabled", false)
	v.SetDefault("rohc.metrics.listen", ":9091")
	v.SetDefault("rohc.metrics.path", "/metrics")
}

// ValidateAndApplyDefaults validates configuration and resolves the values
// derived from it. Every error wraps core.ErrConfigInvalid.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("%w: invalid log level: %s (must be trace/debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("%w: invalid log format: %s (must be json/text)", core.ErrConfigInvalid, cfg.Log.Format)
	}
	if cfg.Log.Outputs.File.Enabled && cfg.Log.Outputs.File.Path == "" {
		return fmt.Errorf("%w: log.outputs.file.path is required when the file output is enabled", core.ErrConfigInvalid)
	}

	// ── Decompressor ──
	if err := cfg.Decompressor.validate(); err != nil {
		return err
	}

	// ── Input ──
	if cfg.Input.Port < 0 || cfg.Input.Port > 65535 {
		return fmt.Errorf("%w: input.port %d out of range", core.ErrConfigInvalid, cfg.Input.Port)
	}
	if cfg.Input.BatchSize <= 0 {
		cfg.Input.BatchSize = 1
	}

	// ── Metrics ──
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return fmt.Errorf("%w: metrics.listen is required when metrics are enabled", core.ErrConfigInvalid)
	}
	return nil
}

func (c *DecompressorConfig) validate() error {
	switch strings.ToLower(c.CIDType) {
	case "small":
		c.cidType = core.SmallCID
	case "large":
		c.cidType = core.LargeCID
	default:
		return fmt.Errorf("%w: invalid cid_type: %s (must be small/large)", core.ErrConfigInvalid, c.CIDType)
	}
	if maxCID := int(cid.Max(c.cidType)); c.MaxCID < 0 || c.MaxCID > maxCID {
		return fmt.Errorf("%w: max_cid %d not in [0, %d] for %s CIDs", core.ErrConfigInvalid, c.MaxCID, maxCID, c.cidType)
	}
	if err := c.ContextConfig().Validate(); err != nil {
		return err
	}

	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	c.options = make(map[core.ProfileID]ProfileOptions, len(names))
	for _, name := range names {
		id, err := core.ParseProfileID(name)
		if err != nil {
			return fmt.Errorf("%w: %v", core.ErrConfigInvalid, err)
		}
		opts, err := decodeProfileOptions(c.Profiles[name])
		if err != nil {
			return fmt.Errorf("%w: profiles.%s: %v", core.ErrConfigInvalid, name, err)
		}
		c.options[id] = opts
	}
	return nil
}

// decodeProfileOptions decodes one profile option map. Unknown keys are
// rejected.
func decodeProfileOptions(raw map[string]any) (ProfileOptions, error) {
	var opts ProfileOptions
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &opts,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return opts, err
	}
	err = dec.Decode(raw)
	return opts, err
}
