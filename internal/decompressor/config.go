package decompressor

import (
	"fmt"

	"firestige.xyz/rohc/internal/config"
	"firestige.xyz/rohc/internal/core"
	"firestige.xyz/rohc/internal/core/cid"
	"firestige.xyz/rohc/internal/core/decomp"
)

// Config tunes a Decompressor.
type Config struct {
	CIDType core.CIDType
	MaxCID  uint16
	Context decomp.Config
	// Profiles lists the profiles a context may be created for. A profile
	// missing from the map is disabled.
	Profiles map[core.ProfileID]config.ProfileOptions
}

// DefaultConfig returns a small CID channel with every profile enabled.
func DefaultConfig() Config {
	return Config{
		CIDType: core.SmallCID,
		MaxCID:  cid.MaxSmall,
		Context: decomp.DefaultConfig(),
		Profiles: map[core.ProfileID]config.ProfileOptions{
			core.ProfileRTP:     {Enabled: true},
			core.ProfileUDP:     {Enabled: true},
			core.ProfileIP:      {Enabled: true},
			core.ProfileUDPLite: {Enabled: true},
		},
	}
}

// ConfigFrom converts a validated decompressor section.
func ConfigFrom(c *config.DecompressorConfig) Config {
	return Config{
		CIDType:  c.CID(),
		MaxCID:   uint16(c.MaxCID),
		Context:  c.ContextConfig(),
		Profiles: c.ProfileOptions(),
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	if c.MaxCID > cid.Max(c.CIDType) {
		return fmt.Errorf("%w: max CID %d above %d for %s CIDs", core.ErrConfigInvalid, c.MaxCID, cid.Max(c.CIDType), c.CIDType)
	}
	return c.Context.Validate()
}

func (c Config) options(id core.ProfileID) config.ProfileOptions {
	return c.Profiles[id]
}
