package decomp

import (
	"fmt"

	"firestige.xyz/rohc/internal/core"
	"firestige.xyz/rohc/internal/core/complist"
)

// DefaultMaxCRCFailures is how many UO CRC failures in a row a context
// tolerates before it is declared damaged.
const DefaultMaxCRCFailures = 3

// Config tunes one decompression context.
type Config struct {
	List           complist.Config
	MaxCRCFailures int
}

// DefaultConfig returns the usual context settings.
func DefaultConfig() Config {
	return Config{
		List:           complist.DefaultConfig(),
		MaxCRCFailures: DefaultMaxCRCFailures,
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	if err := c.List.Validate(); err != nil {
		return err
	}
	if c.MaxCRCFailures < 0 {
		return fmt.Errorf("%w: max CRC failures must not be negative", core.ErrConfigInvalid)
	}
	return nil
}
