package decomp

import (
	"github.com/google/gopacket"

	"firestige.xyz/rohc/internal/core"
	"firestige.xyz/rohc/internal/core/crc"
)

// ipProfile compresses IP headers only (RFC 3843).
type ipProfile struct{}

func (ipProfile) ID() core.ProfileID      { return core.ProfileIP }
func (ipProfile) RTP() bool               { return false }
func (ipProfile) Protocol() (uint8, bool) { return 0, false }

func (ipProfile) ParseStatic([]byte, *Upper) (int, error) { return 0, nil }

func (ipProfile) ParseDynamic(data []byte, _ *Upper) (int, uint32, error) {
	r := &reader{data: data}
	sn, err := readSN(r)
	return r.pos, sn, err
}

func (ipProfile) ParseTail([]byte, *Upper) (int, error) { return 0, nil }

func (ipProfile) DecodeValues(*Upper, *Bits, uint32, uint32) error { return nil }

func (ipProfile) Build(gopacket.SerializeBuffer, *Upper, uint32) error { return nil }

func (ipProfile) CRCStatic(_ crc.Kind, v uint8, _ []byte) uint8  { return v }
func (ipProfile) CRCDynamic(_ crc.Kind, v uint8, _ []byte) uint8 { return v }

func (ipProfile) Commit(*Upper) {}
