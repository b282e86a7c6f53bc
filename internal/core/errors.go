package core

import "errors"

// Sentinel errors. Callers wrap them with %w and match with errors.Is.
var (
	// List compression errors
	ErrMalformedList     = errors.New("rohc: malformed compressed list")
	ErrInvalidItemData   = errors.New("rohc: invalid list item data")
	ErrUnknownGeneration = errors.New("rohc: unknown list generation")

	// Packet parsing errors
	ErrPacketTooShort    = errors.New("rohc: packet too short")
	ErrMalformedPacket   = errors.New("rohc: malformed packet")
	ErrUnknownPacketType = errors.New("rohc: unknown packet type")
	ErrUnsupported       = errors.New("rohc: unsupported feature")

	// Value reconstruction errors
	ErrSNDecodeAmbiguous   = errors.New("rohc: SN decoding ambiguous")
	ErrIPIDDecodeAmbiguous = errors.New("rohc: IP-ID decoding ambiguous")
	ErrCRCMismatch         = errors.New("rohc: CRC mismatch")
	ErrContextDamaged      = errors.New("rohc: context damaged")

	// Context management errors
	ErrNoContext          = errors.New("rohc: no context for CID")
	ErrUnsupportedProfile = errors.New("rohc: unsupported profile")
	ErrProfileMismatch    = errors.New("rohc: profile does not match context")

	// Argument and configuration errors
	ErrInvalidArgument = errors.New("rohc: invalid argument")
	ErrConfigInvalid   = errors.New("rohc: invalid configuration")
)
