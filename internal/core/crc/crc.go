// Package crc computes the ROHC header CRCs of RFC 3095 §5.9.
//
// All three CRCs are reflected and table driven. The polynomials below are
// the bit-reversed forms of
//
//	CRC-3: 1 + x + x^3
//	CRC-7: 1 + x + x^2 + x^3 + x^6 + x^7
//	CRC-8: 1 + x + x^2 + x^8
package crc

import "fmt"

// Kind selects one of the ROHC CRC widths.
type Kind uint8

const (
	CRC3 Kind = iota
	CRC7
	CRC8
)

const (
	poly3 = 0x6
	poly7 = 0x79
	poly8 = 0xe0
)

var (
	table3 = makeTable(poly3)
	table7 = makeTable(poly7)
	table8 = makeTable(poly8)
)

func makeTable(poly uint8) [256]uint8 {
	var t [256]uint8
	for i := 0; i < 256; i++ {
		c := uint8(i)
		for j := 0; j < 8; j++ {
			if c&1 != 0 {
				c = c>>1 ^ poly
			} else {
				c >>= 1
			}
		}
		t[i] = c
	}
	return t
}

func (k Kind) String() string {
	switch k {
	case CRC3:
		return "crc3"
	case CRC7:
		return "crc7"
	case CRC8:
		return "crc8"
	default:
		return fmt.Sprintf("crc(%d)", uint8(k))
	}
}

// Width returns the CRC width in bits.
func (k Kind) Width() int {
	switch k {
	case CRC3:
		return 3
	case CRC7:
		return 7
	default:
		return 8
	}
}

// Init returns the initial register value for k.
func (k Kind) Init() uint8 {
	switch k {
	case CRC3:
		return 0x7
	case CRC7:
		return 0x7f
	default:
		return 0xff
	}
}

// Update folds data into a running CRC.
func (k Kind) Update(crc uint8, data []byte) uint8 {
	switch k {
	case CRC3:
		for _, b := range data {
			crc = table3[b^(crc&0x07)]
		}
	case CRC7:
		for _, b := range data {
			crc = table7[b^(crc&0x7f)]
		}
	default:
		for _, b := range data {
			crc = table8[b^crc]
		}
	}
	return crc
}

// Checksum computes the CRC of data from the initial value.
func (k Kind) Checksum(data []byte) uint8 {
	return k.Update(k.Init(), data)
}
