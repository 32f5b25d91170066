package memory

import "github.com/valerio/go-jeebie/jeebie/bit"

const titleLength = 11

const (
	titleAddress          = 0x134
	cartridgeTypeAddress  = 0x147
	romSizeAddress        = 0x148
	ramSizeAddress        = 0x149
	versionNumberAddress  = 0x14C
	headerChecksumAddress = 0x14D
	globalChecksumAddress = 0x14E
)

// MBCKind identifies which memory bank controller a cartridge header requests.
type MBCKind uint8

const (
	NoMBCType MBCKind = iota
	MBC1Type
	MBC1MultiType
	MBC2Type
	MBC3Type
	MBC5Type
	MBCUnknownType
)

// Cartridge holds ROM data and the header metadata needed to pick an MBC.
type Cartridge struct {
	data           []byte
	title          string
	headerChecksum uint8
	globalChecksum uint16
	version        uint8
	cartType       uint8
	romSize        uint8
	ramSize        uint8

	mbcType      MBCKind
	hasBattery   bool
	hasRTC       bool
	hasRumble    bool
	ramBankCount uint8
}

// NewCartridge creates an empty cartridge, useful only for debugging purposes.
func NewCartridge() *Cartridge {
	return &Cartridge{
		data:    make([]byte, 0x8000),
		mbcType: NoMBCType,
	}
}

// NewCartridgeWithData initializes a new Cartridge from a slice of bytes,
// deriving the MBC kind and RAM size from the header type byte.
func NewCartridgeWithData(bytes []byte) *Cartridge {
	titleBytes := bytes[titleAddress : titleAddress+titleLength]

	cart := &Cartridge{
		data:           make([]byte, len(bytes)),
		title:          cleanGameboyTitle(titleBytes),
		headerChecksum: bytes[headerChecksumAddress],
		globalChecksum: bit.Combine(bytes[globalChecksumAddress], bytes[globalChecksumAddress+1]),
		version:        bytes[versionNumberAddress],
		cartType:       bytes[cartridgeTypeAddress],
		romSize:        bytes[romSizeAddress],
		ramSize:        bytes[ramSizeAddress],
	}

	copy(cart.data, bytes)

	cart.mbcType, cart.hasBattery, cart.hasRTC, cart.hasRumble = classifyCartType(cart.cartType)
	cart.ramBankCount = ramBankCountFromHeader(cart.ramSize)

	return cart
}

// classifyCartType maps the cartridge header's type byte (0x147) to an MBC
// kind and the auxiliary hardware flags Pan Docs documents for that byte.
func classifyCartType(cartType uint8) (kind MBCKind, battery, rtc, rumble bool) {
	switch cartType {
	case 0x00:
		return NoMBCType, false, false, false
	case 0x01, 0x02:
		return MBC1Type, false, false, false
	case 0x03:
		return MBC1Type, true, false, false
	case 0x05:
		return MBC2Type, false, false, false
	case 0x06:
		return MBC2Type, true, false, false
	case 0x0F, 0x10:
		return MBC3Type, true, true, false
	case 0x11, 0x12:
		return MBC3Type, false, false, false
	case 0x13:
		return MBC3Type, true, false, false
	case 0x19, 0x1A:
		return MBC5Type, false, false, false
	case 0x1B:
		return MBC5Type, true, false, false
	case 0x1C, 0x1D:
		return MBC5Type, false, false, true
	case 0x1E:
		return MBC5Type, true, false, true
	default:
		return MBCUnknownType, false, false, false
	}
}

// ramBankCountFromHeader maps the header's RAM size byte (0x149) to a bank count.
func ramBankCountFromHeader(ramSize uint8) uint8 {
	switch ramSize {
	case 0x00:
		return 0
	case 0x01:
		return 1 // 2KB, partial bank in practice
	case 0x02:
		return 1
	case 0x03:
		return 4
	case 0x04:
		return 16
	case 0x05:
		return 8
	default:
		return 0
	}
}

// ReadByte reads a byte at the specified address. Does not check bounds, so the caller must make sure the
// address is valid for the cartridge.
func (c *Cartridge) ReadByte(addr uint16) uint8 {
	return c.data[addr]
}

// Title returns the cleaned-up game title from the cartridge header.
func (c *Cartridge) Title() string {
	return c.title
}

// HeaderChecksumValid recomputes the DMG header checksum over 0x134-0x14C
// and compares it against the byte stored at 0x14D, per the algorithm every
// official boot ROM runs before handing off to cartridge code.
func (c *Cartridge) HeaderChecksumValid() bool {
	if len(c.data) <= headerChecksumAddress {
		return false
	}
	computed, expected := c.HeaderChecksum()
	return computed == expected
}

// HeaderChecksum returns the checksum this cartridge actually computes over
// 0x134-0x14C alongside the value stored in its header at 0x14D, so callers
// can report a meaningful mismatch.
func (c *Cartridge) HeaderChecksum() (computed, expected uint8) {
	if len(c.data) <= headerChecksumAddress {
		return 0, c.headerChecksum
	}

	var x uint8
	for i := titleAddress; i < headerChecksumAddress; i++ {
		x = x - c.data[i] - 1
	}

	return x, c.headerChecksum
}
