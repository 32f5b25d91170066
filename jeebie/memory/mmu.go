package memory

import (
	"fmt"
	"log/slog"

	"github.com/valerio/go-jeebie/jeebie/addr"
	"github.com/valerio/go-jeebie/jeebie/audio"
	"github.com/valerio/go-jeebie/jeebie/bit"
	"github.com/valerio/go-jeebie/jeebie/serial"
)

type memRegion uint8

const (
	regionROM memRegion = iota
	regionVRAM
	regionExtRAM
	regionWRAM
	regionEcho
	regionOAM
	regionIO
)

// JoypadKey represents a key on the Gameboy joypad
type JoypadKey uint8

const (
	JoypadRight JoypadKey = iota
	JoypadLeft
	JoypadUp
	JoypadDown
	JoypadA
	JoypadB
	JoypadSelect
	JoypadStart
)

// SerialPort is the minimal interface for a serial device connected to SB/SC.
// Implementations MUST only accept reads/writes to addr.SB and addr.SC.
type SerialPort interface {
	Write(address uint16, value byte)
	Read(address uint16) byte
	Tick(cycles int)
	Reset()
}

// PPUMode mirrors the PPU's current mode, as reported to the MMU for the
// purposes of gating CPU-side VRAM/OAM access. Kept independent from the
// video package's own mode type to avoid an import cycle.
type PPUMode uint8

const (
	ModeHBlank PPUMode = iota
	ModeVBlank
	ModeOAMScan
	ModePixelTransfer
)

// MMU allows access to all memory mapped I/O and data/registers
type MMU struct {
	cart      *Cartridge
	mbc       MBC
	memory    []byte
	APU       *audio.APU
	regionMap [256]memRegion

	bootROM       []byte
	bootROMActive bool

	ppuMode func() PPUMode // set by the PPU; nil means "no gating"

	joypadButtons uint8 // Actual state of buttons A/B/Start/Select, mapped to low bits of P1
	joypadDpad    uint8 // Actual state of d-pad directions, mapped to low bits of P1

	serial SerialPort
	timer  Timer
}

// New creates a new memory unit with default data, i.e. nothing cartridge loaded.
// Equivalent to turning on a Gameboy without a cartridge in.
func New() *MMU {
	mmu := &MMU{
		memory:        make([]byte, 0x10000),
		cart:          NewCartridge(),
		APU:           audio.New(),
		joypadButtons: 0x0F,
		joypadDpad:    0x0F,
	}
	mmu.mbc = NewNoMBC(mmu.cart.data)
	mmu.serial = serial.NewLogSink(func() { mmu.RequestInterrupt(addr.SerialInterrupt) })
	mmu.timer.TimerInterruptHandler = func() { mmu.RequestInterrupt(addr.TimerInterrupt) }
	initRegionMap(mmu)
	return mmu
}

// NewWithCartridge creates a new memory unit with the provided cartridge data loaded.
// Equivalent to turning on a Gameboy with a cartridge in.
func NewWithCartridge(cart *Cartridge) *MMU {
	mmu := New()
	mmu.cart = cart

	switch cart.mbcType {
	case NoMBCType, MBCUnknownType:
		mmu.mbc = NewNoMBC(cart.data)
	case MBC1Type, MBC1MultiType:
		mmu.mbc = NewMBC1(cart.data, cart.hasBattery, cart.ramBankCount)
	case MBC2Type, MBC3Type, MBC5Type:
		slog.Warn("cartridge requests an MBC kind that is not implemented, falling back to direct mapping", "mbcType", cart.mbcType)
		mmu.mbc = NewNoMBC(cart.data)
	default:
		slog.Warn("unrecognized MBC type, falling back to direct mapping", "mbcType", cart.mbcType)
		mmu.mbc = NewNoMBC(cart.data)
	}

	return mmu
}

// SetPPUModeProvider registers a callback the MMU uses to gate CPU-side
// VRAM access during pixel transfer and OAM access during OAM scan and
// pixel transfer, matching real hardware's bus-contention behavior.
func (m *MMU) SetPPUModeProvider(f func() PPUMode) {
	m.ppuMode = f
}

// Tick advances any i/o that needs it, if any.
func (m *MMU) Tick(cycles int) {
	m.timer.Tick(cycles)
	m.APU.Tick(cycles)
	if m.serial != nil {
		m.serial.Tick(cycles)
	}
}

// SetTimerSeed initializes the internal timer divider seed and DIV register.
func (m *MMU) SetTimerSeed(seed uint16) {
	m.timer.SetSeed(seed)
}

// State is a flattened, serializable snapshot of the MMU's own storage:
// its 64KiB backing array (copied directly, not through Read, so it holds
// neither the boot-ROM overlay nor cartridge ROM/RAM), the timer's internal
// divider and register state, the boot-ROM latch, and the joypad's
// button/d-pad line state. APU registers are not part of it.
type State struct {
	Memory        [0x10000]byte
	BootROMActive bool
	Timer         TimerState
	JoypadButtons uint8
	JoypadDpad    uint8
}

// Snapshot captures the MMU's memory image, timer, and joypad latch state.
// Audio register state is captured separately by the caller (via m.APU,
// which this package already exposes) to avoid coupling this type to the
// audio package's own save-state representation.
func (m *MMU) Snapshot() State {
	var s State
	copy(s.Memory[:], m.memory)
	s.BootROMActive = m.bootROMActive
	s.Timer = m.timer.Snapshot()
	s.JoypadButtons = m.joypadButtons
	s.JoypadDpad = m.joypadDpad
	return s
}

// Restore reinstates a previously captured State. The cartridge/MBC and
// boot ROM image themselves are not part of the snapshot: callers restore
// onto an MMU already wired to the same cartridge.
func (m *MMU) Restore(s State) {
	copy(m.memory, s.Memory[:])
	m.bootROMActive = s.BootROMActive
	m.timer.Restore(s.Timer)
	m.joypadButtons = s.JoypadButtons
	m.joypadDpad = s.JoypadDpad
}

func initRegionMap(m *MMU) {
	// ROM: 0x0000-0x7FFF
	for i := 0x00; i <= 0x7F; i++ {
		m.regionMap[i] = regionROM
	}
	// VRAM: 0x8000-0x9FFF
	for i := 0x80; i <= 0x9F; i++ {
		m.regionMap[i] = regionVRAM
	}
	// External RAM: 0xA000-0xBFFF
	for i := 0xA0; i <= 0xBF; i++ {
		m.regionMap[i] = regionExtRAM
	}
	// Work RAM: 0xC000-0xDFFF
	for i := 0xC0; i <= 0xDF; i++ {
		m.regionMap[i] = regionWRAM
	}
	// Echo RAM: 0xE000-0xFDFF
	for i := 0xE0; i <= 0xFD; i++ {
		m.regionMap[i] = regionEcho
	}
	// OAM: 0xFE00-0xFE9F, Unusable: 0xFEA0-0xFEFF (both handled in Read/Write)
	m.regionMap[0xFE] = regionOAM
	// IO + HRAM: 0xFF00-0xFFFF
	m.regionMap[0xFF] = regionIO
}

// RequestInterrupt sets the interrupt flag (IF register) of the chosen interrupt to 1.
func (m *MMU) RequestInterrupt(interrupt addr.Interrupt) {
	interruptFlags := m.Read(addr.IF)

	var bitPos uint8
	switch interrupt {
	case addr.VBlankInterrupt:
		bitPos = 0
	case addr.LCDSTATInterrupt:
		bitPos = 1
	case addr.TimerInterrupt:
		bitPos = 2
	case addr.SerialInterrupt:
		bitPos = 3
	case addr.JoypadInterrupt:
		bitPos = 4
	default:
		panic(fmt.Sprintf("Unknown interrupt: 0x%02X", uint8(interrupt)))
	}

	newFlags := bit.Set(bitPos, interruptFlags)

	m.Write(addr.IF, newFlags)
}

func (m *MMU) ReadBit(index uint8, address uint16) bool {
	return bit.IsSet(index, m.Read(address))
}

func (m *MMU) SetBit(index uint8, address uint16, set bool) {
	value := m.Read(address)
	if set {
		value = bit.Set(index, value)
	} else {
		value = bit.Reset(index, value)
	}
	m.Write(address, value)
}

// vramBlocked reports whether the CPU is currently locked out of VRAM,
// which happens only during PPU mode 3 (pixel transfer).
func (m *MMU) vramBlocked() bool {
	return m.ppuMode != nil && m.ppuMode() == ModePixelTransfer
}

// oamBlocked reports whether the CPU is currently locked out of OAM, which
// happens during PPU mode 2 (OAM scan) and mode 3 (pixel transfer).
func (m *MMU) oamBlocked() bool {
	if m.ppuMode == nil {
		return false
	}
	mode := m.ppuMode()
	return mode == ModeOAMScan || mode == ModePixelTransfer
}

// ReadVideo reads a byte on behalf of the PPU itself. The PPU is the
// component the mode-based VRAM/OAM gating protects, so its own fetches
// bypass the checks Read applies to CPU-side accesses. Everything outside
// VRAM/OAM behaves exactly like Read.
func (m *MMU) ReadVideo(address uint16) byte {
	switch m.regionMap[address>>8] {
	case regionVRAM:
		return m.memory[address]
	case regionOAM:
		if address <= 0xFE9F {
			return m.memory[address]
		}
		return 0xFF
	default:
		return m.Read(address)
	}
}

// WriteDisplayRegister stores a PPU-owned register value (LY, the STAT mode
// and coincidence bits) directly, bypassing the read-only masking Write
// applies to CPU-side writes to the same addresses.
func (m *MMU) WriteDisplayRegister(address uint16, value byte) {
	m.memory[address] = value
}

func (m *MMU) Read(address uint16) byte {
	if m.bootROMActive && address < bootROMSize {
		return m.bootROM[address]
	}

	switch m.regionMap[address>>8] {
	case regionROM, regionExtRAM:
		if m.mbc == nil {
			slog.Warn("Reading from ROM/external RAM with no cartridge", "addr", fmt.Sprintf("0x%04X", address))
			return 0xFF
		}
		return m.mbc.Read(address)
	case regionVRAM:
		if m.vramBlocked() {
			return 0xFF
		}
		return m.memory[address]
	case regionWRAM:
		return m.memory[address]
	case regionEcho:
		return m.memory[address-0x2000]
	case regionOAM:
		if address <= 0xFE9F {
			if m.oamBlocked() {
				return 0xFF
			}
			return m.memory[address]
		}
		// Unusable area 0xFEA0-0xFEFF always reads as 0xFF on DMG hardware.
		return 0xFF
	case regionIO:
		if address == addr.SB || address == addr.SC {
			return m.serial.Read(address)
		}
		if address == addr.DIV || address == addr.TIMA || address == addr.TMA || address == addr.TAC {
			return m.timer.Read(address)
		}
		if address >= addr.AudioStart && address <= addr.AudioEnd {
			return m.APU.ReadRegister(address)
		}
		// Just in case, we always read the upper 3 bits of IF as 1.
		// They're not used, but have caused me some headaches when checking for
		// when the halt bug triggers (IF != 0).
		if address == addr.IF {
			return m.memory[address] | 0xE0
		}
		if address == addr.LY {
			return m.memory[address]
		}
		// Other IO registers and HRAM
		return m.memory[address]
	default:
		panic(UnmappedAddressError{Address: address, Write: false})
	}
}

func (m *MMU) Write(address uint16, value byte) {
	switch m.regionMap[address>>8] {
	case regionROM:
		if m.mbc == nil {
			slog.Warn("Writing to ROM with no cartridge", "addr", fmt.Sprintf("0x%04X", address), "value", fmt.Sprintf("0x%02X", value))
			return
		}
		m.mbc.Write(address, value)
	case regionVRAM:
		if m.vramBlocked() {
			return
		}
		m.memory[address] = value
	case regionExtRAM:
		if m.mbc == nil {
			slog.Warn("Writing to external RAM with no cartridge", "addr", fmt.Sprintf("0x%04X", address), "value", fmt.Sprintf("0x%02X", value))
			return
		}
		m.mbc.Write(address, value)
	case regionWRAM:
		m.memory[address] = value
	case regionEcho:
		m.memory[address-0x2000] = value
	case regionOAM:
		if address <= 0xFE9F {
			if m.oamBlocked() {
				return
			}
			m.memory[address] = value
		}
		// Writes to the unusable 0xFEA0-0xFEFF range are discarded.
	case regionIO:
		if address == addr.P1 {
			m.writeJoypad(value)
			return
		}
		if address == addr.SB || address == addr.SC {
			m.serial.Write(address, value)
			return
		}
		if address == addr.DIV || address == addr.TIMA || address == addr.TMA || address == addr.TAC {
			m.timer.Write(address, value)
			return
		}
		if address >= addr.AudioStart && address <= addr.AudioEnd {
			m.APU.WriteRegister(address, value)
			return
		}
		if address == addr.IF {
			// This register's upper 3 bits always read as 1; keep them set
			// in storage too so the halt-bug check (IF != 0) stays correct.
			m.memory[address] = value | 0xE0
			return
		}
		if address == addr.LY {
			// LY is read-only from the CPU's perspective: any write resets it.
			m.memory[address] = 0
			return
		}
		if address == addr.STAT {
			// Bits 0-2 (mode flag + LYC=LY flag) are read-only; only the
			// interrupt-enable bits 3-6 are CPU writable.
			m.memory[address] = (m.memory[address] & 0x07) | (value & 0xF8)
			return
		}
		if address == addr.DMA {
			sourceAddr := uint16(value) << 8
			// DMA transfer copies 160 bytes from source to OAM
			for i := uint16(0); i < 160; i++ {
				m.memory[0xFE00+i] = m.Read(sourceAddr + i)
			}
			m.memory[address] = value
			return
		}
		if address == BootROMDisableAddress {
			m.memory[address] = value
			if value != 0 {
				m.bootROMActive = false
			}
			return
		}
		// Other IO registers and HRAM
		m.memory[address] = value
	default:
		panic(UnmappedAddressError{Address: address, Write: true})
	}
}

// updateJoypadRegister sets the joypad register (P1) according to selection bits
// and hardware (buttons) status.
//
// In real hw, this register is actually just a selector (bits 4-5) that control
// to which set of buttons the low bits (0-3) are mapped to.
//
// The mapping (a group is selected by writing 0 to its bit):
//   - if bit 4 is clear, bits 0-3 are mapped to the 4 d-pad directions
//   - if bit 5 is clear, bits 0-3 are mapped to A, B, Start, Select
//   - if both are clear, hw does an AND of both button sets
//   - if both are set, return 0x0F (high impedence state)
//
// This function is called whenever:
//   - there is a write to the P1 register (only set bits 4-5)
//   - a button is pressed or released (tracked separately)
//
// Note that 1 -> button released, 0 -> button pressed.
// Bits 6-7 are unused, they always read as 1 on real hardware.
func (m *MMU) updateJoypadRegister() {
	p1 := m.memory[addr.P1]
	result := uint8(0b11000000) // Bits 6-7 are always read as 1
	result |= p1 & 0b00110000   // Keep selection bits 4-5

	// A button group is selected if the corresponding bit is 0
	selectDpad := !bit.IsSet(4, p1)
	selectButtons := !bit.IsSet(5, p1)

	switch {
	case selectButtons && !selectDpad:
		result |= m.joypadButtons & 0x0F
	case selectDpad && !selectButtons:
		result |= m.joypadDpad & 0x0F
	case selectButtons && selectDpad:
		result |= m.joypadButtons & m.joypadDpad & 0x0F
	default:
		// no selection
		result |= 0x0F
	}

	m.memory[addr.P1] = result
}

func (m *MMU) writeJoypad(value uint8) {
	// Only bits 4-5 are writable (selection bits)
	m.memory[addr.P1] = value & 0b00110000
	m.updateJoypadRegister()
}

func (m *MMU) HandleKeyPress(key JoypadKey) {
	oldButtons := m.joypadButtons
	oldDpad := m.joypadDpad

	switch key {
	case JoypadRight:
		m.joypadDpad = bit.Reset(0, m.joypadDpad)
	case JoypadLeft:
		m.joypadDpad = bit.Reset(1, m.joypadDpad)
	case JoypadUp:
		m.joypadDpad = bit.Reset(2, m.joypadDpad)
	case JoypadDown:
		m.joypadDpad = bit.Reset(3, m.joypadDpad)
	case JoypadA:
		m.joypadButtons = bit.Reset(0, m.joypadButtons)
	case JoypadB:
		m.joypadButtons = bit.Reset(1, m.joypadButtons)
	case JoypadSelect:
		m.joypadButtons = bit.Reset(2, m.joypadButtons)
	case JoypadStart:
		m.joypadButtons = bit.Reset(3, m.joypadButtons)
	}

	buttonTransitions := oldButtons & ^m.joypadButtons
	dpadTransitions := oldDpad & ^m.joypadDpad
	if buttonTransitions|dpadTransitions != 0 {
		m.RequestInterrupt(addr.JoypadInterrupt)
	}

	m.updateJoypadRegister()
}

func (m *MMU) HandleKeyRelease(key JoypadKey) {
	switch key {
	case JoypadRight:
		m.joypadDpad = bit.Set(0, m.joypadDpad)
	case JoypadLeft:
		m.joypadDpad = bit.Set(1, m.joypadDpad)
	case JoypadUp:
		m.joypadDpad = bit.Set(2, m.joypadDpad)
	case JoypadDown:
		m.joypadDpad = bit.Set(3, m.joypadDpad)
	case JoypadA:
		m.joypadButtons = bit.Set(0, m.joypadButtons)
	case JoypadB:
		m.joypadButtons = bit.Set(1, m.joypadButtons)
	case JoypadSelect:
		m.joypadButtons = bit.Set(2, m.joypadButtons)
	case JoypadStart:
		m.joypadButtons = bit.Set(3, m.joypadButtons)
	}

	m.updateJoypadRegister()
}
