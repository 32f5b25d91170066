package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valerio/go-jeebie/jeebie/addr"
)

func TestMMU_WorkRAMRoundTrip(t *testing.T) {
	m := New()
	m.Write(0xC000, 0x42)
	assert.Equal(t, byte(0x42), m.Read(0xC000))
}

func TestMMU_EchoRAMMirrorsWorkRAM(t *testing.T) {
	m := New()
	m.Write(0xC005, 0x7A)
	assert.Equal(t, byte(0x7A), m.Read(0xE005))

	m.Write(0xE010, 0x11)
	assert.Equal(t, byte(0x11), m.Read(0xC010))
}

func TestMMU_UnusableRegionAlwaysReadsFF(t *testing.T) {
	m := New()
	m.Write(0xFEA5, 0x99)
	assert.Equal(t, byte(0xFF), m.Read(0xFEA5))
}

func TestMMU_LYWriteAlwaysResetsToZero(t *testing.T) {
	m := New()
	m.Write(addr.LY, 99)
	assert.Equal(t, byte(0), m.Read(addr.LY))
}

func TestMMU_STATLowBitsAreReadOnly(t *testing.T) {
	m := New()
	m.Write(addr.STAT, 0xFF)
	// bits 0-2 should still read as whatever internal state set them (0 here,
	// nothing wrote the mode/coincidence bits), only 3-7 take the written value.
	got := m.Read(addr.STAT)
	assert.Equal(t, byte(0xF8), got&0xF8)
	assert.Equal(t, byte(0x00), got&0x07)
}

func TestMMU_IFUpperBitsAlwaysSet(t *testing.T) {
	m := New()
	m.Write(addr.IF, 0x00)
	assert.Equal(t, byte(0xE0), m.Read(addr.IF))
}

func TestMMU_RequestInterruptSetsIFBit(t *testing.T) {
	m := New()
	m.RequestInterrupt(addr.TimerInterrupt)
	assert.True(t, m.ReadBit(2, addr.IF))
}

func TestMMU_DMATransferCopies160BytesToOAM(t *testing.T) {
	m := New()
	for i := 0; i < 160; i++ {
		m.Write(0xC000+uint16(i), byte(i))
	}
	m.Write(addr.DMA, 0xC0)
	for i := 0; i < 160; i++ {
		assert.Equal(t, byte(i), m.Read(0xFE00+uint16(i)))
	}
}

func TestMMU_VRAMBlockedDuringPixelTransfer(t *testing.T) {
	m := New()
	m.Write(0x8000, 0x55)
	m.SetPPUModeProvider(func() PPUMode { return ModePixelTransfer })
	assert.Equal(t, byte(0xFF), m.Read(0x8000))
	m.Write(0x8000, 0xAA)
	assert.Equal(t, byte(0xFF), m.Read(0x8000), "write during mode 3 must be discarded")
}

func TestMMU_OAMBlockedDuringOAMScanAndPixelTransfer(t *testing.T) {
	m := New()
	m.SetPPUModeProvider(func() PPUMode { return ModeOAMScan })
	m.Write(0xFE00, 0x10)
	assert.Equal(t, byte(0xFF), m.Read(0xFE00))

	m.SetPPUModeProvider(func() PPUMode { return ModePixelTransfer })
	assert.Equal(t, byte(0xFF), m.Read(0xFE00))
}

func TestMMU_OAMAccessibleDuringHBlank(t *testing.T) {
	m := New()
	m.SetPPUModeProvider(func() PPUMode { return ModeHBlank })
	m.Write(0xFE00, 0x10)
	assert.Equal(t, byte(0x10), m.Read(0xFE00))
}

func TestMMU_BootROMOverlayAndLatch(t *testing.T) {
	m := New()
	boot := make([]byte, 256)
	boot[0] = 0xAB
	require := assert.New(t)
	require.NoError(m.LoadBootROM(boot))

	// Cartridge ROM bytes at 0x0000 are shadowed while the boot ROM is active.
	require.Equal(byte(0xAB), m.Read(0x0000))
	require.True(m.BootROMActive())

	m.Write(BootROMDisableAddress, 0x01)
	require.False(m.BootROMActive())
}

func TestMMU_LoadBootROMRejectsWrongSize(t *testing.T) {
	m := New()
	err := m.LoadBootROM(make([]byte, 10))
	assert.Error(t, err)
}

func TestMMU_JoypadEdgeTriggersInterrupt(t *testing.T) {
	m := New()
	m.Write(addr.P1, 0x20) // select d-pad
	m.HandleKeyPress(JoypadDown)
	assert.True(t, m.ReadBit(4, addr.IF))
}
