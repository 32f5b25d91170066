package jeebie

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerio/go-jeebie/jeebie/memory"
	"github.com/valerio/go-jeebie/jeebie/timing"
)

func TestNew_StartsInPostBootState(t *testing.T) {
	d := New()

	assert.Equal(t, uint16(0x0100), d.cpu.PC())
	assert.Equal(t, uint16(0xFFFE), d.cpu.SP())
	assert.True(t, d.cpu.IME() == false)
}

func TestRunCycles_AdvancesAtLeastN(t *testing.T) {
	d := New()

	err := d.RunCycles(100)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, d.GetInstructionCount(), uint64(1))
}

func TestRunFrame_AdvancesOneFrameAndCountsIt(t *testing.T) {
	d := New()

	err := d.RunFrame()

	require.NoError(t, err)
	assert.Equal(t, uint64(1), d.FrameCount())
}

func TestRunFrame_TerminatesWithLCDPermanentlyDisabled(t *testing.T) {
	// A blank cartridge never writes LCDC, so the LCD stays disabled for
	// the entire run. RunFrame must still terminate: it's paced by a fixed
	// cycle budget, not by waiting on a VBlank transition that will never
	// come while the PPU's mode/line counters are frozen.
	d := New()

	for i := 0; i < 3; i++ {
		require.NoError(t, d.RunFrame())
	}

	assert.Equal(t, uint64(3), d.FrameCount())
}

func TestConfigureCompletionDetection_StopsAtFrameCapWhenLoopDetectionDisabled(t *testing.T) {
	d := New()
	d.ConfigureCompletionDetection(5, 0)

	d.RunUntilComplete()

	assert.Equal(t, uint64(5), d.FrameCount())
}

func TestConfigureCompletionDetection_StopsEarlyOnRepeatedFrame(t *testing.T) {
	// With the LCD disabled the whole run, every frame's framebuffer is
	// identical from the very first frame, so a loop count of 2 should stop
	// well short of the frame cap.
	d := New()
	d.ConfigureCompletionDetection(1000, 2)

	d.RunUntilComplete()

	assert.Less(t, d.FrameCount(), uint64(1000))
}

func TestHandleKeyPress_SetsJoypadState(t *testing.T) {
	d := New()

	d.mmu.Write(0xFF00, 0x10) // bit 5 low selects the A/B/Start/Select group
	d.HandleKeyPress(memory.JoypadA)

	assert.False(t, d.mmu.ReadBit(0, 0xFF00))

	d.HandleKeyRelease(memory.JoypadA)
	assert.True(t, d.mmu.ReadBit(0, 0xFF00))
}

func TestSaveStateLoadState_RoundTrips(t *testing.T) {
	d := New()
	require.NoError(t, d.RunCycles(1000))

	snapshot, err := d.SaveState()
	require.NoError(t, err)

	pcBefore := d.cpu.PC()
	countBefore := d.GetInstructionCount()

	// Advance further, then restore: the state must go back, not just stay put.
	require.NoError(t, d.RunCycles(1000))
	assert.NotEqual(t, countBefore, d.GetInstructionCount())

	require.NoError(t, d.LoadState(snapshot))

	assert.Equal(t, pcBefore, d.cpu.PC())
	assert.Equal(t, countBefore, d.GetInstructionCount())
}

func TestLoadState_RejectsGarbage(t *testing.T) {
	d := New()

	err := d.LoadState([]byte("not a save state"))

	require.Error(t, err)
	var badState BadSaveStateError
	assert.ErrorAs(t, err, &badState)
}

func TestNewWithCartridge_StrictModeRejectsBadChecksum(t *testing.T) {
	data := make([]byte, 0x8000)
	// Header checksum at 0x14D left as 0x00; the computed checksum over an
	// all-zero header is not 0, so this should fail strict validation.
	data[0x147] = 0x00 // NoMBC cart type
	cart := memory.NewCartridgeWithData(data)

	_, err := NewWithCartridge(cart, WithStrictHeaderCheck())

	require.Error(t, err)
	var mismatch ChecksumMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestNewWithCartridge_NonStrictModeIgnoresBadChecksum(t *testing.T) {
	data := make([]byte, 0x8000)
	data[0x147] = 0x00
	cart := memory.NewCartridgeWithData(data)

	d, err := NewWithCartridge(cart)

	require.NoError(t, err)
	assert.NotNil(t, d)
}

func TestNewWithFile_MissingFileReturnsError(t *testing.T) {
	_, err := NewWithFile("/nonexistent/path/does-not-exist.gb")
	require.Error(t, err)
}

func TestNewWithBootROM_MissingBootROMReturnsBootRomMissingError(t *testing.T) {
	data := make([]byte, 0x8000)
	data[0x147] = 0x00

	tmpCart := writeTempFile(t, data)

	_, err := NewWithBootROM(tmpCart, "/nonexistent/boot.bin")

	require.Error(t, err)
	var missing BootRomMissingError
	assert.ErrorAs(t, err, &missing)
}

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "jeebie-test-rom-*.gb")
	require.NoError(t, err)
	defer f.Close()
	_, err = f.Write(data)
	require.NoError(t, err)
	return f.Name()
}

func TestRunCycles_ReachesVBlankAfter144Lines(t *testing.T) {
	d := New()

	// One step with the LCD still off latches the disabled state, so the
	// enable below restarts scanning cleanly from line 0, mode 2.
	_, err := d.Step()
	require.NoError(t, err)
	d.mmu.Write(0xFF40, 0x91)

	require.NoError(t, d.RunCycles(144*456))

	assert.Equal(t, byte(144), d.mmu.Read(0xFF44))
	assert.Equal(t, byte(1), d.mmu.Read(0xFF41)&0x03, "STAT mode bits should report VBlank")
	assert.True(t, d.mmu.ReadBit(0, 0xFF0F), "VBlank interrupt should be pending")
}

func TestExtractDebugData_CapturesCPUMemoryAndVideoState(t *testing.T) {
	d := New()

	data := d.ExtractDebugData(0x0100, 16)

	require.NotNil(t, data)
	assert.Equal(t, uint16(0x0100), data.CPU.PC)
	assert.Equal(t, uint16(0x0100), data.Memory.StartAddr)
	assert.Len(t, data.Memory.Bytes, 16)
	assert.Len(t, data.OAM.Sprites, 40)
	assert.Len(t, data.VRAM.TilePatterns, 384)
}

func TestRunCyclesMatchesFramePacing(t *testing.T) {
	d := New()
	require.NoError(t, d.RunCycles(timing.CyclesPerFrame))
	assert.GreaterOrEqual(t, d.GetInstructionCount(), uint64(1))
}
