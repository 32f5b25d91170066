// Package jeebie wires the CPU, memory bus, and PPU together into a single
// runnable DMG core, and drives the cooperative scheduling loop described
// by the hardware: one CPU step, then the timer and PPU tick forward by
// however many cycles that step took.
package jeebie

import (
	"crypto/md5"
	"fmt"
	"log/slog"
	"os"

	"github.com/valerio/go-jeebie/jeebie/cpu"
	"github.com/valerio/go-jeebie/jeebie/debug"
	"github.com/valerio/go-jeebie/jeebie/memory"
	"github.com/valerio/go-jeebie/jeebie/savestate"
	"github.com/valerio/go-jeebie/jeebie/timing"
	"github.com/valerio/go-jeebie/jeebie/video"
)

// DMG is a complete Game Boy core: CPU, bus, and PPU, plus the bookkeeping
// a host needs to drive it frame by frame and take save states.
type DMG struct {
	mmu *memory.MMU
	cpu *cpu.CPU
	gpu *video.GPU

	frameCount uint64

	debuggerState debug.DebuggerState

	// completion detection, configured by ConfigureCompletionDetection and
	// consumed by RunUntilComplete.
	maxFrames    uint64
	minLoopCount int
}

// Option configures a DMG at construction time.
type Option func(*dmgOptions)

type dmgOptions struct {
	strictHeaderCheck bool
}

// WithStrictHeaderCheck makes NewWithFile/NewWithCartridge refuse to boot a
// cartridge whose header checksum at 0x014D doesn't validate, returning a
// ChecksumMismatchError instead.
func WithStrictHeaderCheck() Option {
	return func(o *dmgOptions) { o.strictHeaderCheck = true }
}

// New creates a DMG with no cartridge loaded, registers reset as if the
// boot ROM had just handed off at 0x0100. Useful for unit tests that poke
// memory directly rather than running ROM images.
func New() *DMG {
	mmu := memory.New()
	gpu := video.NewGpu(mmu)
	c := cpu.New(mmu)
	c.ResetToPostBootState()

	return &DMG{
		mmu: mmu,
		cpu: c,
		gpu: gpu,
	}
}

// NewWithCartridge creates a DMG running the given cartridge, skipping the
// boot ROM sequence (registers start in the documented post-boot state).
func NewWithCartridge(cart *memory.Cartridge, opts ...Option) (*DMG, error) {
	var o dmgOptions
	for _, opt := range opts {
		opt(&o)
	}

	if o.strictHeaderCheck && !cart.HeaderChecksumValid() {
		computed, expected := cart.HeaderChecksum()
		return nil, ChecksumMismatchError{Computed: computed, Expected: expected}
	}

	mmu := memory.NewWithCartridge(cart)
	gpu := video.NewGpu(mmu)
	c := cpu.New(mmu)
	c.ResetToPostBootState()

	return &DMG{
		mmu: mmu,
		cpu: c,
		gpu: gpu,
	}, nil
}

// NewWithFile reads a ROM image from disk and creates a DMG running it.
func NewWithFile(path string, opts ...Option) (*DMG, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("jeebie: reading ROM %q: %w", path, err)
	}

	cart := memory.NewCartridgeWithData(data)
	slog.Debug("loaded cartridge", "path", path, "title", cart.Title())

	return NewWithCartridge(cart, opts...)
}

// NewWithBootROM reads both a cartridge ROM and a 256-byte boot ROM image,
// and creates a DMG that runs the boot sequence before handing off to
// cartridge code, instead of starting directly in the post-boot state.
func NewWithBootROM(cartPath, bootROMPath string, opts ...Option) (*DMG, error) {
	var o dmgOptions
	for _, opt := range opts {
		opt(&o)
	}

	cartData, err := os.ReadFile(cartPath)
	if err != nil {
		return nil, fmt.Errorf("jeebie: reading ROM %q: %w", cartPath, err)
	}

	cart := memory.NewCartridgeWithData(cartData)
	if o.strictHeaderCheck && !cart.HeaderChecksumValid() {
		computed, expected := cart.HeaderChecksum()
		return nil, ChecksumMismatchError{Computed: computed, Expected: expected}
	}

	bootData, err := os.ReadFile(bootROMPath)
	if err != nil {
		return nil, BootRomMissingError{Path: bootROMPath, Err: err}
	}

	mmu := memory.NewWithCartridge(cart)
	if err := mmu.LoadBootROM(bootData); err != nil {
		return nil, BootRomMissingError{Path: bootROMPath, Err: err}
	}

	gpu := video.NewGpu(mmu)
	c := cpu.New(mmu)
	// Registers stay zeroed: the boot ROM itself sets them up as it runs.

	return &DMG{
		mmu: mmu,
		cpu: c,
		gpu: gpu,
	}, nil
}

// Step executes a single CPU turn and advances the timer and PPU by the
// same number of cycles, keeping every component in lockstep the way real
// hardware does. Returns the number of T-cycles consumed.
func (d *DMG) Step() (int, error) {
	cycles, err := d.cpu.Step()
	if err != nil {
		return cycles, err
	}

	d.mmu.Tick(cycles)
	d.gpu.Tick(cycles)

	return cycles, nil
}

// RunCycles advances the core by at least n T-cycles, stopping after the
// instruction that crosses the boundary (instructions aren't split, so
// "at least" rather than "exactly").
func (d *DMG) RunCycles(n int) error {
	for total := 0; total < n; {
		cycles, err := d.Step()
		if err != nil {
			return err
		}
		total += cycles
	}
	return nil
}

// RunFrame advances the core by one frame's worth of T-cycles
// (timing.CyclesPerFrame, the same 70224 the PPU's own mode state machine
// cycles through per screen redraw). Pacing by a fixed cycle count rather
// than waiting for a VBlank transition keeps this well-defined even while
// the LCD is disabled, which freezes the PPU's own mode/line counters.
func (d *DMG) RunFrame() error {
	if err := d.RunCycles(timing.CyclesPerFrame); err != nil {
		return err
	}
	d.frameCount++
	return nil
}

// RunUntilFrame is RunFrame for hosts that only want to log a failure
// rather than thread an error up the call stack, e.g. a render loop.
func (d *DMG) RunUntilFrame() {
	if err := d.RunFrame(); err != nil {
		slog.Error("frame execution stopped early", "error", err)
	}
}

// GetCurrentFrame returns the PPU's current framebuffer. The returned
// pointer is live: its contents change as the core keeps running.
func (d *DMG) GetCurrentFrame() *video.FrameBuffer {
	return d.gpu.GetFrameBuffer()
}

// GetInstructionCount returns the number of instructions the CPU has
// executed so far (interrupt dispatch and HALT idling don't count).
func (d *DMG) GetInstructionCount() uint64 {
	return d.cpu.InstructionCount()
}

// FrameCount returns the number of complete frames RunFrame has produced.
func (d *DMG) FrameCount() uint64 {
	return d.frameCount
}

// HandleKeyPress forwards a joypad key press to the bus.
func (d *DMG) HandleKeyPress(key memory.JoypadKey) {
	d.mmu.HandleKeyPress(key)
}

// HandleKeyRelease forwards a joypad key release to the bus.
func (d *DMG) HandleKeyRelease(key memory.JoypadKey) {
	d.mmu.HandleKeyRelease(key)
}

// ConfigureCompletionDetection bounds RunUntilComplete: it runs at most
// maxFrames frames, and stops earlier if the framebuffer is observed
// repeating unchanged for minLoopCount consecutive frames. A zero
// minLoopCount disables loop detection, running exactly maxFrames frames.
// This is how the blargg and dmg-acid2 test ROMs signal "done": once they
// finish printing to the screen (or serial) they sit in a tight idle loop
// with a static framebuffer.
func (d *DMG) ConfigureCompletionDetection(maxFrames uint64, minLoopCount int) {
	d.maxFrames = maxFrames
	d.minLoopCount = minLoopCount
}

// RunUntilComplete runs frames according to the bounds set by
// ConfigureCompletionDetection: exactly maxFrames frames when minLoopCount
// is zero, and no frames at all if it was never called (maxFrames is then
// zero).
func (d *DMG) RunUntilComplete() {
	var lastHash [16]byte
	haveHash := false
	loopCount := 0

	for frame := uint64(0); frame < d.maxFrames; frame++ {
		if err := d.RunFrame(); err != nil {
			slog.Error("RunUntilComplete stopped early", "error", err, "frame", frame)
			return
		}

		if d.minLoopCount <= 0 {
			continue
		}

		hash := md5.Sum(d.gpu.GetFrameBuffer().ToGrayscale())
		if haveHash && hash == lastHash {
			loopCount++
			if loopCount >= d.minLoopCount {
				return
			}
		} else {
			loopCount = 0
		}
		lastHash = hash
		haveHash = true
	}
}

// SetDebuggerState updates the host-visible debugger state machine. It
// doesn't itself pause execution: hosts that want single-stepping check
// this before calling Step/RunFrame.
func (d *DMG) SetDebuggerState(s debug.DebuggerState) {
	d.debuggerState = s
}

// DebuggerState returns the current debugger state.
func (d *DMG) DebuggerState() debug.DebuggerState {
	return d.debuggerState
}

// ExtractDebugData assembles a full debug snapshot (CPU registers, OAM,
// VRAM, interrupt registers, and a memory window) for debugger UIs.
func (d *DMG) ExtractDebugData(memStart uint16, memLen int) *debug.CompleteDebugData {
	snap := d.cpu.Snapshot()
	cpuState := debug.CPUState{
		A: snap.A, F: snap.F, B: snap.B, C: snap.C,
		D: snap.D, E: snap.E, H: snap.H, L: snap.L,
		SP:     snap.SP,
		PC:     snap.PC,
		IME:    snap.IME,
		Cycles: d.cpu.InstructionCount(),
	}

	spriteHeight := 8
	if d.mmu.ReadBit(2, 0xFF40) {
		spriteHeight = 16
	}

	return debug.BuildDebugData(debugBus{d.mmu}, cpuState, d.gpu.Line(), spriteHeight, d.debuggerState, memStart, memLen)
}

// debugBus exposes memory to the debugger without the PPU-mode access
// gating CPU reads are subject to, so VRAM/OAM views stay readable even
// when execution is paused mid-scanline.
type debugBus struct {
	mmu *memory.MMU
}

func (b debugBus) Read(address uint16) uint8 { return b.mmu.ReadVideo(address) }

func (b debugBus) ReadBit(index uint8, address uint16) bool {
	return b.Read(address)&(1<<index) != 0
}

// SaveState encodes a full snapshot of the running core.
func (d *DMG) SaveState() ([]byte, error) {
	s := savestate.State{
		Version:    savestate.CurrentVersion,
		FrameCount: d.frameCount,
		CPU:        d.cpu.Snapshot(),
		MMU:        d.mmu.Snapshot(),
		PPU:        d.gpu.Snapshot(),
		Audio:      d.mmu.APU.Snapshot(),
	}
	return savestate.Encode(s)
}

// LoadState restores a snapshot previously produced by SaveState, onto a
// DMG already wired to the same cartridge the snapshot was taken from.
func (d *DMG) LoadState(data []byte) error {
	s, err := savestate.Decode(data)
	if err != nil {
		return BadSaveStateError{Err: err}
	}

	d.cpu.Restore(s.CPU)
	d.mmu.Restore(s.MMU)
	d.gpu.Restore(s.PPU)
	d.mmu.APU.Restore(s.Audio)
	d.frameCount = s.FrameCount

	return nil
}
