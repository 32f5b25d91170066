package cpu

import (
	"log/slog"

	"github.com/valerio/go-jeebie/jeebie/addr"
	"github.com/valerio/go-jeebie/jeebie/memory"
)

// CPU is the Sharp LR35902 core: 8 addressable registers (as AF/BC/DE/HL
// pairs), a stack pointer, a program counter, and the IME/halt state
// machine that gates interrupt dispatch.
type CPU struct {
	a, f uint8
	b, c uint8
	d, e uint8
	h, l uint8

	sp uint16
	pc uint16

	ime       bool
	eiPending int // counts down to 0, at which point EI's delayed enable takes effect
	halted    bool
	stopped   bool

	mmu *memory.MMU

	instructionCount uint64
}

// New creates a CPU wired to the given bus. Registers start zeroed; callers
// that don't run a boot ROM should call ResetToPostBootState.
func New(mmu *memory.MMU) *CPU {
	return &CPU{mmu: mmu}
}

// ResetToPostBootState seeds registers with the values real DMG hardware
// leaves them in immediately after the boot ROM hands off to cartridge
// code at 0x0100. Used when a host skips running the boot ROM image.
func (c *CPU) ResetToPostBootState() {
	c.setAF(0x01B0)
	c.setBC(0x0013)
	c.setDE(0x00D8)
	c.setHL(0x014D)
	c.sp = 0xFFFE
	c.pc = 0x0100
	c.ime = false
	c.halted = false
	c.stopped = false
}

// PC returns the current program counter, for disassembly/debugging.
func (c *CPU) PC() uint16 { return c.pc }

// SP returns the current stack pointer, for debugging.
func (c *CPU) SP() uint16 { return c.sp }

// IME reports whether interrupts are currently enabled.
func (c *CPU) IME() bool { return c.ime }

// Halted reports whether the CPU is in the low-power HALT state.
func (c *CPU) Halted() bool { return c.halted }

// InstructionCount returns the number of instructions executed so far
// (interrupt dispatches and HALT idle ticks don't count).
func (c *CPU) InstructionCount() uint64 { return c.instructionCount }

// Snapshot/Restore support save-state round-tripping without exposing
// mutable internals to callers.
type State struct {
	A, F, B, C, D, E, H, L uint8
	SP, PC                 uint16
	IME                    bool
	EIPending              int
	Halted, Stopped        bool
	InstructionCount       uint64
}

func (c *CPU) Snapshot() State {
	return State{
		A: c.a, F: c.f, B: c.b, C: c.c, D: c.d, E: c.e, H: c.h, L: c.l,
		SP: c.sp, PC: c.pc,
		IME: c.ime, EIPending: c.eiPending,
		Halted: c.halted, Stopped: c.stopped,
		InstructionCount: c.instructionCount,
	}
}

func (c *CPU) Restore(s State) {
	c.a, c.f, c.b, c.c, c.d, c.e, c.h, c.l = s.A, s.F, s.B, s.C, s.D, s.E, s.H, s.L
	c.sp, c.pc = s.SP, s.PC
	c.ime, c.eiPending = s.IME, s.EIPending
	c.halted, c.stopped = s.Halted, s.Stopped
	c.instructionCount = s.InstructionCount
}

func (c *CPU) fetch8() uint8 {
	v := c.mmu.Read(c.pc)
	c.pc++
	return v
}

func (c *CPU) fetch16() uint16 {
	lo := c.fetch8()
	hi := c.fetch8()
	return uint16(hi)<<8 | uint16(lo)
}

func (c *CPU) push16(v uint16) {
	c.sp--
	c.mmu.Write(c.sp, uint8(v>>8))
	c.sp--
	c.mmu.Write(c.sp, uint8(v))
}

func (c *CPU) pop16() uint16 {
	lo := c.mmu.Read(c.sp)
	c.sp++
	hi := c.mmu.Read(c.sp)
	c.sp++
	return uint16(hi)<<8 | uint16(lo)
}

// Step executes exactly one CPU "turn": either servicing a pending
// interrupt, idling one tick while halted, or decoding and running one
// instruction. It returns the number of T-cycles consumed.
func (c *CPU) Step() (int, error) {
	if c.eiPending > 0 {
		c.eiPending--
		if c.eiPending == 0 {
			c.ime = true
		}
	}

	ifr := c.mmu.Read(addr.IF) & 0x1F
	ie := c.mmu.Read(addr.IE) & 0x1F
	pending := ie & ifr

	if c.halted {
		if pending != 0 {
			c.halted = false
		} else {
			return 4, nil
		}
	}

	if c.ime && pending != 0 {
		return c.serviceInterrupt(pending), nil
	}

	pc := c.pc
	opcode := c.fetch8()

	if opcode == 0xCB {
		cbOpcode := c.fetch8()
		handler := cbOpcodeTable[cbOpcode]
		if handler == nil {
			return 0, InvalidOpcodeError{Opcode: cbOpcode, CB: true, PC: pc}
		}
		c.instructionCount++
		return handler(c), nil
	}

	handler := opcodeTable[opcode]
	if handler == nil {
		return 0, InvalidOpcodeError{Opcode: opcode, PC: pc}
	}
	c.instructionCount++
	return handler(c), nil
}

// serviceInterrupt dispatches the highest-priority pending interrupt
// (lowest bit wins), per the fixed vector table.
func (c *CPU) serviceInterrupt(pending uint8) int {
	var bitPos uint8
	var vector uint16
	switch {
	case pending&0x01 != 0:
		bitPos, vector = 0, 0x40
	case pending&0x02 != 0:
		bitPos, vector = 1, 0x48
	case pending&0x04 != 0:
		bitPos, vector = 2, 0x50
	case pending&0x08 != 0:
		bitPos, vector = 3, 0x58
	default:
		bitPos, vector = 4, 0x60
	}

	c.ime = false
	ifr := c.mmu.Read(addr.IF)
	c.mmu.Write(addr.IF, ifr&^(1<<bitPos))

	c.halted = false
	c.push16(c.pc)
	c.pc = vector

	slog.Debug("servicing interrupt", "vector", vector, "pc", c.pc)
	return 20
}
