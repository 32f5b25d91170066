package cpu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valerio/go-jeebie/jeebie/addr"
	"github.com/valerio/go-jeebie/jeebie/memory"
)

func newTestCPU() (*CPU, *memory.MMU) {
	mmu := memory.New()
	return New(mmu), mmu
}

func loadProgram(mmu *memory.MMU, base uint16, bytes ...uint8) {
	for i, b := range bytes {
		mmu.Write(base+uint16(i), b)
	}
}

func TestCPU_ResetToPostBootState(t *testing.T) {
	c, _ := newTestCPU()
	c.ResetToPostBootState()

	assert.Equal(t, uint16(0x0100), c.PC())
	assert.Equal(t, uint16(0xFFFE), c.SP())
	assert.Equal(t, uint8(0x01), c.a)
	assert.Equal(t, uint16(0x0013), c.getBC())
}

func TestCPU_NOP(t *testing.T) {
	c, mmu := newTestCPU()
	c.pc = 0xC000
	loadProgram(mmu, 0xC000, 0x00)

	cycles, err := c.Step()

	assert.NoError(t, err)
	assert.Equal(t, 4, cycles)
	assert.Equal(t, uint16(0xC001), c.pc)
}

func TestCPU_LDRegisterToRegister(t *testing.T) {
	c, mmu := newTestCPU()
	c.pc = 0xC000
	c.b = 0x99
	loadProgram(mmu, 0xC000, 0x78) // LD A,B

	cycles, err := c.Step()

	assert.NoError(t, err)
	assert.Equal(t, 4, cycles)
	assert.Equal(t, uint8(0x99), c.a)
}

func TestCPU_LDFromMemoryViaHL(t *testing.T) {
	c, mmu := newTestCPU()
	c.pc = 0xC000
	c.setHL(0xC100)
	mmu.Write(0xC100, 0x55)
	loadProgram(mmu, 0xC000, 0x6E) // LD L,(HL) -- reads before overwriting L

	cycles, err := c.Step()

	assert.NoError(t, err)
	assert.Equal(t, 8, cycles)
	assert.Equal(t, uint8(0x55), c.l)
}

func TestCPU_ADD_SetsCarryAndHalfCarry(t *testing.T) {
	c, mmu := newTestCPU()
	c.pc = 0xC000
	c.a = 0xFF
	c.b = 0x01
	loadProgram(mmu, 0xC000, 0x80) // ADD A,B

	_, err := c.Step()

	assert.NoError(t, err)
	assert.Equal(t, uint8(0x00), c.a)
	assert.True(t, c.flag(flagZ))
	assert.True(t, c.flag(flagH))
	assert.True(t, c.flag(flagC))
	assert.False(t, c.flag(flagN))
}

func TestCPU_SUB_SetsSubtractFlag(t *testing.T) {
	c, mmu := newTestCPU()
	c.pc = 0xC000
	c.a = 0x10
	c.b = 0x01
	loadProgram(mmu, 0xC000, 0x90) // SUB B

	_, err := c.Step()

	assert.NoError(t, err)
	assert.Equal(t, uint8(0x0F), c.a)
	assert.True(t, c.flag(flagN))
	assert.True(t, c.flag(flagH))
	assert.False(t, c.flag(flagC))
}

// TestCPU_DAA_AfterBCDAddition matches the worked example of adding 0x45 +
// 0x38 in BCD (should yield 0x83, no carry).
func TestCPU_DAA_AfterBCDAddition(t *testing.T) {
	c, mmu := newTestCPU()
	c.pc = 0xC000
	c.a = 0x45
	c.b = 0x38
	loadProgram(mmu, 0xC000, 0x80, 0x27) // ADD A,B ; DAA

	_, err := c.Step()
	assert.NoError(t, err)
	_, err = c.Step()
	assert.NoError(t, err)

	assert.Equal(t, uint8(0x83), c.a)
	assert.False(t, c.flag(flagC))
}

func TestCPU_JR_TakenAndNotTaken(t *testing.T) {
	c, mmu := newTestCPU()
	c.pc = 0xC000
	c.setFlag(flagZ, true)
	loadProgram(mmu, 0xC000, 0x28, 0x05) // JR Z,+5

	cycles, err := c.Step()

	assert.NoError(t, err)
	assert.Equal(t, 12, cycles)
	assert.Equal(t, uint16(0xC007), c.pc)
}

func TestCPU_JR_NotTakenFallsThrough(t *testing.T) {
	c, mmu := newTestCPU()
	c.pc = 0xC000
	c.setFlag(flagZ, false)
	loadProgram(mmu, 0xC000, 0x28, 0x05) // JR Z,+5 (not taken)

	cycles, err := c.Step()

	assert.NoError(t, err)
	assert.Equal(t, 8, cycles)
	assert.Equal(t, uint16(0xC002), c.pc)
}

func TestCPU_CALLAndRET(t *testing.T) {
	c, mmu := newTestCPU()
	c.pc = 0xC000
	c.sp = 0xDFFE
	loadProgram(mmu, 0xC000, 0xCD, 0x00, 0xD0) // CALL 0xD000
	loadProgram(mmu, 0xD000, 0xC9)             // RET

	cycles, err := c.Step()
	assert.NoError(t, err)
	assert.Equal(t, 24, cycles)
	assert.Equal(t, uint16(0xD000), c.pc)
	assert.Equal(t, uint16(0xDFFC), c.sp)

	cycles, err = c.Step()
	assert.NoError(t, err)
	assert.Equal(t, 16, cycles)
	assert.Equal(t, uint16(0xC003), c.pc)
	assert.Equal(t, uint16(0xDFFE), c.sp)
}

func TestCPU_PushPop_RoundTrips(t *testing.T) {
	c, mmu := newTestCPU()
	c.pc = 0xC000
	c.sp = 0xDFFE
	c.setBC(0x1234)
	loadProgram(mmu, 0xC000, 0xC5, 0xD1) // PUSH BC ; POP DE

	_, err := c.Step()
	assert.NoError(t, err)
	_, err = c.Step()
	assert.NoError(t, err)

	assert.Equal(t, uint16(0x1234), c.getDE())
	assert.Equal(t, uint16(0xDFFE), c.sp)
}

func TestCPU_CBBitInstruction(t *testing.T) {
	c, mmu := newTestCPU()
	c.pc = 0xC000
	c.b = 0x00
	loadProgram(mmu, 0xC000, 0xCB, 0x40) // BIT 0,B

	cycles, err := c.Step()

	assert.NoError(t, err)
	assert.Equal(t, 8, cycles)
	assert.True(t, c.flag(flagZ))
	assert.True(t, c.flag(flagH))
	assert.False(t, c.flag(flagN))
}

func TestCPU_CBSetAndRes(t *testing.T) {
	c, mmu := newTestCPU()
	c.pc = 0xC000
	c.b = 0x00
	loadProgram(mmu, 0xC000, 0xCB, 0xC0, 0xCB, 0x80) // SET 0,B ; RES 0,B

	_, err := c.Step()
	assert.NoError(t, err)
	assert.Equal(t, uint8(0x01), c.b)

	_, err = c.Step()
	assert.NoError(t, err)
	assert.Equal(t, uint8(0x00), c.b)
}

func TestCPU_InvalidOpcodeReturnsError(t *testing.T) {
	c, mmu := newTestCPU()
	c.pc = 0xC000
	loadProgram(mmu, 0xC000, 0xD3) // undefined on DMG

	_, err := c.Step()

	var invalid InvalidOpcodeError
	assert.True(t, errors.As(err, &invalid))
	assert.Equal(t, uint8(0xD3), invalid.Opcode)
	assert.False(t, invalid.CB)
}

func TestCPU_EIDelaysOneInstruction(t *testing.T) {
	c, mmu := newTestCPU()
	c.pc = 0xC000
	loadProgram(mmu, 0xC000, 0xFB, 0x00) // EI ; NOP

	_, err := c.Step()
	assert.NoError(t, err)
	assert.False(t, c.IME(), "IME must not take effect until after the instruction following EI")

	_, err = c.Step()
	assert.NoError(t, err)
	assert.True(t, c.IME())
}

func TestCPU_HaltWakesOnPendingInterruptEvenWithIMEDisabled(t *testing.T) {
	c, mmu := newTestCPU()
	c.pc = 0xC000
	c.ime = false
	loadProgram(mmu, 0xC000, 0x76, 0x00) // HALT ; NOP

	_, err := c.Step()
	assert.NoError(t, err)
	assert.True(t, c.Halted())

	mmu.Write(addr.IE, 0x01)
	mmu.Write(addr.IF, 0x01)

	cycles, err := c.Step()
	assert.NoError(t, err)
	assert.False(t, c.Halted())
	assert.Equal(t, 4, cycles) // falls through to the NOP, IME stays false
	assert.Equal(t, uint16(0xC002), c.pc)
}

func TestCPU_InterruptServiceDispatchesToVectorAndPushesPC(t *testing.T) {
	c, mmu := newTestCPU()
	c.pc = 0xC123
	c.sp = 0xDFFE
	c.ime = true
	mmu.Write(addr.IE, 0x01) // VBlank
	mmu.Write(addr.IF, 0x01)

	cycles, err := c.Step()

	assert.NoError(t, err)
	assert.Equal(t, 20, cycles)
	assert.Equal(t, uint16(0x0040), c.pc)
	assert.False(t, c.IME())
	assert.Equal(t, byte(0x00), mmu.Read(addr.IF)&0x01, "VBlank flag should be cleared once serviced")
	assert.Equal(t, uint16(0xC123), c.pop16())
}

func TestCPU_InterruptPriorityServicesLowestBitFirst(t *testing.T) {
	c, mmu := newTestCPU()
	c.pc = 0xC000
	c.sp = 0xDFFE
	c.ime = true
	mmu.Write(addr.IE, 0x1F)
	mmu.Write(addr.IF, 0x06) // LCD STAT (bit 1) and Timer (bit 2) both pending

	_, err := c.Step()

	assert.NoError(t, err)
	assert.Equal(t, uint16(0x0048), c.pc, "LCD STAT has higher priority than Timer")
}

func TestCPU_SnapshotRestoreRoundTrip(t *testing.T) {
	c, _ := newTestCPU()
	c.ResetToPostBootState()
	c.a = 0x42
	c.pc = 0xBEEF

	s := c.Snapshot()

	c.a = 0x00
	c.pc = 0x0000

	c.Restore(s)

	assert.Equal(t, uint8(0x42), c.a)
	assert.Equal(t, uint16(0xBEEF), c.pc)
}
