package debug

// CPUState contains all CPU register information for debugging
type CPUState struct {
	A uint8
	F uint8
	B uint8
	C uint8
	D uint8
	E uint8
	H uint8
	L uint8

	SP     uint16
	PC     uint16
	IME    bool
	Cycles uint64
}

// MemorySnapshot contains a snapshot of memory for disassembly
type MemorySnapshot struct {
	StartAddr uint16
	Bytes     []uint8
}

// DebuggerState represents the current debugger state
type DebuggerState int

const (
	DebuggerRunning DebuggerState = iota
	DebuggerPaused
	DebuggerStepInstruction
	DebuggerStepFrame
)

// CompleteDebugData contains all debug information needed by debug displays
type CompleteDebugData struct {
	OAM             *OAMData
	VRAM            *VRAMData
	CPU             *CPUState
	Memory          *MemorySnapshot
	DebuggerState   DebuggerState
	InterruptEnable uint8 // IE register at 0xFFFF
	InterruptFlags  uint8 // IF register at 0xFF0F
}

// BuildDebugData assembles a CompleteDebugData snapshot from the live
// emulator state. memStart/memLen bound the memory window disassembly
// operates on, so hosts aren't forced to copy the full 64KiB every frame.
func BuildDebugData(reader MemoryReader, cpu CPUState, line, spriteHeight int, state DebuggerState, memStart uint16, memLen int) *CompleteDebugData {
	bytes := make([]uint8, memLen)
	for i := 0; i < memLen; i++ {
		bytes[i] = reader.Read(memStart + uint16(i))
	}

	return &CompleteDebugData{
		OAM:             ExtractOAMDataFromReader(reader, line, spriteHeight),
		VRAM:            ExtractVRAMDataFromReader(reader),
		CPU:             &cpu,
		Memory:          &MemorySnapshot{StartAddr: memStart, Bytes: bytes},
		DebuggerState:   state,
		InterruptEnable: reader.Read(0xFFFF),
		InterruptFlags:  reader.Read(0xFF0F),
	}
}
