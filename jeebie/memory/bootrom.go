package memory

// bootROMSize is the size of the DMG boot ROM image: it occupies
// 0x0000-0x00FF while active, overlaying the cartridge's entry point and
// logo bytes.
const bootROMSize = 0x100

// BootROMDisableAddress is the address of the register that, once written
// with a non-zero value, permanently unmaps the boot ROM overlay for the
// rest of the session. Real hardware never re-enables it.
const BootROMDisableAddress uint16 = 0xFF50

// LoadBootROM installs a 256-byte boot ROM image to be read at 0x0000-0x00FF
// until the boot-disable latch (0xFF50) is written. Supplying the boot ROM
// image itself is a host concern (it ships outside a cartridge); the MMU
// only knows how to overlay and unmap it.
func (m *MMU) LoadBootROM(data []byte) error {
	if len(data) != bootROMSize {
		return BadBootROMSizeError{Size: len(data)}
	}
	m.bootROM = make([]byte, bootROMSize)
	copy(m.bootROM, data)
	m.bootROMActive = true
	return nil
}

// BootROMActive reports whether the boot ROM overlay is currently mapped.
func (m *MMU) BootROMActive() bool {
	return m.bootROMActive
}

// DisableBootROM unmaps the boot ROM overlay, as if 0xFF50 had been written.
// Exposed for save-state restore and for hosts skipping the boot sequence.
func (m *MMU) DisableBootROM() {
	m.bootROMActive = false
}
