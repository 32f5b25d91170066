package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoMBC_ReadsDirectlyFromROM(t *testing.T) {
	rom := make([]byte, 0x8000)
	rom[0x100] = 0xC3
	mbc := NewNoMBC(rom)
	assert.Equal(t, byte(0xC3), mbc.Read(0x100))
}

func TestNoMBC_IgnoresWrites(t *testing.T) {
	rom := make([]byte, 0x8000)
	mbc := NewNoMBC(rom)
	assert.Equal(t, uint8(0), mbc.Write(0x2000, 0x01))
}

func TestMBC1_SwitchesROMBanks(t *testing.T) {
	rom := make([]byte, 0x4000*3) // bank 0, 1, 2
	rom[0x4000*2] = 0x99          // first byte of bank 2

	mbc := NewMBC1(rom, false, 0)
	mbc.Write(0x2000, 0x02) // select ROM bank 2
	assert.Equal(t, byte(0x99), mbc.Read(0x4000))
}

func TestMBC1_BankZeroRemapsToBankOne(t *testing.T) {
	rom := make([]byte, 0x4000*2)
	rom[0x4000] = 0x77

	mbc := NewMBC1(rom, false, 0)
	mbc.Write(0x2000, 0x00) // requesting bank 0 remaps to bank 1
	assert.Equal(t, byte(0x77), mbc.Read(0x4000))
}

func TestMBC1_RAMRequiresEnableBit(t *testing.T) {
	rom := make([]byte, 0x4000)
	mbc := NewMBC1(rom, true, 1)

	assert.Equal(t, byte(0xFF), mbc.Read(0xA000))

	mbc.Write(0x0000, 0x0A) // enable RAM
	mbc.Write(0xA000, 0x42)
	assert.Equal(t, byte(0x42), mbc.Read(0xA000))
}
