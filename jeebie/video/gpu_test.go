package video

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valerio/go-jeebie/jeebie/addr"
	"github.com/valerio/go-jeebie/jeebie/memory"
)

func TestGPU_PaletteDirection_ShadeZeroIsWhite(t *testing.T) {
	assert.Equal(t, WhiteColor, ByteToColor(0))
	assert.Equal(t, LightGreyColor, ByteToColor(1))
	assert.Equal(t, DarkGreyColor, ByteToColor(2))
	assert.Equal(t, BlackColor, ByteToColor(3))
}

func TestGPU_ToGrayscaleRoundTripsShadeIndex(t *testing.T) {
	fb := NewFrameBuffer()
	fb.SetPixel(0, 0, ByteToColor(0))
	fb.SetPixel(1, 0, ByteToColor(3))

	gray := fb.ToGrayscale()

	assert.Equal(t, byte(0), gray[0])
	assert.Equal(t, byte(3), gray[1])
}

func TestGPU_ModeCyclesThroughOAMVRAMHBlank(t *testing.T) {
	mmu := memory.New()
	gpu := NewGpu(mmu)
	gpu.setMode(oamReadMode)
	gpu.line = 0
	mmu.Write(addr.LCDC, 0x80) // LCD on, everything else off

	gpu.Tick(oamScanlineCycles)
	assert.Equal(t, vramReadMode, gpu.mode)

	gpu.Tick(vramScanlineCycles)
	assert.Equal(t, hblankMode, gpu.mode)

	gpu.Tick(hblankCycles)
	assert.Equal(t, oamReadMode, gpu.mode)
	assert.Equal(t, 1, gpu.line)
}

func TestGPU_VBlankTriggersAtLine144(t *testing.T) {
	mmu := memory.New()
	gpu := NewGpu(mmu)
	gpu.setMode(hblankMode)
	gpu.line = 143
	mmu.Write(addr.LY, 143)
	mmu.Write(addr.LCDC, 0x80) // LCD on, so Tick advances the mode state machine

	gpu.Tick(hblankCycles)

	assert.Equal(t, vblankMode, gpu.mode)
	assert.Equal(t, 144, gpu.line)
	assert.Equal(t, byte(1), mmu.Read(addr.IF)&0x01, "VBlank interrupt should fire")
}

func TestGPU_MMUGatesVRAMDuringPixelTransfer(t *testing.T) {
	mmu := memory.New()
	gpu := NewGpu(mmu)
	gpu.setMode(vramReadMode)

	mmu.Write(0x8000, 0x42) // should be dropped, VRAM blocked during mode 3
	assert.Equal(t, byte(0xFF), mmu.Read(0x8000))

	gpu.setMode(hblankMode)
	mmu.Write(0x8000, 0x42)
	assert.Equal(t, byte(0x42), mmu.Read(0x8000))
}

func TestGPU_LYCComparisonSetsSTATBitAndRequestsInterrupt(t *testing.T) {
	mmu := memory.New()
	gpu := NewGpu(mmu)
	mmu.Write(addr.LYC, 5)
	mmu.Write(addr.STAT, 0x40) // enable LYC=LY interrupt

	gpu.setLY(5)

	assert.NotZero(t, mmu.Read(addr.STAT)&0x04)
	assert.Equal(t, byte(0x02), mmu.Read(addr.IF)&0x02, "LCD STAT interrupt should fire")
}

func TestGPU_DrawBackgroundDisabledShowsColorZero(t *testing.T) {
	mmu := memory.New()
	gpu := NewGpu(mmu)
	mmu.Write(addr.LCDC, 0x80) // LCD on, BG off (bit 0 clear)
	mmu.Write(addr.BGP, 0xE4) // standard palette, color0 -> shade 0
	gpu.line = 0

	gpu.drawScanline()

	assert.Equal(t, uint32(WhiteColor), gpu.framebuffer.GetPixel(0, 0))
}

func TestGPU_DrawBackgroundSampleTile(t *testing.T) {
	mmu := memory.New()
	gpu := NewGpu(mmu)
	mmu.Write(addr.LCDC, 0x91) // LCD on, BG on, unsigned tile data, tilemap 0
	mmu.Write(addr.BGP, 0xE4) // identity palette: 0->0,1->1,2->2,3->3

	// tile 0 at 0x8000: all pixels shade 3 (both bit planes set)
	mmu.Write(0x8000, 0xFF)
	mmu.Write(0x8001, 0xFF)
	// tilemap 0 at 0x9800, first entry is tile 0 (already zeroed)

	gpu.line = 0
	gpu.drawScanline()

	assert.Equal(t, uint32(BlackColor), gpu.framebuffer.GetPixel(0, 0))
}
