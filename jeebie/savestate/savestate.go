// Package savestate encodes and decodes a full snapshot of a running DMG
// core: CPU registers, the 64KiB address space, timer, PPU timing, and APU
// registers. It knows nothing about scheduling or ROM loading; it only
// composes the Snapshot/Restore pairs each component package already
// exposes and (de)serializes the result.
package savestate

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/valerio/go-jeebie/jeebie/audio"
	"github.com/valerio/go-jeebie/jeebie/cpu"
	"github.com/valerio/go-jeebie/jeebie/memory"
	"github.com/valerio/go-jeebie/jeebie/video"
)

// CurrentVersion is embedded in every encoded save state. Decode rejects
// anything it doesn't recognize rather than guessing at a layout.
const CurrentVersion uint32 = 1

// State is the full, flattened snapshot of a DMG core at a point in time.
type State struct {
	Version    uint32
	FrameCount uint64

	CPU   cpu.State
	MMU   memory.State
	PPU   video.State
	Audio audio.RegisterState
}

// Encode serializes a State using encoding/gob.
func Encode(s State) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("savestate: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode deserializes a State previously produced by Encode, refusing
// payloads encoded by a version this build doesn't understand.
func Decode(data []byte) (State, error) {
	var s State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return State{}, fmt.Errorf("savestate: decode: %w", err)
	}
	if s.Version != CurrentVersion {
		return State{}, fmt.Errorf("savestate: unsupported version %d, want %d", s.Version, CurrentVersion)
	}
	return s, nil
}
