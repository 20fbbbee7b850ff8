package zpersist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zirujauak/infocom/internal/memory"
	"github.com/zirujauak/infocom/internal/zframe"
)

func testMap(t *testing.T) *memory.Map {
	buf := make([]byte, 0x100)
	buf[0] = 3
	buf[0x0E], buf[0x0F] = 0x00, 0x80 // dynamic end 0x80
	m, err := memory.New(buf)
	require.NoError(t, err)
	return m
}

func TestSaveLoadRoundTrip(t *testing.T) {
	mem := testMap(t)
	require.NoError(t, mem.SetByte(0x10, 0x42))
	frames := zframe.New(mem, 0x1000)

	state := Capture(mem, frames, 0x2000)
	var facade CBORFacade

	blob, err := facade.Save(state)
	require.NoError(t, err)
	assert.NotEmpty(t, blob)

	loaded, err := facade.Load(blob)
	require.NoError(t, err)
	assert.Equal(t, state.Version, loaded.Version)
	assert.Equal(t, state.Checksum, loaded.Checksum)
	assert.Equal(t, state.DynamicMemory, loaded.DynamicMemory)
	assert.Equal(t, state.PC, loaded.PC)
	assert.Len(t, loaded.Frames, len(state.Frames))
}

func TestRestoreRejectsChecksumMismatch(t *testing.T) {
	mem := testMap(t)
	frames := zframe.New(mem, 0x1000)
	state := Capture(mem, frames, 0x2000)
	state.Checksum ^= 0xFFFF

	err := Restore(state, mem, frames)
	require.Error(t, err)
}

func TestRestoreAppliesDynamicMemoryAndFrames(t *testing.T) {
	mem := testMap(t)
	frames := zframe.New(mem, 0x1000)
	state := Capture(mem, frames, 0x2000)

	// Mutate live state after the capture, then restore back to the snapshot.
	require.NoError(t, mem.SetByte(0x10, 0x99))
	require.NoError(t, frames.WriteVariable(0, 5))

	err := Restore(state, mem, frames)
	require.NoError(t, err)

	b, err := mem.ByteAt(0x10)
	require.NoError(t, err)
	assert.EqualValues(t, 0, b)
	assert.Equal(t, 0, frames.EvalDepth())
}
