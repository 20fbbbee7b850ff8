package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zirujauak/infocom/internal/vmerr"
)

func testImage(t *testing.T, dynamicEnd, highStart uint16) *Map {
	buf := make([]byte, 0x200)
	buf[0] = 3 // version
	buf[0x0E] = byte(dynamicEnd >> 8)
	buf[0x0F] = byte(dynamicEnd)
	buf[0x04] = byte(highStart >> 8)
	buf[0x05] = byte(highStart)
	m, err := New(buf)
	require.NoError(t, err)
	return m
}

func TestByteAtOutOfBounds(t *testing.T) {
	m := testImage(t, 0x100, 0x180)
	_, err := m.ByteAt(0x10000)
	require.Error(t, err)
	assert.True(t, vmerr.Is(err, vmerr.OutOfBounds))

	_, err = m.ByteAt(uint32(len(m.buf)))
	require.Error(t, err)
	assert.True(t, vmerr.Is(err, vmerr.OutOfBounds))
}

func TestWriteRegionRules(t *testing.T) {
	m := testImage(t, 0x100, 0x180)

	require.NoError(t, m.SetByte(0x50, 0xAB))
	got, err := m.ByteAt(0x50)
	require.NoError(t, err)
	assert.EqualValues(t, 0xAB, got)

	err = m.SetByte(0x100, 0xFF)
	require.Error(t, err)
	assert.True(t, vmerr.Is(err, vmerr.ReadOnlyRegion))

	err = m.SetByte(0x180, 0xFF)
	require.Error(t, err)
	assert.True(t, vmerr.Is(err, vmerr.ReadOnlyRegion))
}

func TestSetWordRoundTrip(t *testing.T) {
	m := testImage(t, 0x100, 0x180)
	require.NoError(t, m.SetWord(0x20, 0xBEEF))
	got, err := m.WordAt(0x20)
	require.NoError(t, err)
	assert.EqualValues(t, 0xBEEF, got)
}

func TestSetWordNoPartialWriteOnFailure(t *testing.T) {
	m := testImage(t, 0x100, 0x180)
	// addr=0xFF, addr+1=0x100 is out of the dynamic region: the whole
	// write must fail and neither byte may change.
	before, err := m.ByteAt(0xFF)
	require.NoError(t, err)

	err = m.SetWord(0xFF, 0x1234)
	require.Error(t, err)
	assert.True(t, vmerr.Is(err, vmerr.ReadOnlyRegion))

	after, err := m.ByteAt(0xFF)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSnapshotReflectsSubsequentWrites(t *testing.T) {
	m := testImage(t, 0x100, 0x180)
	snap := m.Snapshot()

	require.NoError(t, m.SetByte(0x10, 0x42))
	got, err := snap.ByteAt(0x10)
	require.NoError(t, err)
	assert.EqualValues(t, 0x42, got)
}

func TestGlobalAddr(t *testing.T) {
	m := testImage(t, 0x100, 0x180)
	m.header.GlobalVarAddr = 0x1000

	addr, err := m.GlobalAddr(16)
	require.NoError(t, err)
	assert.EqualValues(t, 0x1000, addr)

	addr, err = m.GlobalAddr(17)
	require.NoError(t, err)
	assert.EqualValues(t, 0x1002, addr)

	_, err = m.GlobalAddr(5)
	require.Error(t, err)
}

func TestDynamicBytesRoundTrip(t *testing.T) {
	m := testImage(t, 0x100, 0x180)
	require.NoError(t, m.SetByte(0x05, 0x99))
	snap := m.DynamicBytes()
	assert.Len(t, snap, int(m.DynamicEnd()))

	m2 := testImage(t, 0x100, 0x180)
	require.NoError(t, m2.RestoreDynamicBytes(snap))
	got, err := m2.ByteAt(0x05)
	require.NoError(t, err)
	assert.EqualValues(t, 0x99, got)
}

func TestUnpackAddress(t *testing.T) {
	h := Header{Version: 3}
	assert.EqualValues(t, 0x200, h.UnpackAddress(0x100))

	h.Version = 5
	assert.EqualValues(t, 0x400, h.UnpackAddress(0x100))

	h.Version = 8
	assert.EqualValues(t, 0x800, h.UnpackAddress(0x100))
}
