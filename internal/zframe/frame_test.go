package zframe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zirujauak/infocom/internal/memory"
)

func newTestMap(t *testing.T) *memory.Map {
	buf := make([]byte, 0x400)
	buf[0] = 3 // version
	buf[0x0E] = 0x02
	buf[0x0F] = 0x00 // dynamic end 0x200
	buf[0x0C] = 0x01
	buf[0x0D] = 0x00 // global var table at 0x100
	m, err := memory.New(buf)
	require.NoError(t, err)
	return m
}

func TestVariableRoundTripLocals(t *testing.T) {
	mem := newTestMap(t)
	s := New(mem, 0)
	// Push a frame with three locals to exercise against, by calling a
	// synthetic routine (placed in dynamic memory, below 0x200) instead of
	// poking internals directly.
	snap := mem.Snapshot()
	routineAddr := uint32(0x180)
	require.NoError(t, mem.SetByte(routineAddr, 3))
	for i := 0; i < 3; i++ {
		require.NoError(t, mem.SetWord(routineAddr+1+uint32(i*2), 0))
	}
	res, err := s.Call(snap, uint16(routineAddr/2), nil, nil, 0)
	require.NoError(t, err)
	assert.EqualValues(t, routineAddr+1+6, res.PC)

	for n := uint8(1); n <= 3; n++ {
		require.NoError(t, s.WriteVariable(n, uint16(n)*10))
		got, err := s.ReadVariable(n)
		require.NoError(t, err)
		assert.EqualValues(t, uint16(n)*10, got)
	}
}

func TestVariableRoundTripStack(t *testing.T) {
	mem := newTestMap(t)
	s := New(mem, 0)

	before := s.EvalDepth()
	require.NoError(t, s.WriteVariable(0, 0xABCD))
	got, err := s.ReadVariable(0)
	require.NoError(t, err)
	assert.EqualValues(t, 0xABCD, got)
	assert.Equal(t, before, s.EvalDepth())
}

func TestCallPackedAddressZeroIsNoOp(t *testing.T) {
	mem := newTestMap(t)
	s := New(mem, 0)
	store := uint8(16) // a global: the main frame has no locals
	require.NoError(t, s.WriteVariable(store, 0xFFFF))

	depthBefore := s.Depth()
	res, err := s.Call(mem.Snapshot(), 0, nil, &store, 0x1234)
	require.NoError(t, err)
	assert.Equal(t, depthBefore, s.Depth())
	assert.EqualValues(t, 0x1234, res.PC)

	got, err := s.ReadVariable(store)
	require.NoError(t, err)
	assert.EqualValues(t, 0, got)
}

func TestCallAndReturnRoundTrip(t *testing.T) {
	mem := newTestMap(t)
	s := New(mem, 0)
	snap := mem.Snapshot()

	routineAddr := uint32(0x180)
	require.NoError(t, mem.SetByte(routineAddr, 0))

	store := uint8(16) // a global
	callerNextPC := uint32(0x10)
	res, err := s.Call(snap, uint16(routineAddr/2), nil, &store, callerNextPC)
	require.NoError(t, err)
	assert.EqualValues(t, routineAddr+1, res.PC)
	assert.Equal(t, 2, s.Depth())

	returnPC, err := s.Return(42)
	require.NoError(t, err)
	assert.Equal(t, callerNextPC, returnPC)
	assert.Equal(t, 1, s.Depth())

	got, err := s.ReadVariable(store)
	require.NoError(t, err)
	assert.EqualValues(t, 42, got)
}

func TestReturnFromMainFrameTerminates(t *testing.T) {
	mem := newTestMap(t)
	s := New(mem, 0)
	_, err := s.Return(0)
	require.ErrorIs(t, err, Terminated)
}

func TestReadVariableEmptyStackFails(t *testing.T) {
	mem := newTestMap(t)
	s := New(mem, 0)
	_, err := s.ReadVariable(0)
	require.Error(t, err)
}

func TestNoSuchLocalFails(t *testing.T) {
	mem := newTestMap(t)
	s := New(mem, 0)
	_, err := s.ReadVariable(1)
	require.Error(t, err)
}

func TestCaptureRestoreRoundTrip(t *testing.T) {
	mem := newTestMap(t)
	s := New(mem, 0)
	require.NoError(t, s.WriteVariable(0, 7))

	snap := s.Capture()

	s2 := New(mem, 0)
	s2.Restore(snap)

	got, err := s2.ReadVariable(0)
	require.NoError(t, err)
	assert.EqualValues(t, 7, got)
}
