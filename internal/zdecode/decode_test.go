package zdecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is a minimal in-memory ByteSource for decoder tests, isolated
// from the memory package so zdecode has no import-cycle dependency on it.
type fakeSource struct {
	buf []byte
}

func (f fakeSource) ByteAt(addr uint32) (byte, error) {
	if int(addr) >= len(f.buf) {
		return 0, assert.AnError
	}
	return f.buf[addr], nil
}

func (f fakeSource) WordAt(addr uint32) (uint16, error) {
	hi, err := f.ByteAt(addr)
	if err != nil {
		return 0, err
	}
	lo, err := f.ByteAt(addr + 1)
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

func TestDecodeLongFormTwoOperand(t *testing.T) {
	// je (opcode 1) long form, both small constants: 0x01 10 20, no store,
	// but je branches, so append a one-byte branch (0xC0 = branch-on-true, return false sentinel offset).
	src := fakeSource{buf: []byte{0x01, 0x10, 0x20, 0xC0}}
	inst, err := Decode(src, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, FormLong, inst.Form)
	assert.Equal(t, "je", inst.Name)
	assert.Equal(t, []OperandKind{SmallConstant, SmallConstant}, inst.OperandTypes)
	assert.Equal(t, []uint16{0x10, 0x20}, inst.Operands)
	require.NotNil(t, inst.BranchInfo)
	require.NotNil(t, inst.BranchInfo.Return)
	assert.False(t, *inst.BranchInfo.Return)
	assert.EqualValues(t, 4, inst.NextPC)
}

func TestDecodeShortFormZeroOperand(t *testing.T) {
	// rtrue: short form, operand kind bits = 11 (omitted) -> 0OP, opcode 0.
	// 0xB0 = 1011 0000
	src := fakeSource{buf: []byte{0xB0}}
	inst, err := Decode(src, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, FormShort, inst.Form)
	assert.Equal(t, "rtrue", inst.Name)
	assert.Empty(t, inst.OperandTypes)
	assert.EqualValues(t, 1, inst.NextPC)
}

func TestDecodePrintLiteralSkipsToTerminalWord(t *testing.T) {
	// print (0xB2), followed by a two-word packed string whose second word
	// has its high bit set (terminal).
	src := fakeSource{buf: []byte{0xB2, 0x00, 0x01, 0x80, 0x02}}
	inst, err := Decode(src, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, "print", inst.Name)
	assert.EqualValues(t, 5, inst.NextPC)
}

func TestDecodeVariableFormCall(t *testing.T) {
	// call (VAR opcode 0): 0xE0 = 1110 0000 (variable form, VAR group, opcode 0)
	// types byte: large-constant, omitted, omitted, omitted = 0x3F
	// operand: 0x1234, store variable byte 0x05.
	src := fakeSource{buf: []byte{0xE0, 0x3F, 0x12, 0x34, 0x05}}
	inst, err := Decode(src, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, FormVariable, inst.Form)
	assert.Equal(t, "call", inst.Name)
	assert.Equal(t, []OperandKind{LargeConstant}, inst.OperandTypes)
	assert.Equal(t, []uint16{0x1234}, inst.Operands)
	require.NotNil(t, inst.Store)
	assert.EqualValues(t, 0x05, *inst.Store)
	assert.EqualValues(t, 5, inst.NextPC)
}

func TestDecodeBranchTwoByteSignedOffset(t *testing.T) {
	// jz (1OP opcode 0) short form with a variable operand, branching with a
	// two-byte negative offset.
	// 0xA0 = short form, operand kind bits = 10 (variable), opcode 0.
	src := fakeSource{buf: []byte{0xA0, 0x01, 0xBF, 0xFC}}
	inst, err := Decode(src, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, "jz", inst.Name)
	require.NotNil(t, inst.BranchInfo)
	assert.Nil(t, inst.BranchInfo.Return)
	assert.True(t, inst.BranchInfo.OnTrue)
	assert.EqualValues(t, 4, inst.NextPC)
}

func TestDecodeOutOfBoundsOnTruncatedInstruction(t *testing.T) {
	src := fakeSource{buf: []byte{0x01}}
	_, err := Decode(src, 0, 3)
	require.Error(t, err)
}

func TestDecodeInvalidOpcodeUndefinedNumber(t *testing.T) {
	// Long form, 2OP opcode 30: not a defined 2OP opcode number.
	src := fakeSource{buf: []byte{0x1E, 0x00, 0x00}}
	_, err := Decode(src, 0, 3)
	require.Error(t, err)
}

func TestDecodeNextPCAlwaysAdvances(t *testing.T) {
	src := fakeSource{buf: append(make([]byte, 10), 0xB0)}
	inst, err := Decode(src, 10, 3)
	require.NoError(t, err)
	assert.Greater(t, inst.NextPC, inst.Address)
}
