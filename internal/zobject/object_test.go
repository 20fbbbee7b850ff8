package zobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zirujauak/infocom/internal/memory"
)

// buildV3Image lays out a minimal v3 story with an object table at 0x100
// holding n objects, each with an empty property table (short name length
// 0, immediately terminated).
func buildV3Image(t *testing.T, n int) *memory.Map {
	buf := make([]byte, 0x800)
	buf[0] = 3
	buf[0x0E], buf[0x0F] = 0x07, 0x00 // dynamic end 0x700, everything dynamic
	objTableAddr := uint32(0x100)
	buf[0x0A] = byte(objTableAddr >> 8)
	buf[0x0B] = byte(objTableAddr)

	headerOffset := uint32(31 * 2)
	propBase := objTableAddr + headerOffset + uint32(n)*9 + 0x10
	for i := 0; i < n; i++ {
		entryAddr := objTableAddr + headerOffset + uint32(i)*9
		propAddr := propBase + uint32(i)*4
		buf[entryAddr+7] = byte(propAddr >> 8)
		buf[entryAddr+8] = byte(propAddr)
		buf[propAddr] = 0 // short name length 0
		buf[propAddr+1] = 0 // terminal size byte
	}

	m, err := memory.New(buf)
	require.NoError(t, err)
	return m
}

func TestAttributeRoundTrip(t *testing.T) {
	mem := buildV3Image(t, 2)
	tbl := Load(mem)
	obj, err := tbl.Object(1)
	require.NoError(t, err)

	set, err := obj.TestAttribute(3)
	require.NoError(t, err)
	assert.False(t, set)

	require.NoError(t, obj.SetAttribute(3))
	set, err = obj.TestAttribute(3)
	require.NoError(t, err)
	assert.True(t, set)

	require.NoError(t, obj.ClearAttribute(3))
	set, err = obj.TestAttribute(3)
	require.NoError(t, err)
	assert.False(t, set)
}

func TestMoveObjectInsertsAsFirstChild(t *testing.T) {
	mem := buildV3Image(t, 3)
	tbl := Load(mem)

	require.NoError(t, tbl.MoveObject(2, 1))
	require.NoError(t, tbl.MoveObject(3, 1))

	parent, child1, child3 := objTrio(t, tbl)
	assert.EqualValues(t, 1, parent)
	assert.EqualValues(t, 3, child1) // most recently inserted is first child
	assert.EqualValues(t, 2, child3) // old first child is now its sibling
}

func objTrio(t *testing.T, tbl *Table) (parentOf3, childOf1, siblingOf3 uint16) {
	o3, err := tbl.Object(3)
	require.NoError(t, err)
	p, err := o3.Parent()
	require.NoError(t, err)
	o1, err := tbl.Object(1)
	require.NoError(t, err)
	c, err := o1.Child()
	require.NoError(t, err)
	sib, err := o3.Sibling()
	require.NoError(t, err)
	return p, c, sib
}

func TestMoveObjectUnlinksFromPreviousParent(t *testing.T) {
	mem := buildV3Image(t, 3)
	tbl := Load(mem)

	require.NoError(t, tbl.MoveObject(2, 1))
	require.NoError(t, tbl.MoveObject(2, 3)) // re-parent from 1 to 3

	o1, err := tbl.Object(1)
	require.NoError(t, err)
	childOf1, err := o1.Child()
	require.NoError(t, err)
	assert.EqualValues(t, 0, childOf1, "object 1's child chain must no longer contain 2")

	o3, err := tbl.Object(3)
	require.NoError(t, err)
	childOf3, err := o3.Child()
	require.NoError(t, err)
	assert.EqualValues(t, 2, childOf3)
}

func TestPutPropertyFailsOnAbsentProperty(t *testing.T) {
	mem := buildV3Image(t, 1)
	tbl := Load(mem)
	obj, err := tbl.Object(1)
	require.NoError(t, err)

	err = obj.PutProperty(5, 42)
	require.Error(t, err)
}

func TestPropertyFallsBackToDefault(t *testing.T) {
	mem := buildV3Image(t, 1)
	require.NoError(t, mem.SetWord(0x100, 0xCAFE)) // default for property 1
	tbl := Load(mem)
	obj, err := tbl.Object(1)
	require.NoError(t, err)

	data, err := obj.Property(1)
	require.NoError(t, err)
	require.Len(t, data, 2)
	assert.EqualValues(t, 0xCAFE, uint16(data[0])<<8|uint16(data[1]))
}

func TestNoSuchObject(t *testing.T) {
	mem := buildV3Image(t, 1)
	tbl := Load(mem)
	_, err := tbl.Object(0)
	require.Error(t, err)
}
