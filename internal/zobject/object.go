// Package zobject implements the object tree: per-object attributes,
// parent/sibling/child links, and property tables. Every mutation writes
// through to the memory map immediately; Save is kept only so the object
// view's API shape matches a deferred-write design, in case a future
// backing store needs one.
package zobject

import (
	"github.com/zirujauak/infocom/internal/memory"
	"github.com/zirujauak/infocom/internal/vmerr"
	"github.com/zirujauak/infocom/internal/ztext"
)

// Table is the parsed, header-pointed object region. It caches nothing
// beyond its own fixed layout parameters; every Object method reads the
// memory map fresh, since the map is the source of truth.
type Table struct {
	mem          *memory.Map
	version      uint8
	base         uint32
	numDefaults  int
	entrySize    uint32
	headerOffset uint32
	attrBits     int
}

// Load derives the version-dependent layout parameters from mem's header.
func Load(mem *memory.Map) *Table {
	v := mem.Header().Version
	t := &Table{mem: mem, version: v, base: uint32(mem.Header().ObjectTableAddr)}
	if v <= 3 {
		t.numDefaults = 31
		t.entrySize = 9
		t.attrBits = 32
	} else {
		t.numDefaults = 63
		t.entrySize = 14
		t.attrBits = 48
	}
	t.headerOffset = uint32(t.numDefaults) * 2
	return t
}

// DefaultProperty returns the table's default value for property num
// (1-based), used when an object has no explicit entry for it.
func (t *Table) DefaultProperty(num uint8) (uint16, error) {
	if int(num) < 1 || int(num) > t.numDefaults {
		return 0, vmerr.New(vmerr.NoSuchProperty, "property %d outside default range 1..%d", num, t.numDefaults)
	}
	return t.mem.WordAt(t.base + uint32(num-1)*2)
}

func (t *Table) entryAddr(n uint16) (uint32, error) {
	if n == 0 {
		return 0, vmerr.New(vmerr.NoSuchObject, "object 0 is the null sentinel")
	}
	return t.base + t.headerOffset + uint32(n-1)*t.entrySize, nil
}

// Object materializes a view over object number n. The view is a thin
// address-holder: every accessor re-reads the memory map.
func (t *Table) Object(n uint16) (*Object, error) {
	addr, err := t.entryAddr(n)
	if err != nil {
		return nil, err
	}
	if _, err := t.mem.ByteAt(addr); err != nil {
		return nil, vmerr.Wrap(vmerr.NoSuchObject, err, "object %d at $%06x", n, addr)
	}
	return &Object{table: t, Number: n, addr: addr}, nil
}

// Object is a cache-free view over one object table entry.
type Object struct {
	table  *Table
	Number uint16
	addr   uint32
}

// Attributes returns the object's full attribute bitset, left-justified so
// bit (attrBits-1) is attribute 0.
func (o *Object) Attributes() (uint64, error) {
	if o.table.version <= 3 {
		hi, err := o.table.mem.WordAt(o.addr)
		if err != nil {
			return 0, err
		}
		lo, err := o.table.mem.WordAt(o.addr + 2)
		if err != nil {
			return 0, err
		}
		return uint64(hi)<<16 | uint64(lo), nil
	}
	w0, err := o.table.mem.WordAt(o.addr)
	if err != nil {
		return 0, err
	}
	w1, err := o.table.mem.WordAt(o.addr + 2)
	if err != nil {
		return 0, err
	}
	w2, err := o.table.mem.WordAt(o.addr + 4)
	if err != nil {
		return 0, err
	}
	return uint64(w0)<<32 | uint64(w1)<<16 | uint64(w2), nil
}

func (o *Object) setAttributes(v uint64) error {
	if o.table.version <= 3 {
		if err := o.table.mem.SetWord(o.addr, uint16(v>>16)); err != nil {
			return err
		}
		return o.table.mem.SetWord(o.addr+2, uint16(v))
	}
	if err := o.table.mem.SetWord(o.addr, uint16(v>>32)); err != nil {
		return err
	}
	if err := o.table.mem.SetWord(o.addr+2, uint16(v>>16)); err != nil {
		return err
	}
	return o.table.mem.SetWord(o.addr+4, uint16(v))
}

// TestAttribute reports whether attribute bit is set.
func (o *Object) TestAttribute(bit uint8) (bool, error) {
	if int(bit) >= o.table.attrBits {
		return false, vmerr.New(vmerr.OutOfBounds, "attribute %d exceeds %d-bit set", bit, o.table.attrBits)
	}
	attrs, err := o.Attributes()
	if err != nil {
		return false, err
	}
	shift := uint(o.table.attrBits) - 1 - uint(bit)
	return (attrs>>shift)&1 != 0, nil
}

// SetAttribute sets attribute bit, write-through.
func (o *Object) SetAttribute(bit uint8) error {
	return o.mutateAttribute(bit, true)
}

// ClearAttribute clears attribute bit, write-through.
func (o *Object) ClearAttribute(bit uint8) error {
	return o.mutateAttribute(bit, false)
}

func (o *Object) mutateAttribute(bit uint8, set bool) error {
	if int(bit) >= o.table.attrBits {
		return vmerr.New(vmerr.OutOfBounds, "attribute %d exceeds %d-bit set", bit, o.table.attrBits)
	}
	attrs, err := o.Attributes()
	if err != nil {
		return err
	}
	shift := uint(o.table.attrBits) - 1 - uint(bit)
	if set {
		attrs |= 1 << shift
	} else {
		attrs &^= 1 << shift
	}
	return o.setAttributes(attrs)
}

func (o *Object) familyOffsets() (parent, sibling, child uint32, wordWidth bool) {
	if o.table.version <= 3 {
		return 4, 5, 6, false
	}
	return 6, 8, 10, true
}

func (o *Object) readFamily(offset uint32, wordWidth bool) (uint16, error) {
	if wordWidth {
		return o.table.mem.WordAt(o.addr + offset)
	}
	b, err := o.table.mem.ByteAt(o.addr + offset)
	return uint16(b), err
}

func (o *Object) writeFamily(offset uint32, wordWidth bool, v uint16) error {
	if wordWidth {
		return o.table.mem.SetWord(o.addr+offset, v)
	}
	return o.table.mem.SetByte(o.addr+offset, byte(v))
}

// Parent returns the object's parent number (0 if none).
func (o *Object) Parent() (uint16, error) {
	off, _, _, ww := o.familyOffsets()
	return o.readFamily(off, ww)
}

// Sibling returns the object's next-sibling number (0 if none).
func (o *Object) Sibling() (uint16, error) {
	_, off, _, ww := o.familyOffsets()
	return o.readFamily(off, ww)
}

// Child returns the object's first-child number (0 if none).
func (o *Object) Child() (uint16, error) {
	_, _, off, ww := o.familyOffsets()
	return o.readFamily(off, ww)
}

// SetParent writes the object's parent field, write-through.
func (o *Object) SetParent(v uint16) error {
	off, _, _, ww := o.familyOffsets()
	return o.writeFamily(off, ww, v)
}

// SetSibling writes the object's sibling field, write-through.
func (o *Object) SetSibling(v uint16) error {
	_, off, _, ww := o.familyOffsets()
	return o.writeFamily(off, ww, v)
}

// SetChild writes the object's child field, write-through.
func (o *Object) SetChild(v uint16) error {
	_, _, off, ww := o.familyOffsets()
	return o.writeFamily(off, ww, v)
}

// Save is a documented no-op: every mutator above already wrote through to
// the memory map by the time it returns.
func (o *Object) Save() error {
	return nil
}

// propTableAddr returns the byte address of the object's property table.
func (o *Object) propTableAddr() (uint32, error) {
	if o.table.version <= 3 {
		w, err := o.table.mem.WordAt(o.addr + 7)
		return uint32(w), err
	}
	w, err := o.table.mem.WordAt(o.addr + 12)
	return uint32(w), err
}

// ShortName decodes the object's packed short-name string via codec.
func (o *Object) ShortName(codec *ztext.Codec) (string, error) {
	addr, err := o.propTableAddr()
	if err != nil {
		return "", err
	}
	textLenWords, err := o.table.mem.ByteAt(addr)
	if err != nil {
		return "", err
	}
	if textLenWords == 0 {
		return "", nil
	}
	name, _, err := codec.DecodeString(o.table.mem.Snapshot(), addr+1)
	return name, err
}

// propertiesStart is the byte address of the first property entry,
// immediately past the short-name text.
func (o *Object) propertiesStart() (uint32, error) {
	addr, err := o.propTableAddr()
	if err != nil {
		return 0, err
	}
	textLenWords, err := o.table.mem.ByteAt(addr)
	if err != nil {
		return 0, err
	}
	return addr + 1 + uint32(textLenWords)*2, nil
}

// propEntry describes one decoded property size-byte: its property number,
// the byte address of its data, and its size in bytes.
type propEntry struct {
	num      uint8
	dataAddr uint32
	size     int
}

// walkProperties decodes the object's property list in the stored
// descending-by-number order, stopping at the zero size byte that marks the
// table's end.
func (o *Object) walkProperties() ([]propEntry, error) {
	addr, err := o.propertiesStart()
	if err != nil {
		return nil, err
	}
	var entries []propEntry
	for {
		sizeByte, err := o.table.mem.ByteAt(addr)
		if err != nil {
			return nil, err
		}
		if sizeByte == 0 {
			break
		}
		var num uint8
		var size int
		var dataAddr uint32
		if o.table.version <= 3 {
			num = sizeByte & 0x1F
			size = int(sizeByte/32) + 1
			dataAddr = addr + 1
			addr = dataAddr + uint32(size)
		} else {
			num = sizeByte & 0x3F
			if sizeByte&0x80 != 0 {
				sizeBits, err := o.table.mem.ByteAt(addr + 1)
				if err != nil {
					return nil, err
				}
				size = int(sizeBits & 0x3F)
				if size == 0 {
					size = 64
				}
				dataAddr = addr + 2
			} else {
				if sizeByte&0x40 != 0 {
					size = 2
				} else {
					size = 1
				}
				dataAddr = addr + 1
			}
			addr = dataAddr + uint32(size)
		}
		entries = append(entries, propEntry{num: num, dataAddr: dataAddr, size: size})
	}
	return entries, nil
}

// Property returns the property's data bytes, or the table's default value
// (as a two-byte big-endian value) if the object has no explicit entry.
func (o *Object) Property(num uint8) ([]byte, error) {
	entries, err := o.walkProperties()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.num == num {
			return o.readBytes(e.dataAddr, e.size)
		}
	}
	def, err := o.table.DefaultProperty(num)
	if err != nil {
		return nil, err
	}
	return []byte{byte(def >> 8), byte(def)}, nil
}

func (o *Object) readBytes(addr uint32, n int) ([]byte, error) {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		b, err := o.table.mem.ByteAt(addr + uint32(i))
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// PropertyAddr returns the byte address of the property's data, or 0 if absent.
func (o *Object) PropertyAddr(num uint8) (uint32, error) {
	entries, err := o.walkProperties()
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if e.num == num {
			return e.dataAddr, nil
		}
	}
	return 0, nil
}

// PropertyLen returns the size in bytes of the property at dataAddr, by
// re-reading the size byte that precedes it. Returns 0 if dataAddr is 0.
func (o *Object) PropertyLen(dataAddr uint32) (int, error) {
	return o.table.PropertyLen(dataAddr)
}

// PropertyLen is the table-level form of the same lookup: the size-byte
// encoding depends only on the story's version, not on which object the
// property belongs to.
func (t *Table) PropertyLen(dataAddr uint32) (int, error) {
	if dataAddr == 0 {
		return 0, nil
	}
	if t.version <= 3 {
		sizeByte, err := t.mem.ByteAt(dataAddr - 1)
		if err != nil {
			return 0, err
		}
		return int(sizeByte/32) + 1, nil
	}
	sizeByte, err := t.mem.ByteAt(dataAddr - 1)
	if err != nil {
		return 0, err
	}
	if sizeByte&0x80 != 0 {
		// Second byte of a two-byte size header: its low 6 bits are the
		// size, as walkProperties reads them.
		size := int(sizeByte & 0x3F)
		if size == 0 {
			size = 64
		}
		return size, nil
	}
	if sizeByte&0x40 != 0 {
		return 2, nil
	}
	return 1, nil
}

// NextProperty yields the next-smaller-numbered property after num, 0 after
// the last, or the first property when num is 0.
func (o *Object) NextProperty(num uint8) (uint8, error) {
	entries, err := o.walkProperties()
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	if num == 0 {
		return entries[0].num, nil
	}
	for i, e := range entries {
		if e.num == num {
			if i+1 < len(entries) {
				return entries[i+1].num, nil
			}
			return 0, nil
		}
	}
	return 0, vmerr.New(vmerr.NoSuchProperty, "object %d has no property %d", o.Number, num)
}

// PutProperty overwrites an existing property's data bytes (1 or 2 bytes,
// per the format's store/put_prop contract). It fails NoSuchProperty if the
// property is not already present, matching the format's own reference
// behavior rather than silently no-oping.
func (o *Object) PutProperty(num uint8, value uint16) error {
	entries, err := o.walkProperties()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.num == num {
			if e.size == 1 {
				return o.table.mem.SetByte(e.dataAddr, byte(value))
			}
			return o.table.mem.SetWord(e.dataAddr, value)
		}
	}
	return vmerr.New(vmerr.NoSuchProperty, "object %d has no property %d", o.Number, num)
}

// MoveObject unlinks x from its current parent's child/sibling chain, then
// inserts it as the new first child of p. Preserves the forest invariant:
// x appears on exactly one chain afterward.
func (t *Table) MoveObject(x, p uint16) error {
	if err := t.RemoveObject(x); err != nil {
		return err
	}
	if p == 0 {
		return nil
	}
	xo, err := t.Object(x)
	if err != nil {
		return err
	}
	po, err := t.Object(p)
	if err != nil {
		return err
	}
	oldFirstChild, err := po.Child()
	if err != nil {
		return err
	}
	if err := xo.SetSibling(oldFirstChild); err != nil {
		return err
	}
	if err := xo.SetParent(p); err != nil {
		return err
	}
	return po.SetChild(x)
}

// RemoveObject unlinks x from its current parent's child/sibling chain,
// leaving it parentless. A no-op if x has no parent.
func (t *Table) RemoveObject(x uint16) error {
	xo, err := t.Object(x)
	if err != nil {
		return err
	}
	parent, err := xo.Parent()
	if err != nil {
		return err
	}
	if parent == 0 {
		return nil
	}
	po, err := t.Object(parent)
	if err != nil {
		return err
	}
	firstChild, err := po.Child()
	if err != nil {
		return err
	}
	xSibling, err := xo.Sibling()
	if err != nil {
		return err
	}
	if firstChild == x {
		if err := po.SetChild(xSibling); err != nil {
			return err
		}
	} else {
		cur := firstChild
		for cur != 0 {
			co, err := t.Object(cur)
			if err != nil {
				return err
			}
			sib, err := co.Sibling()
			if err != nil {
				return err
			}
			if sib == x {
				if err := co.SetSibling(xSibling); err != nil {
					return err
				}
				break
			}
			cur = sib
		}
	}
	if err := xo.SetParent(0); err != nil {
		return err
	}
	return xo.SetSibling(0)
}
