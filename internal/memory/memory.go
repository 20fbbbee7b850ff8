// Package memory owns the byte image of a loaded story file and enforces
// the Z-Machine's region rules: dynamic memory is the only writable region,
// and reads never escape the addressable 64 KiB window.
package memory

import (
	"fmt"

	"github.com/zirujauak/infocom/internal/vmerr"
)

// MaxAddressable is the top of the addressable 64 KiB window. Reads beyond
// it fail regardless of image length.
const MaxAddressable = 0x10000

// Map is the single owner of a story image's bytes. It is not safe for
// concurrent use; the interpreter is single-threaded by design (see the
// dispatcher's concurrency model).
type Map struct {
	buf    []byte
	header Header
}

// New parses buf's header and returns a Map owning it. buf is retained, not
// copied; callers must not mutate it afterward except through Map's methods.
func New(buf []byte) (*Map, error) {
	if len(buf) < 0x40 {
		return nil, vmerr.New(vmerr.OutOfBounds, "story image too short for header: %d bytes", len(buf))
	}
	return &Map{buf: buf, header: readHeader(buf)}, nil
}

// Header returns the parsed header fields.
func (m *Map) Header() Header {
	return m.header
}

// Len is the length of the loaded image in bytes.
func (m *Map) Len() int {
	return len(m.buf)
}

// DynamicEnd is D, the exclusive end of the writable dynamic region.
func (m *Map) DynamicEnd() uint32 {
	return uint32(m.header.StaticMemAddr)
}

// HighStart is H, the inclusive start of high memory.
func (m *Map) HighStart() uint32 {
	return uint32(m.header.HighMemBase)
}

// ByteAt reads one byte. Fails with OutOfBounds if addr is outside the
// addressable window or past the end of the image.
func (m *Map) ByteAt(addr uint32) (byte, error) {
	if addr >= MaxAddressable || int(addr) >= len(m.buf) {
		return 0, vmerr.New(vmerr.OutOfBounds, "read at $%04x beyond image of length $%04x", addr, len(m.buf))
	}
	return m.buf[addr], nil
}

// WordAt reads a big-endian 16-bit word at addr and addr+1.
func (m *Map) WordAt(addr uint32) (uint16, error) {
	hi, err := m.ByteAt(addr)
	if err != nil {
		return 0, err
	}
	lo, err := m.ByteAt(addr + 1)
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

// SetByte writes one byte. Fails with ReadOnlyRegion if addr is at or past
// the dynamic/static boundary, else OutOfBounds if addr is past the image.
func (m *Map) SetByte(addr uint32, v byte) error {
	if addr >= m.DynamicEnd() {
		return vmerr.New(vmerr.ReadOnlyRegion, "write at $%04x at or past dynamic end $%04x", addr, m.DynamicEnd())
	}
	if int(addr) >= len(m.buf) || addr >= MaxAddressable {
		return vmerr.New(vmerr.OutOfBounds, "write at $%04x beyond image", addr)
	}
	m.buf[addr] = v
	return nil
}

// SetWord writes a big-endian 16-bit word. Both bytes are region-checked
// before either is stored, so a failing call never partially mutates memory.
func (m *Map) SetWord(addr uint32, v uint16) error {
	if err := m.checkWritable(addr); err != nil {
		return err
	}
	if err := m.checkWritable(addr + 1); err != nil {
		return err
	}
	m.buf[addr] = byte(v >> 8)
	m.buf[addr+1] = byte(v)
	return nil
}

func (m *Map) checkWritable(addr uint32) error {
	if addr >= m.DynamicEnd() {
		return vmerr.New(vmerr.ReadOnlyRegion, "write at $%04x at or past dynamic end $%04x", addr, m.DynamicEnd())
	}
	if int(addr) >= len(m.buf) || addr >= MaxAddressable {
		return vmerr.New(vmerr.OutOfBounds, "write at $%04x beyond image", addr)
	}
	return nil
}

// Snapshot returns a read-only view over the full image. The returned view
// shares the underlying array, so subsequent writes through Map are visible
// through it immediately, satisfying the "refreshed after every mutating
// call" requirement without an explicit copy.
func (m *Map) Snapshot() Snapshot {
	return Snapshot{buf: m.buf}
}

// DynamicBytes returns a copy of the dynamic region, for persistence.
func (m *Map) DynamicBytes() []byte {
	d := m.DynamicEnd()
	out := make([]byte, d)
	copy(out, m.buf[:d])
	return out
}

// RestoreDynamicBytes overwrites the dynamic region from a previously
// captured snapshot (used when loading a persisted save).
func (m *Map) RestoreDynamicBytes(b []byte) error {
	d := int(m.DynamicEnd())
	if len(b) != d {
		return vmerr.New(vmerr.IncompatibleSave, "dynamic memory length %d does not match story's %d", len(b), d)
	}
	copy(m.buf[:d], b)
	return nil
}

// Checksum sums every byte from offset 0x40 to the end of the image modulo
// 0x10000, as the format's own verification routine does, for comparison
// against the header's declared checksum at load and save-compatibility time.
func (m *Map) Checksum() uint16 {
	var sum uint16
	for i := 0x40; i < len(m.buf); i++ {
		sum += uint16(m.buf[i])
	}
	return sum
}

// VerifyChecksum reports whether the image's computed checksum matches the
// header's declared checksum. Some story files ship a zero checksum and are
// exempt from the check.
func (m *Map) VerifyChecksum() bool {
	if m.header.Checksum == 0 {
		return true
	}
	return m.Checksum() == m.header.Checksum
}

// GlobalAddr is the byte address of global variable n (16 <= n <= 255).
func (m *Map) GlobalAddr(n uint8) (uint32, error) {
	if n < 16 {
		return 0, vmerr.New(vmerr.OutOfBounds, "global variable number %d below range", n)
	}
	return uint32(m.header.GlobalVarAddr) + 2*uint32(n-16), nil
}

// Snapshot is a read-only view over a Map's bytes, handed to the decoder and
// text codec so they cannot mutate the image they are reading.
type Snapshot struct {
	buf []byte
}

// ByteAt reads one byte, OutOfBounds past the addressable window or image end.
func (s Snapshot) ByteAt(addr uint32) (byte, error) {
	if addr >= MaxAddressable || int(addr) >= len(s.buf) {
		return 0, vmerr.New(vmerr.OutOfBounds, "read at $%04x beyond image of length $%04x", addr, len(s.buf))
	}
	return s.buf[addr], nil
}

// WordAt reads a big-endian word.
func (s Snapshot) WordAt(addr uint32) (uint16, error) {
	hi, err := s.ByteAt(addr)
	if err != nil {
		return 0, err
	}
	lo, err := s.ByteAt(addr + 1)
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

// Len is the length of the underlying image.
func (s Snapshot) Len() int {
	return len(s.buf)
}

func (s Snapshot) String() string {
	return fmt.Sprintf("memory.Snapshot(%d bytes)", len(s.buf))
}
