// Package ztext implements the ZSCII text codec: decoding packed strings
// read from story memory into Go strings, and encoding player input tokens
// into the dictionary's fixed-width packed form.
package ztext

import (
	"strings"

	"github.com/zirujauak/infocom/internal/memory"
	"github.com/zirujauak/infocom/internal/vmerr"
)

// alphabetA2V2Up is the default A2 (punctuation/digit) table for versions 2
// and up, alphabetA2V1 the version 1 one; the default A0 and A1 are the
// plain lower/upper case alphabet.
const (
	alphabetA0      = "abcdefghijklmnopqrstuvwxyz"
	alphabetA1      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	alphabetA2V2Up  = " \n0123456789.,!?_#'\"/\\-:()"
	alphabetA2V1    = " 0123456789.,!?_#'\"/\\<-:()"
)

// ByteSource is the read surface the codec needs. memory.Snapshot satisfies it.
type ByteSource interface {
	ByteAt(addr uint32) (byte, error)
	WordAt(addr uint32) (uint16, error)
}

// Codec decodes and encodes ZSCII text for one loaded story's version.
type Codec struct {
	version        uint8
	alphabets      [3]string
	abbreviations  uint32
}

// New builds a Codec from a loaded story's header. Version 5+ custom
// alphabet tables (header word at 0x34) are honored when present; the
// Unicode translation table (header extension) is not implemented, matching
// this interpreter's non-goal of full version-6 screen/graphics support.
func New(mem *memory.Map) (*Codec, error) {
	h := mem.Header()
	a2 := alphabetA2V2Up
	if h.Version == 1 {
		a2 = alphabetA2V1
	}
	c := &Codec{
		version:       h.Version,
		alphabets:     [3]string{alphabetA0, alphabetA1, a2},
		abbreviations: uint32(h.AbbreviationsAddr),
	}
	if h.Version >= 5 && h.AlphabetTableAddr != 0 {
		snap := mem.Snapshot()
		for row := 0; row < 3; row++ {
			var sb strings.Builder
			for col := 0; col < 26; col++ {
				b, err := snap.ByteAt(uint32(h.AlphabetTableAddr) + uint32(row*26+col))
				if err != nil {
					return nil, vmerr.Wrap(vmerr.OutOfBounds, err, "reading custom alphabet table")
				}
				sb.WriteByte(b)
			}
			c.alphabets[row] = sb.String()
		}
	}
	return c, nil
}

// supportsAbbrev reports whether zchar zc (1, 2, or 3) selects an
// abbreviation table entry for this story's version. Version 1 has no
// abbreviations at all; version 2 supports only code 1.
func (c *Codec) supportsAbbrev(zc byte) bool {
	if zc == 0 || zc > 3 {
		return false
	}
	switch c.version {
	case 1:
		return false
	case 2:
		return zc == 1
	default:
		return true
	}
}

// DecodeString decodes the packed string starting at addr, returning the
// decoded text and the address immediately past the terminal word.
func (c *Codec) DecodeString(src ByteSource, addr uint32) (string, uint32, error) {
	return c.decode(src, addr, 0)
}

func (c *Codec) decode(src ByteSource, addr uint32, depth int) (string, uint32, error) {
	if depth > 1 {
		return "", 0, vmerr.New(vmerr.InvalidString, "abbreviation expansion nested at $%06x", addr)
	}

	var zchars []byte
	cur := addr
	for {
		w, err := src.WordAt(cur)
		if err != nil {
			return "", 0, vmerr.Wrap(vmerr.InvalidString, err, "packed string at $%06x never terminates", addr)
		}
		cur += 2
		zchars = append(zchars, byte(w>>10)&0x1F, byte(w>>5)&0x1F, byte(w)&0x1F)
		if w&0x8000 != 0 {
			break
		}
	}

	var sb strings.Builder
	alphabet := 0
	for i := 0; i < len(zchars); i++ {
		zc := zchars[i]

		if c.supportsAbbrev(zc) {
			if i+1 >= len(zchars) {
				return "", 0, vmerr.New(vmerr.InvalidString, "truncated abbreviation code at $%06x", addr)
			}
			idx := zchars[i+1]
			i++
			abbrevWordAddr := c.abbreviations + uint32(32*(int(zc)-1)+int(idx))*2
			abbrevWord, err := src.WordAt(abbrevWordAddr)
			if err != nil {
				return "", 0, vmerr.Wrap(vmerr.InvalidString, err, "reading abbreviation table entry")
			}
			expanded, _, err := c.decode(src, uint32(abbrevWord)*2, depth+1)
			if err != nil {
				return "", 0, err
			}
			sb.WriteString(expanded)
			alphabet = 0
			continue
		}

		if zc == 4 {
			alphabet = 1
			continue
		}
		if zc == 5 {
			alphabet = 2
			continue
		}
		if alphabet == 2 && zc == 6 {
			if i+2 >= len(zchars) {
				return "", 0, vmerr.New(vmerr.InvalidString, "truncated 10-bit ZSCII escape at $%06x", addr)
			}
			code := uint16(zchars[i+1])<<5 | uint16(zchars[i+2])
			i += 2
			sb.WriteByte(zsciiToASCII(code))
			alphabet = 0
			continue
		}

		switch {
		case zc == 0:
			sb.WriteByte(' ')
		case int(zc) >= 6 && int(zc)-6 < len(c.alphabets[alphabet]):
			sb.WriteByte(c.alphabets[alphabet][zc-6])
		default:
			return "", 0, vmerr.New(vmerr.InvalidString, "zchar %d out of range for alphabet %d", zc, alphabet)
		}
		alphabet = 0
	}

	return sb.String(), cur, nil
}

// zsciiToASCII best-effort maps a 10-bit ZSCII code to a printable byte.
// Codes 32-126 are plain ASCII; anything else that this interpreter does
// not carry a translation table for degrades to '?' rather than failing
// decode outright, since a missing glyph is not a corrupt image.
func zsciiToASCII(code uint16) byte {
	if code == 13 {
		return '\n'
	}
	if code >= 32 && code <= 126 {
		return byte(code)
	}
	return '?'
}

// TokenLength is the dictionary's fixed encoded-token length in ZSCII
// characters: 6 for versions <=3, 9 for versions >=4.
func (c *Codec) TokenLength() int {
	if c.version <= 3 {
		return 6
	}
	return 9
}

// EncodeToken normalizes s (lowercase, truncate/pad to TokenLength ZSCII
// characters) and packs it into the dictionary's fixed-width word form: two
// words for version <=3, three for version >=4.
func (c *Codec) EncodeToken(s string) []uint16 {
	n := c.TokenLength()
	zchars := make([]byte, 0, n)
	for _, r := range strings.ToLower(s) {
		if len(zchars) >= n {
			break
		}
		zchars = append(zchars, c.encodeRune(r)...)
	}
	for len(zchars) < n {
		zchars = append(zchars, 5)
	}
	zchars = zchars[:n]

	words := make([]uint16, n/3)
	for i := range words {
		a, b, cc := zchars[i*3], zchars[i*3+1], zchars[i*3+2]
		words[i] = uint16(a&0x1F)<<10 | uint16(b&0x1F)<<5 | uint16(cc&0x1F)
	}
	words[len(words)-1] |= 0x8000
	return words
}

// encodeRune maps a single rune to one or more zchars: a direct A0 code, or
// a shift code (4 for A1, 5 for A2) followed by the code in that alphabet.
// Characters with no representation encode as a literal space.
func (c *Codec) encodeRune(r rune) []byte {
	if r == ' ' {
		return []byte{0}
	}
	if idx := strings.IndexRune(c.alphabets[0], r); idx >= 0 {
		return []byte{byte(idx) + 6}
	}
	if idx := strings.IndexRune(c.alphabets[1], r); idx >= 0 {
		return []byte{4, byte(idx) + 6}
	}
	if idx := strings.IndexRune(c.alphabets[2], r); idx >= 0 {
		return []byte{5, byte(idx) + 6}
	}
	return []byte{0}
}
