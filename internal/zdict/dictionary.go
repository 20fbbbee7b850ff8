// Package zdict tokenizes player input lines against the story's dictionary
// and writes the Z-Machine parse buffer layout. It supplements the core
// interpreter: decoding and dispatching instructions does not strictly need
// it, but no runnable interpreter is complete without resolving sread's
// input into dictionary references.
package zdict

import (
	"github.com/zirujauak/infocom/internal/memory"
	"github.com/zirujauak/infocom/internal/vmerr"
	"github.com/zirujauak/infocom/internal/ztext"
)

// Token is one recognized unit of an input line: either a word or a single
// separator character, tagged with its 0-based offset in the source line.
type Token struct {
	Text     string
	Position int
	// Separator is true when Text is one of the dictionary's configured
	// separator characters rather than a space-delimited word.
	Separator bool
}

// Dictionary is the parsed header-pointed word list.
type Dictionary struct {
	separators     map[byte]struct{}
	entryLength    int
	entryCount     int
	entriesAddress uint32
	codec          *ztext.Codec
}

// Load parses the dictionary region pointed to by the story header.
func Load(mem *memory.Map, codec *ztext.Codec) (*Dictionary, error) {
	addr := uint32(mem.Header().DictionaryAddr)
	snap := mem.Snapshot()

	sepCount, err := snap.ByteAt(addr)
	if err != nil {
		return nil, vmerr.Wrap(vmerr.OutOfBounds, err, "reading dictionary separator count at $%06x", addr)
	}
	seps := make(map[byte]struct{}, sepCount)
	for i := 0; i < int(sepCount); i++ {
		b, err := snap.ByteAt(addr + 1 + uint32(i))
		if err != nil {
			return nil, vmerr.Wrap(vmerr.OutOfBounds, err, "reading dictionary separator %d", i)
		}
		seps[b] = struct{}{}
	}

	entryLenAddr := addr + 1 + uint32(sepCount)
	entryLen, err := snap.ByteAt(entryLenAddr)
	if err != nil {
		return nil, vmerr.Wrap(vmerr.OutOfBounds, err, "reading dictionary entry length")
	}
	entryCount, err := snap.WordAt(entryLenAddr + 1)
	if err != nil {
		return nil, vmerr.Wrap(vmerr.OutOfBounds, err, "reading dictionary entry count")
	}

	return &Dictionary{
		separators:     seps,
		entryLength:    int(entryLen),
		entryCount:     int(entryCount),
		entriesAddress: entryLenAddr + 3,
		codec:          codec,
	}, nil
}

// Tokenize splits line into word and separator tokens, the way the format's
// own reference parser does: whitespace splits but is discarded, and each
// configured separator character becomes its own single-character token
// while still splitting adjacent words.
func (d *Dictionary) Tokenize(line string) []Token {
	var tokens []Token
	start := 0
	flush := func(end int) {
		if end > start {
			tokens = append(tokens, Token{Text: line[start:end], Position: start})
		}
	}
	for i := 0; i < len(line); i++ {
		ch := line[i]
		_, isSep := d.separators[ch]
		if ch == ' ' || isSep {
			flush(i)
			if isSep {
				tokens = append(tokens, Token{Text: string(ch), Position: i, Separator: true})
			}
			start = i + 1
		}
	}
	flush(len(line))
	return tokens
}

// Lookup binary-searches the dictionary's entry table (sorted by the
// format's own encoding contract) for word and returns its entry address,
// or 0 if absent.
func (d *Dictionary) Lookup(src ByteSource, word string) (uint16, error) {
	encoded := d.codec.EncodeToken(word)
	key := packKey(encoded)

	lo, hi := 0, d.entryCount
	for lo < hi {
		mid := lo + (hi-lo)/2
		entryAddr := d.entriesAddress + uint32(mid*d.entryLength)
		entryKey, err := readEntryKey(src, entryAddr, len(encoded))
		if err != nil {
			return 0, err
		}
		switch {
		case entryKey == key:
			return uint16(entryAddr), nil
		case entryKey < key:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return 0, nil
}

// ByteSource is the read surface Lookup needs. memory.Snapshot satisfies it.
type ByteSource interface {
	ByteAt(addr uint32) (byte, error)
	WordAt(addr uint32) (uint16, error)
}

func packKey(words []uint16) uint64 {
	var key uint64
	for _, w := range words {
		key = key<<16 | uint64(w)
	}
	return key
}

func readEntryKey(src ByteSource, addr uint32, numWords int) (uint64, error) {
	var key uint64
	for i := 0; i < numWords; i++ {
		w, err := src.WordAt(addr + uint32(i*2))
		if err != nil {
			return 0, vmerr.Wrap(vmerr.OutOfBounds, err, "reading dictionary entry at $%06x", addr)
		}
		key = key<<16 | uint64(w)
	}
	return key, nil
}

// FrameMemory is the narrow write surface WriteParseBuffer needs: the
// region-checked word/byte writers the frame stack's memory map exposes.
type FrameMemory interface {
	SetByte(addr uint32, v byte) error
	SetWord(addr uint32, v uint16) error
}

// WriteParseBuffer tokenizes line, looks up each word token, and writes the
// Z-Machine parse-buffer layout at addr: byte 0 (the buffer's max-word
// count) is left as it is, a word-count byte goes at addr+1, then from
// addr+2 per word a dictionary address word, a length byte, and a
// text-position byte offset
// by 2 (the text buffer's own max-length and count header bytes precede
// the typed text this position is measured from). Separator tokens are
// counted as words for parse-buffer purposes, matching the format's own
// sread contract.
func (d *Dictionary) WriteParseBuffer(mem FrameMemory, src ByteSource, line string, addr uint32, maxWords int) error {
	tokens := d.Tokenize(line)
	if len(tokens) > maxWords {
		tokens = tokens[:maxWords]
	}
	if err := mem.SetByte(addr+1, byte(len(tokens))); err != nil {
		return err
	}
	for i, tok := range tokens {
		entryAddr, err := d.Lookup(src, tok.Text)
		if err != nil {
			return err
		}
		base := addr + 2 + uint32(4*i)
		if err := mem.SetWord(base, entryAddr); err != nil {
			return err
		}
		if err := mem.SetByte(base+2, byte(len(tok.Text))); err != nil {
			return err
		}
		if err := mem.SetByte(base+3, byte(tok.Position+2)); err != nil {
			return err
		}
	}
	return nil
}
