package memory

// Header is the fixed set of story-file header fields the rest of the
// interpreter addresses by name rather than by raw offset. Field offsets
// follow the Z-Machine standard header layout; only the fields this
// interpreter's components actually consume are exposed.
type Header struct {
	Version uint8

	Flags1 uint8

	// HighMemBase is H, the start of high memory.
	HighMemBase uint16

	// InitialPC is the byte address of the first instruction to execute
	// (versions 1-5) or, for version 6, a packed routine address.
	InitialPC uint16

	DictionaryAddr uint16

	ObjectTableAddr uint16

	GlobalVarAddr uint16

	// StaticMemAddr is D, the end of dynamic memory / start of static memory.
	StaticMemAddr uint16

	AbbreviationsAddr uint16

	FileLength uint16

	Checksum uint16

	// AlphabetTableAddr is a version>=5 override of the default A0/A1/A2
	// tables, 0 when the default applies.
	AlphabetTableAddr uint16

	// HeaderExtAddr points to the header extension table (version>=5),
	// 0 when absent. Word 2 of that table, when present, points to a
	// Unicode translation table.
	HeaderExtAddr uint16
}

func readHeader(buf []byte) Header {
	return Header{
		Version:           buf[0],
		Flags1:            buf[1],
		HighMemBase:       getUint16(buf, 0x04),
		InitialPC:         getUint16(buf, 0x06),
		DictionaryAddr:    getUint16(buf, 0x08),
		ObjectTableAddr:   getUint16(buf, 0x0A),
		GlobalVarAddr:     getUint16(buf, 0x0C),
		StaticMemAddr:     getUint16(buf, 0x0E),
		AbbreviationsAddr: getUint16(buf, 0x18),
		FileLength:        getUint16(buf, 0x1A),
		Checksum:          getUint16(buf, 0x1C),
		AlphabetTableAddr: getUint16(buf, 0x34),
		HeaderExtAddr:     getUint16(buf, 0x36),
	}
}

// PackingShift is the left-shift applied to a packed address to obtain a
// byte address: 1 for versions 1-3, 2 for versions 4-7, 3 for version 8.
func (h Header) PackingShift() uint {
	switch {
	case h.Version <= 3:
		return 1
	case h.Version == 8:
		return 3
	default:
		return 2
	}
}

// UnpackAddress resolves a packed routine or string address to a byte address.
func (h Header) UnpackAddress(packed uint16) uint32 {
	return uint32(packed) << h.PackingShift()
}

func getUint16(buf []byte, offset int) uint16 {
	return uint16(buf[offset])<<8 | uint16(buf[offset+1])
}
