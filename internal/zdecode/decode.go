package zdecode

import "github.com/zirujauak/infocom/internal/vmerr"

const extendedPrefix = 0xBE

// Decode reads one instruction at addr from src, for a story of the given
// version. It never mutates src and performs no side effects beyond the
// reads required to resolve the instruction's shape.
func Decode(src ByteSource, addr uint32, version uint8) (Instruction, error) {
	cur := addr

	opByte, err := src.ByteAt(cur)
	if err != nil {
		return Instruction{}, vmerr.Wrap(vmerr.OutOfBounds, err, "reading opcode byte at $%06x", cur)
	}
	cur++

	form := classifyForm(opByte)

	var group opcodeGroup
	var opcode byte
	var types []OperandKind

	switch form {
	case FormExtended:
		opcode, err = src.ByteAt(cur)
		if err != nil {
			return Instruction{}, vmerr.Wrap(vmerr.OutOfBounds, err, "reading extended opcode at $%06x", cur)
		}
		cur++
		group = groupEXT
		types, cur, err = readVariableOperandTypes(src, cur, false)
		if err != nil {
			return Instruction{}, err
		}
	case FormLong:
		opcode = opByte & 0x1F
		group = group2OP
		types = []OperandKind{
			longOperandKind(opByte, 6),
			longOperandKind(opByte, 5),
		}
	case FormShort:
		opcode = opByte & 0x0F
		kind := operandKind((opByte >> 4) & 0x3)
		if kind == Omitted {
			group = group0OP
			types = nil
		} else {
			group = group1OP
			types = []OperandKind{kind}
		}
	case FormVariable:
		opcode = opByte & 0x1F
		doublyVariable := opcode == 12 || opcode == 26
		if opByte&0x20 == 0 {
			group = group2OP
		} else {
			group = groupVAR
		}
		types, cur, err = readVariableOperandTypes(src, cur, doublyVariable)
		if err != nil {
			return Instruction{}, err
		}
	}

	operands := make([]uint16, 0, len(types))
	for _, k := range types {
		switch k {
		case LargeConstant:
			w, err := src.WordAt(cur)
			if err != nil {
				return Instruction{}, vmerr.Wrap(vmerr.OutOfBounds, err, "reading large-constant operand at $%06x", cur)
			}
			operands = append(operands, w)
			cur += 2
		case SmallConstant, Variable:
			b, err := src.ByteAt(cur)
			if err != nil {
				return Instruction{}, vmerr.Wrap(vmerr.OutOfBounds, err, "reading operand byte at $%06x", cur)
			}
			operands = append(operands, uint16(b))
			cur++
		}
	}
	if len(operands) != countResolved(types) {
		return Instruction{}, vmerr.New(vmerr.InvalidOperandCount, "opcode at $%06x: %d operand types, %d operands", addr, len(types), len(operands))
	}

	var store *uint8
	if storesResult(group, opcode, version) {
		b, err := src.ByteAt(cur)
		if err != nil {
			return Instruction{}, vmerr.Wrap(vmerr.OutOfBounds, err, "reading store variable at $%06x", cur)
		}
		cur++
		store = &b
	}

	var branch *Branch
	if branches(group, opcode, version) {
		branch, cur, err = decodeBranch(src, cur)
		if err != nil {
			return Instruction{}, err
		}
	}

	if hasLiteralString(group, opcode) {
		cur, err = skipLiteralString(src, cur)
		if err != nil {
			return Instruction{}, err
		}
	}

	name := opcodeName(group, opcode, version)
	if name == "" {
		return Instruction{}, vmerr.New(vmerr.InvalidOpcode, "undefined opcode $%02x (form %s, version %d) at $%06x", opcode, form, version, addr)
	}

	return Instruction{
		Address:      addr,
		Form:         form,
		Opcode:       opcode,
		Name:         name,
		OperandTypes: types,
		Operands:     operands,
		Store:        store,
		BranchInfo:   branch,
		NextPC:       cur,
	}, nil
}

func classifyForm(opByte byte) Form {
	if opByte == extendedPrefix {
		return FormExtended
	}
	switch opByte >> 6 {
	case 0x3:
		return FormVariable
	case 0x2:
		return FormShort
	default:
		return FormLong
	}
}

// longOperandKind decodes one of long form's two single-bit operand kind
// selectors: the bit set means Variable, clear means SmallConstant.
func longOperandKind(opByte byte, bit uint) OperandKind {
	if opByte&(1<<bit) != 0 {
		return Variable
	}
	return SmallConstant
}

// readVariableOperandTypes reads one types byte (or two, for doubly-variable
// opcodes), stopping at the first Omitted kind, per the format's packed
// 2-bit-per-operand encoding (high-order operand first).
func readVariableOperandTypes(src ByteSource, addr uint32, doublyVariable bool) ([]OperandKind, uint32, error) {
	var types []OperandKind
	cur := addr

	readByte := func() (byte, error) {
		b, err := src.ByteAt(cur)
		if err != nil {
			return 0, vmerr.Wrap(vmerr.OutOfBounds, err, "reading operand types byte at $%06x", cur)
		}
		cur++
		return b, nil
	}

	tb, err := readByte()
	if err != nil {
		return nil, 0, err
	}
	stopped := appendTypes(&types, tb)

	if doublyVariable && !stopped {
		tb2, err := readByte()
		if err != nil {
			return nil, 0, err
		}
		appendTypes(&types, tb2)
	}

	return types, cur, nil
}

// appendTypes decodes up to four 2-bit kinds from a types byte into types,
// stopping at (and not including) the first Omitted. It reports whether it
// stopped early (so a doubly-variable caller can skip the second byte).
func appendTypes(types *[]OperandKind, tb byte) bool {
	for shift := 6; shift >= 0; shift -= 2 {
		k := operandKind((tb >> uint(shift)) & 0x3)
		if k == Omitted {
			return true
		}
		*types = append(*types, k)
	}
	return false
}

func countResolved(types []OperandKind) int {
	n := 0
	for _, k := range types {
		if k != Omitted {
			n++
		}
	}
	return n
}

func decodeBranch(src ByteSource, addr uint32) (*Branch, uint32, error) {
	b1, err := src.ByteAt(addr)
	if err != nil {
		return nil, 0, vmerr.Wrap(vmerr.OutOfBounds, err, "reading branch byte at $%06x", addr)
	}
	cur := addr + 1
	onTrue := b1&0x80 != 0

	var offset int16
	if b1&0x40 != 0 {
		offset = int16(b1 & 0x3F)
	} else {
		b2, err := src.ByteAt(cur)
		if err != nil {
			return nil, 0, vmerr.Wrap(vmerr.OutOfBounds, err, "reading branch offset low byte at $%06x", cur)
		}
		cur++
		raw := int16(b1&0x3F)<<8 | int16(b2)
		// sign-extend the 14-bit value
		if raw&0x2000 != 0 {
			raw -= 0x4000
		}
		offset = raw
	}

	br := &Branch{OnTrue: onTrue, Offset: offset}
	if offset == 0 {
		f := false
		br.Return = &f
	} else if offset == 1 {
		tr := true
		br.Return = &tr
	}
	return br, cur, nil
}

// skipLiteralString advances past an inline packed string (print, print_ret)
// without decoding it, stopping just past the first word with its high bit set.
func skipLiteralString(src ByteSource, addr uint32) (uint32, error) {
	cur := addr
	for {
		w, err := src.WordAt(cur)
		if err != nil {
			return 0, vmerr.Wrap(vmerr.InvalidString, err, "literal string at $%06x never terminates", addr)
		}
		cur += 2
		if w&0x8000 != 0 {
			return cur, nil
		}
	}
}
