// Package zdecode turns raw story-file bytes into resolved instruction
// records. It never mutates memory and never executes an effect; it is
// consumed by the dispatcher, which is the only component that interprets
// an Instruction's meaning.
package zdecode

import "fmt"

// Form is the instruction encoding form, determined by the top bits of the
// opcode byte.
type Form int

const (
	FormLong Form = iota
	FormShort
	FormVariable
	FormExtended
)

func (f Form) String() string {
	switch f {
	case FormLong:
		return "long"
	case FormShort:
		return "short"
	case FormVariable:
		return "variable"
	case FormExtended:
		return "extended"
	default:
		return "unknown"
	}
}

// OperandKind identifies how an operand's value is encoded and where it
// must be resolved from.
type OperandKind int

const (
	LargeConstant OperandKind = iota
	SmallConstant
	Variable
	Omitted
)

func operandKind(bits byte) OperandKind {
	switch bits & 0x3 {
	case 0x0:
		return LargeConstant
	case 0x1:
		return SmallConstant
	case 0x2:
		return Variable
	default:
		return Omitted
	}
}

// Branch describes the branch metadata attached to a branching opcode.
type Branch struct {
	// OnTrue is the polarity: branch when the opcode's condition is true
	// (bit 7 of the branch byte set) versus when it is false.
	OnTrue bool
	// Return, when non-nil, means the branch offset was one of the two
	// reserved sentinels (0 or 1): the dispatcher must return immediately
	// from the current routine with this value instead of jumping.
	Return *bool
	// Offset is the signed jump offset, meaningful only when Return is nil.
	// The dispatcher computes the target pc as next_pc + Offset - 2.
	Offset int16
}

// Instruction is the fully resolved, immutable record produced by Decode.
type Instruction struct {
	Address      uint32
	Form         Form
	Opcode       byte
	Name         string
	OperandTypes []OperandKind
	Operands     []uint16
	// Store holds the destination variable number iff the opcode stores a
	// result.
	Store *uint8
	// BranchInfo holds branch metadata iff the opcode branches.
	BranchInfo *Branch
	NextPC       uint32
}

func (i Instruction) String() string {
	return fmt.Sprintf("$%06x: %s %v S:%v B:%v -> $%06x", i.Address, i.Name, i.Operands, i.Store, i.BranchInfo, i.NextPC)
}

// ByteSource is the minimal read surface the decoder needs. memory.Snapshot
// satisfies it.
type ByteSource interface {
	ByteAt(addr uint32) (byte, error)
	WordAt(addr uint32) (uint16, error)
}
