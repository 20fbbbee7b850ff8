// Package zdispatch drives execution: decode an instruction, look up its
// effect by opcode name, apply the effect's store/branch/pc outcome, repeat.
// It is the one package that wires memory, the frame stack, the object
// tree, the text codec, and the dictionary into a runnable loop.
package zdispatch

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"

	"github.com/zirujauak/infocom/internal/memory"
	"github.com/zirujauak/infocom/internal/vmerr"
	"github.com/zirujauak/infocom/internal/zdecode"
	"github.com/zirujauak/infocom/internal/zdict"
	"github.com/zirujauak/infocom/internal/zframe"
	"github.com/zirujauak/infocom/internal/zobject"
	"github.com/zirujauak/infocom/internal/zpersist"
	"github.com/zirujauak/infocom/internal/ztext"
)

// InstructionResult is an opcode effect's outcome. Store and BranchCond may
// both be set (get_sibling, get_child, save, restore); the decoded
// instruction determines which of them apply. A set NextPC takes precedence
// over both.
type InstructionResult struct {
	// Store is the value to write to the instruction's store variable, if
	// storesResult was true for it.
	Store *uint16
	// BranchCond is the condition outcome to compare against the
	// instruction's branch polarity, if it has a BranchInfo.
	BranchCond *bool
	// NextPC, when set, overrides the normal next-pc/branch/store handling
	// entirely: used by call, jump, ret, and a successful restore.
	NextPC *uint32
}

func storeResult(v uint16) InstructionResult  { return InstructionResult{Store: &v} }
func branchResult(c bool) InstructionResult   { return InstructionResult{BranchCond: &c} }
func jumpResult(pc uint32) InstructionResult  { return InstructionResult{NextPC: &pc} }

// storeAndBranch reports success on both a store variable and a branch,
// letting the same effect serve an opcode whose store/branch presence
// varies by format version (save and restore, across versions).
func storeAndBranch(success bool) InstructionResult {
	v := boolToWord(success)
	return InstructionResult{Store: &v, BranchCond: &success}
}

func boolToWord(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}

// Dispatcher owns the single-threaded state group (memory, frames, object
// tree, text codec, dictionary) and the effect table that interprets each
// decoded instruction against it.
type Dispatcher struct {
	mem     *memory.Map
	frames  *zframe.Stack
	objects *zobject.Table
	codec   *ztext.Codec
	dict    *zdict.Dictionary
	screen  Screen
	persist zpersist.Facade
	saves   SaveStore
	rng     *rand.Rand
	logger  *slog.Logger

	effects map[string]effectFunc
}

type effectFunc func(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error)

// New builds a Dispatcher over an already-loaded story's components. saves
// and logger may be nil; a nil logger installs slog's default.
func New(mem *memory.Map, frames *zframe.Stack, objects *zobject.Table, codec *ztext.Codec, dict *zdict.Dictionary, screen Screen, persist zpersist.Facade, saves SaveStore, rng *rand.Rand, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	d := &Dispatcher{
		mem:     mem,
		frames:  frames,
		objects: objects,
		codec:   codec,
		dict:    dict,
		screen:  screen,
		persist: persist,
		saves:   saves,
		rng:     rng,
		logger:  logger,
	}
	d.effects = buildEffectTable()
	return d
}

// Run decodes and executes instructions starting at initialPC until the
// main frame returns or ctx is cancelled. Cancellation is only observed at
// instruction boundaries, never mid-instruction.
func (d *Dispatcher) Run(ctx context.Context, initialPC uint32) error {
	pc := initialPC
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		inst, err := zdecode.Decode(d.mem.Snapshot(), pc, d.mem.Header().Version)
		if err != nil {
			d.logger.Error("decode fault", "addr", pc, "err", err)
			return err
		}
		d.logger.Debug("dispatch", "addr", inst.Address, "opcode", inst.Name)

		result, err := d.dispatch(inst)
		if err != nil {
			if errors.Is(err, zframe.Terminated) {
				d.logger.Debug("execution terminated", "addr", inst.Address)
				return nil
			}
			d.logger.Error("instruction fault", "addr", inst.Address, "opcode", inst.Name, "err", err)
			return err
		}

		pc, err = d.applyResult(inst, result)
		if err != nil {
			if errors.Is(err, zframe.Terminated) {
				d.logger.Debug("execution terminated", "addr", inst.Address)
				return nil
			}
			d.logger.Error("apply fault", "addr", inst.Address, "opcode", inst.Name, "err", err)
			return err
		}
	}
}

func (d *Dispatcher) dispatch(inst zdecode.Instruction) (InstructionResult, error) {
	fn, ok := d.effects[inst.Name]
	if !ok {
		return InstructionResult{}, vmerr.New(vmerr.InvalidOpcode, "no effect registered for opcode %q at $%06x", inst.Name, inst.Address)
	}
	ops, err := d.resolveOperands(inst)
	if err != nil {
		return InstructionResult{}, err
	}
	return fn(d, inst, ops)
}

// resolveOperands turns each operand slot into its effective value: a
// constant operand is used as-is, a variable operand's number is resolved
// through the frame stack.
func (d *Dispatcher) resolveOperands(inst zdecode.Instruction) ([]uint16, error) {
	out := make([]uint16, len(inst.Operands))
	for i, raw := range inst.Operands {
		if inst.OperandTypes[i] == zdecode.Variable {
			v, err := d.frames.ReadVariable(uint8(raw))
			if err != nil {
				return nil, err
			}
			out[i] = v
			continue
		}
		out[i] = raw
	}
	return out, nil
}

func (d *Dispatcher) applyResult(inst zdecode.Instruction, result InstructionResult) (uint32, error) {
	if result.NextPC != nil {
		return *result.NextPC, nil
	}
	if inst.Store != nil && result.Store != nil {
		if err := d.frames.WriteVariable(*inst.Store, *result.Store); err != nil {
			return 0, err
		}
	}
	if inst.BranchInfo != nil {
		cond := false
		if result.BranchCond != nil {
			cond = *result.BranchCond
		}
		if cond == inst.BranchInfo.OnTrue {
			if inst.BranchInfo.Return != nil {
				return d.frames.Return(boolToWord(*inst.BranchInfo.Return))
			}
			return uint32(int64(inst.NextPC) + int64(inst.BranchInfo.Offset) - 2), nil
		}
	}
	return inst.NextPC, nil
}
