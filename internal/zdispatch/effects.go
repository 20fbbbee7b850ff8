package zdispatch

import (
	"strconv"

	"github.com/zirujauak/infocom/internal/vmerr"
	"github.com/zirujauak/infocom/internal/zdecode"
	"github.com/zirujauak/infocom/internal/zframe"
	"github.com/zirujauak/infocom/internal/zpersist"
)

func buildEffectTable() map[string]effectFunc {
	t := map[string]effectFunc{
		// 2OP
		"je":            effectJe,
		"jl":            effectJl,
		"jg":            effectJg,
		"dec_chk":       effectDecChk,
		"inc_chk":       effectIncChk,
		"jin":           effectJin,
		"test":          effectTest,
		"or":            effectOr,
		"and":           effectAnd,
		"test_attr":     effectTestAttr,
		"set_attr":      effectSetAttr,
		"clear_attr":    effectClearAttr,
		"store":         effectStoreVar,
		"insert_obj":    effectInsertObj,
		"loadw":         effectLoadw,
		"loadb":         effectLoadb,
		"get_prop":      effectGetProp,
		"get_prop_addr": effectGetPropAddr,
		"get_next_prop": effectGetNextProp,
		"add":           effectAdd,
		"sub":           effectSub,
		"mul":           effectMul,
		"div":           effectDiv,
		"mod":           effectMod,
		"call_2s":       effectCallStoring,
		"call_2n":       effectCallDiscarding,

		// 1OP
		"jz":          effectJz,
		"get_sibling":  effectGetSibling,
		"get_child":    effectGetChild,
		"get_parent":   effectGetParent,
		"get_prop_len": effectGetPropLen,
		"inc":          effectInc,
		"dec":          effectDec,
		"print_addr":   effectPrintAddr,
		"call_1s":      effectCallStoring,
		"call_1n":      effectCallDiscarding,
		"remove_obj":   effectRemoveObj,
		"print_obj":    effectPrintObj,
		"ret":          effectRet,
		"jump":         effectJump,
		"print_paddr":  effectPrintPaddr,
		"load":         effectLoad,
		"not":          effectNot,

		// 0OP
		"rtrue":      effectRtrue,
		"rfalse":     effectRfalse,
		"print":      effectPrint,
		"print_ret":  effectPrintRet,
		"nop":        effectNop,
		"save":       effectSave,
		"restore":    effectRestore,
		"ret_popped": effectRetPopped,
		"pop":        effectPop,
		"catch":      effectCatch,
		"quit":       effectQuit,
		"new_line":   effectNewLine,
		"verify":     effectVerify,

		// VAR
		"call":       effectCallStoring,
		"storew":     effectStorew,
		"storeb":     effectStoreb,
		"put_prop":   effectPutProp,
		"sread":      effectRead,
		"aread":      effectRead,
		"print_char": effectPrintChar,
		"print_num":  effectPrintNum,
		"random":     effectRandom,
		"push":       effectPush,
		"pull":       effectPull,
		"call_vn":    effectCallDiscarding,
		"call_vn2":   effectCallDiscarding,
	}
	t["call_vs"] = effectCallStoring
	t["call_vs2"] = effectCallStoring
	return t
}

func effectJe(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	for _, v := range ops[1:] {
		if ops[0] == v {
			return branchResult(true), nil
		}
	}
	return branchResult(false), nil
}

func effectJl(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	return branchResult(int16(ops[0]) < int16(ops[1])), nil
}

func effectJg(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	return branchResult(int16(ops[0]) > int16(ops[1])), nil
}

func effectDecChk(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	n := uint8(ops[0])
	v, err := d.frames.PeekVariable(n)
	if err != nil {
		return InstructionResult{}, err
	}
	v--
	if err := d.frames.PokeVariable(n, v); err != nil {
		return InstructionResult{}, err
	}
	return branchResult(int16(v) < int16(ops[1])), nil
}

func effectIncChk(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	n := uint8(ops[0])
	v, err := d.frames.PeekVariable(n)
	if err != nil {
		return InstructionResult{}, err
	}
	v++
	if err := d.frames.PokeVariable(n, v); err != nil {
		return InstructionResult{}, err
	}
	return branchResult(int16(v) > int16(ops[1])), nil
}

func effectJin(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	obj, err := d.objects.Object(ops[0])
	if err != nil {
		return InstructionResult{}, err
	}
	parent, err := obj.Parent()
	if err != nil {
		return InstructionResult{}, err
	}
	return branchResult(parent == ops[1]), nil
}

func effectTest(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	return branchResult(ops[0]&ops[1] == ops[1]), nil
}

func effectOr(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	return storeResult(ops[0] | ops[1]), nil
}

func effectAnd(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	return storeResult(ops[0] & ops[1]), nil
}

func effectTestAttr(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	obj, err := d.objects.Object(ops[0])
	if err != nil {
		return InstructionResult{}, err
	}
	set, err := obj.TestAttribute(uint8(ops[1]))
	if err != nil {
		return InstructionResult{}, err
	}
	return branchResult(set), nil
}

func effectSetAttr(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	obj, err := d.objects.Object(ops[0])
	if err != nil {
		return InstructionResult{}, err
	}
	return InstructionResult{}, obj.SetAttribute(uint8(ops[1]))
}

func effectClearAttr(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	obj, err := d.objects.Object(ops[0])
	if err != nil {
		return InstructionResult{}, err
	}
	return InstructionResult{}, obj.ClearAttribute(uint8(ops[1]))
}

func effectStoreVar(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	return InstructionResult{}, d.frames.WriteVariable(uint8(ops[0]), ops[1])
}

func effectInsertObj(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	return InstructionResult{}, d.objects.MoveObject(ops[0], ops[1])
}

func effectLoadw(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	v, err := d.mem.WordAt(uint32(ops[0]) + 2*uint32(ops[1]))
	if err != nil {
		return InstructionResult{}, err
	}
	return storeResult(v), nil
}

func effectLoadb(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	v, err := d.mem.ByteAt(uint32(ops[0]) + uint32(ops[1]))
	if err != nil {
		return InstructionResult{}, err
	}
	return storeResult(uint16(v)), nil
}

func effectGetProp(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	obj, err := d.objects.Object(ops[0])
	if err != nil {
		return InstructionResult{}, err
	}
	data, err := obj.Property(uint8(ops[1]))
	if err != nil {
		return InstructionResult{}, err
	}
	if len(data) == 1 {
		return storeResult(uint16(data[0])), nil
	}
	return storeResult(uint16(data[0])<<8 | uint16(data[1])), nil
}

func effectGetPropAddr(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	obj, err := d.objects.Object(ops[0])
	if err != nil {
		return InstructionResult{}, err
	}
	addr, err := obj.PropertyAddr(uint8(ops[1]))
	if err != nil {
		return InstructionResult{}, err
	}
	return storeResult(uint16(addr)), nil
}

func effectGetNextProp(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	obj, err := d.objects.Object(ops[0])
	if err != nil {
		return InstructionResult{}, err
	}
	next, err := obj.NextProperty(uint8(ops[1]))
	if err != nil {
		return InstructionResult{}, err
	}
	return storeResult(uint16(next)), nil
}

func effectAdd(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	return storeResult(uint16(int16(ops[0]) + int16(ops[1]))), nil
}

func effectSub(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	return storeResult(uint16(int16(ops[0]) - int16(ops[1]))), nil
}

func effectMul(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	return storeResult(uint16(int16(ops[0]) * int16(ops[1]))), nil
}

func effectDiv(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	if int16(ops[1]) == 0 {
		return InstructionResult{}, vmerr.New(vmerr.InvalidOperandCount, "div by zero at $%06x", inst.Address)
	}
	return storeResult(uint16(int16(ops[0]) / int16(ops[1]))), nil
}

func effectMod(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	if int16(ops[1]) == 0 {
		return InstructionResult{}, vmerr.New(vmerr.InvalidOperandCount, "mod by zero at $%06x", inst.Address)
	}
	return storeResult(uint16(int16(ops[0]) % int16(ops[1]))), nil
}

func effectJz(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	return branchResult(ops[0] == 0), nil
}

func effectGetSibling(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	obj, err := d.objects.Object(ops[0])
	if err != nil {
		return InstructionResult{}, err
	}
	sib, err := obj.Sibling()
	if err != nil {
		return InstructionResult{}, err
	}
	return InstructionResult{Store: u16ptr(sib), BranchCond: boolptr(sib != 0)}, nil
}

func effectGetChild(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	obj, err := d.objects.Object(ops[0])
	if err != nil {
		return InstructionResult{}, err
	}
	child, err := obj.Child()
	if err != nil {
		return InstructionResult{}, err
	}
	return InstructionResult{Store: u16ptr(child), BranchCond: boolptr(child != 0)}, nil
}

func effectGetParent(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	obj, err := d.objects.Object(ops[0])
	if err != nil {
		return InstructionResult{}, err
	}
	parent, err := obj.Parent()
	if err != nil {
		return InstructionResult{}, err
	}
	return storeResult(parent), nil
}

func effectGetPropLen(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	n, err := d.objects.PropertyLen(uint32(ops[0]))
	if err != nil {
		return InstructionResult{}, err
	}
	return storeResult(uint16(n)), nil
}

func effectInc(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	n := uint8(ops[0])
	v, err := d.frames.PeekVariable(n)
	if err != nil {
		return InstructionResult{}, err
	}
	return InstructionResult{}, d.frames.PokeVariable(n, v+1)
}

func effectDec(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	n := uint8(ops[0])
	v, err := d.frames.PeekVariable(n)
	if err != nil {
		return InstructionResult{}, err
	}
	return InstructionResult{}, d.frames.PokeVariable(n, v-1)
}

func effectPrintAddr(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	s, _, err := d.codec.DecodeString(d.mem.Snapshot(), uint32(ops[0]))
	if err != nil {
		return InstructionResult{}, err
	}
	d.screen.Print(s)
	return InstructionResult{}, nil
}

func effectRemoveObj(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	return InstructionResult{}, d.objects.RemoveObject(ops[0])
}

func effectPrintObj(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	obj, err := d.objects.Object(ops[0])
	if err != nil {
		return InstructionResult{}, err
	}
	name, err := obj.ShortName(d.codec)
	if err != nil {
		return InstructionResult{}, err
	}
	d.screen.Print(name)
	return InstructionResult{}, nil
}

func effectRet(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	pc, err := d.frames.Return(ops[0])
	if err != nil {
		return InstructionResult{}, err
	}
	return jumpResult(pc), nil
}

func effectJump(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	pc := uint32(int64(inst.NextPC) + int64(int16(ops[0])) - 2)
	return jumpResult(pc), nil
}

func effectPrintPaddr(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	addr := d.mem.Header().UnpackAddress(ops[0])
	s, _, err := d.codec.DecodeString(d.mem.Snapshot(), addr)
	if err != nil {
		return InstructionResult{}, err
	}
	d.screen.Print(s)
	return InstructionResult{}, nil
}

func effectLoad(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	v, err := d.frames.PeekVariable(uint8(ops[0]))
	if err != nil {
		return InstructionResult{}, err
	}
	return storeResult(v), nil
}

func effectNot(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	return storeResult(^ops[0]), nil
}

func effectRtrue(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	pc, err := d.frames.Return(1)
	if err != nil {
		return InstructionResult{}, err
	}
	return jumpResult(pc), nil
}

func effectRfalse(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	pc, err := d.frames.Return(0)
	if err != nil {
		return InstructionResult{}, err
	}
	return jumpResult(pc), nil
}

func effectPrint(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	s, _, err := d.codec.DecodeString(d.mem.Snapshot(), inst.Address+1)
	if err != nil {
		return InstructionResult{}, err
	}
	d.screen.Print(s)
	return InstructionResult{}, nil
}

func effectPrintRet(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	s, _, err := d.codec.DecodeString(d.mem.Snapshot(), inst.Address+1)
	if err != nil {
		return InstructionResult{}, err
	}
	d.screen.Print(s)
	d.screen.NewLine()
	pc, err := d.frames.Return(1)
	if err != nil {
		return InstructionResult{}, err
	}
	return jumpResult(pc), nil
}

func effectNop(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	return InstructionResult{}, nil
}

func effectSave(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	if d.saves == nil || d.persist == nil {
		return storeAndBranch(false), nil
	}
	state := zpersist.Capture(d.mem, d.frames, inst.NextPC)
	blob, err := d.persist.Save(state)
	if err != nil {
		d.logger.Debug("save failed", "err", err)
		return storeAndBranch(false), nil
	}
	if err := d.saves.WriteSave(blob); err != nil {
		d.logger.Debug("save write failed", "err", err)
		return storeAndBranch(false), nil
	}
	return storeAndBranch(true), nil
}

func effectRestore(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	if d.saves == nil || d.persist == nil {
		return storeAndBranch(false), nil
	}
	blob, err := d.saves.ReadSave()
	if err != nil {
		d.logger.Debug("restore read failed", "err", err)
		return storeAndBranch(false), nil
	}
	state, err := d.persist.Load(blob)
	if err != nil {
		d.logger.Debug("restore decode failed", "err", err)
		return storeAndBranch(false), nil
	}
	if err := zpersist.Restore(state, d.mem, d.frames); err != nil {
		d.logger.Debug("restore apply failed", "err", err)
		return storeAndBranch(false), nil
	}
	return jumpResult(state.PC), nil
}

func effectRetPopped(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	v, err := d.frames.ReadVariable(0)
	if err != nil {
		return InstructionResult{}, err
	}
	pc, err := d.frames.Return(v)
	if err != nil {
		return InstructionResult{}, err
	}
	return jumpResult(pc), nil
}

func effectPop(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	_, err := d.frames.ReadVariable(0)
	return InstructionResult{}, err
}

// effectCatch is 0OP:9 in version 5+, where it stores a frame marker a
// later throw can unwind to, instead of popping the eval stack the way
// pop does at the same opcode number in earlier versions.
func effectCatch(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	return storeResult(uint16(d.frames.Depth())), nil
}

func effectQuit(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	return InstructionResult{}, zframe.Terminated
}

func effectNewLine(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	d.screen.NewLine()
	return InstructionResult{}, nil
}

func effectVerify(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	return branchResult(d.mem.VerifyChecksum()), nil
}

func effectStorew(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	return InstructionResult{}, d.mem.SetWord(uint32(ops[0])+2*uint32(ops[1]), ops[2])
}

func effectStoreb(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	return InstructionResult{}, d.mem.SetByte(uint32(ops[0])+uint32(ops[1]), byte(ops[2]))
}

func effectPutProp(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	obj, err := d.objects.Object(ops[0])
	if err != nil {
		return InstructionResult{}, err
	}
	return InstructionResult{}, obj.PutProperty(uint8(ops[1]), ops[2])
}

func effectPrintChar(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	d.screen.Print(zsciiFallback(ops[0]))
	return InstructionResult{}, nil
}

func effectPrintNum(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	d.screen.Print(strconv.Itoa(int(int16(ops[0]))))
	return InstructionResult{}, nil
}

func effectRandom(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	r := int16(ops[0])
	switch {
	case r > 0:
		return storeResult(uint16(d.rng.Int31n(int32(r)) + 1)), nil
	case r < 0:
		d.rng.Seed(int64(-r))
		return storeResult(0), nil
	default:
		d.rng.Seed(1)
		return storeResult(0), nil
	}
}

func effectPush(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	return InstructionResult{}, d.frames.WriteVariable(0, ops[0])
}

func effectPull(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	v, err := d.frames.ReadVariable(0)
	if err != nil {
		return InstructionResult{}, err
	}
	return InstructionResult{}, d.frames.WriteVariable(uint8(ops[0]), v)
}

func effectCallStoring(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	return callEffect(d, inst, ops, inst.Store)
}

func effectCallDiscarding(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	return callEffect(d, inst, ops, nil)
}

func callEffect(d *Dispatcher, inst zdecode.Instruction, ops []uint16, store *uint8) (InstructionResult, error) {
	if len(ops) == 0 {
		return InstructionResult{}, vmerr.New(vmerr.InvalidOperandCount, "call at $%06x requires a routine operand", inst.Address)
	}
	res, err := d.frames.Call(d.mem.Snapshot(), ops[0], ops[1:], store, inst.NextPC)
	if err != nil {
		return InstructionResult{}, err
	}
	return jumpResult(res.PC), nil
}

// effectRead serves both sread (v1-4, opcode name "sread") and aread (v5+,
// "aread"). The two share a text buffer and an optional parse buffer but
// disagree on the text buffer's layout: v1-4 reserves byte 0 for the max
// length and null-terminates the typed text starting at byte 1; v5+
// reserves byte 0 for the max length and byte 1 for the count of
// characters actually read, with text starting at byte 2 and no
// terminator.
func effectRead(d *Dispatcher, inst zdecode.Instruction, ops []uint16) (InstructionResult, error) {
	line, err := d.screen.ReadLine()
	if err != nil {
		return InstructionResult{}, err
	}

	textAddr := uint32(ops[0])
	maxLen, err := d.mem.ByteAt(textAddr)
	if err != nil {
		return InstructionResult{}, err
	}
	if int(maxLen) > 0 && len(line) > int(maxLen) {
		line = line[:maxLen]
	}

	textStart := textAddr + 1
	if d.mem.Header().Version >= 5 {
		textStart = textAddr + 2
		if err := d.mem.SetByte(textAddr+1, byte(len(line))); err != nil {
			return InstructionResult{}, err
		}
	}
	for i := 0; i < len(line); i++ {
		if err := d.mem.SetByte(textStart+uint32(i), lowerASCII(line[i])); err != nil {
			return InstructionResult{}, err
		}
	}
	if d.mem.Header().Version < 5 {
		if err := d.mem.SetByte(textStart+uint32(len(line)), 0); err != nil {
			return InstructionResult{}, err
		}
	}

	if len(ops) > 1 && ops[1] != 0 {
		snap := d.mem.Snapshot()
		if err := d.dict.WriteParseBuffer(parseBufferWriter{d.mem}, snap, line, uint32(ops[1]), 30); err != nil {
			return InstructionResult{}, err
		}
	}

	if inst.Store != nil {
		return storeResult(13), nil
	}
	return InstructionResult{}, nil
}

type parseBufferWriter struct {
	mem interface {
		SetByte(addr uint32, v byte) error
		SetWord(addr uint32, v uint16) error
	}
}

func (w parseBufferWriter) SetByte(addr uint32, v byte) error { return w.mem.SetByte(addr, v) }
func (w parseBufferWriter) SetWord(addr uint32, v uint16) error { return w.mem.SetWord(addr, v) }

func lowerASCII(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

func zsciiFallback(code uint16) string {
	switch {
	case code == 13:
		return "\n"
	case code >= 32 && code <= 126:
		return string(rune(code))
	default:
		return ""
	}
}

func u16ptr(v uint16) *uint16 { return &v }
func boolptr(v bool) *bool    { return &v }
