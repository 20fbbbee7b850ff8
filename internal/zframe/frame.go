// Package zframe implements the call-frame stack: routine call/return,
// local-variable storage, a per-frame evaluation stack, and the three-way
// variable number resolution (stack / locals / globals) the rest of the
// interpreter addresses uniformly.
package zframe

import (
	"github.com/zirujauak/infocom/internal/memory"
	"github.com/zirujauak/infocom/internal/vmerr"
)

// MaxEvalStack bounds a single frame's evaluation stack, guarding against a
// runaway routine rather than modeling a real format limit.
const MaxEvalStack = 1024

// Frame is one routine activation.
type Frame struct {
	// Store is the variable number the caller wants the return value
	// written to, or nil if the call discarded the result (a "_n" opcode).
	Store *uint8
	// ReturnPC is the address execution resumes at after this frame returns.
	ReturnPC uint32
	locals   []uint16
	eval     []uint16
}

// NumLocals is the number of local-variable slots this frame declared.
func (f *Frame) NumLocals() int {
	return len(f.locals)
}

// Stack is the call-frame stack. There is always at least one frame: the
// synthetic "main" frame installed by New, whose return terminates execution.
type Stack struct {
	mem    *memory.Map
	frames []*Frame
}

// New builds a frame stack over mem with a synthetic main frame at pc. The
// main frame has no locals, no store variable, and a return that signals
// program termination rather than addressing real memory.
func New(mem *memory.Map, pc uint32) *Stack {
	return &Stack{
		mem: mem,
		frames: []*Frame{{
			ReturnPC: pc,
		}},
	}
}

// Depth is the number of active frames, including the main frame.
func (s *Stack) Depth() int {
	return len(s.frames)
}

// Current is the top-of-stack frame.
func (s *Stack) Current() *Frame {
	return s.frames[len(s.frames)-1]
}

// CallResult carries the outcome of Call: either a pc to resume decoding at
// (frame pushed, or the packed-address-0 no-op case) or, equivalently, the
// zero value with an error.
type CallResult struct {
	PC uint32
}

// Call resolves packedAddr, pushes a new frame for it, and returns the pc of
// the routine's first real instruction. Per the format, a packed address of
// 0 is a no-op: it stores 0 into store (if present) and resumes at
// returnPC without pushing a frame.
func (s *Stack) Call(src ByteSource, packedAddr uint16, args []uint16, store *uint8, returnPC uint32) (CallResult, error) {
	if packedAddr == 0 {
		if store != nil {
			if err := s.WriteVariable(*store, 0); err != nil {
				return CallResult{}, err
			}
		}
		return CallResult{PC: returnPC}, nil
	}

	addr := s.mem.Header().UnpackAddress(packedAddr)
	nLocalsByte, err := src.ByteAt(addr)
	if err != nil {
		return CallResult{}, vmerr.Wrap(vmerr.OutOfBounds, err, "reading routine header at $%06x", addr)
	}
	n := int(nLocalsByte)
	cur := addr + 1

	locals := make([]uint16, n)
	if s.mem.Header().Version <= 4 {
		for i := 0; i < n; i++ {
			w, err := src.WordAt(cur)
			if err != nil {
				return CallResult{}, vmerr.Wrap(vmerr.OutOfBounds, err, "reading default local %d at $%06x", i, cur)
			}
			locals[i] = w
			cur += 2
		}
	}
	for i := 0; i < len(args) && i < n; i++ {
		locals[i] = args[i]
	}

	f := &Frame{
		Store:    store,
		ReturnPC: returnPC,
		locals:   locals,
		eval:     make([]uint16, 0, 8),
	}
	s.frames = append(s.frames, f)
	return CallResult{PC: cur}, nil
}

// ByteSource is the read surface Call needs to parse a routine header. It is
// satisfied by memory.Snapshot.
type ByteSource interface {
	ByteAt(addr uint32) (byte, error)
	WordAt(addr uint32) (uint16, error)
}

// Terminated is returned by Return when the frame being returned from is
// the sole main frame: execution has no caller left to resume.
var Terminated = vmerr.New(vmerr.EmptyStack, "return from main frame: execution terminated")

// Return pops the current frame and writes value into the caller's store
// variable, if any. It returns the address execution resumes at. Returning
// from the main frame reports Terminated rather than underflowing.
func (s *Stack) Return(value uint16) (uint32, error) {
	if len(s.frames) == 1 {
		return 0, Terminated
	}
	f := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	if f.Store != nil {
		if err := s.WriteVariable(*f.Store, value); err != nil {
			return 0, err
		}
	}
	return f.ReturnPC, nil
}

// ReadVariable resolves variable number n against the current frame (0..15)
// or the global table (16..255).
func (s *Stack) ReadVariable(n uint8) (uint16, error) {
	if n == 0 {
		return s.pop()
	}
	if n <= 15 {
		return s.readLocal(n)
	}
	addr, err := s.mem.GlobalAddr(n)
	if err != nil {
		return 0, err
	}
	return s.mem.WordAt(addr)
}

// WriteVariable is the symmetric write: n=0 pushes, 1..15 writes a local,
// 16..255 writes a global.
func (s *Stack) WriteVariable(n uint8, v uint16) error {
	if n == 0 {
		return s.push(v)
	}
	if n <= 15 {
		return s.writeLocal(n, v)
	}
	addr, err := s.mem.GlobalAddr(n)
	if err != nil {
		return err
	}
	return s.mem.SetWord(addr, v)
}

// PeekVariable reads like ReadVariable but does not pop the eval stack for n=0.
func (s *Stack) PeekVariable(n uint8) (uint16, error) {
	if n == 0 {
		return s.peek()
	}
	return s.ReadVariable(n)
}

// PokeVariable writes like WriteVariable but replaces the top of the eval
// stack for n=0 instead of pushing a new entry.
func (s *Stack) PokeVariable(n uint8, v uint16) error {
	if n == 0 {
		return s.poke(v)
	}
	return s.WriteVariable(n, v)
}

func (s *Stack) readLocal(n uint8) (uint16, error) {
	f := s.Current()
	idx := int(n) - 1
	if idx >= len(f.locals) {
		return 0, vmerr.New(vmerr.NoSuchLocal, "local %d exceeds routine's %d locals", n, len(f.locals))
	}
	return f.locals[idx], nil
}

func (s *Stack) writeLocal(n uint8, v uint16) error {
	f := s.Current()
	idx := int(n) - 1
	if idx >= len(f.locals) {
		return vmerr.New(vmerr.NoSuchLocal, "local %d exceeds routine's %d locals", n, len(f.locals))
	}
	f.locals[idx] = v
	return nil
}

func (s *Stack) push(v uint16) error {
	f := s.Current()
	if len(f.eval) >= MaxEvalStack {
		return vmerr.New(vmerr.StackOverflow, "evaluation stack exceeds %d entries", MaxEvalStack)
	}
	f.eval = append(f.eval, v)
	return nil
}

func (s *Stack) pop() (uint16, error) {
	f := s.Current()
	if len(f.eval) == 0 {
		return 0, vmerr.New(vmerr.EmptyStack, "pop from empty evaluation stack")
	}
	v := f.eval[len(f.eval)-1]
	f.eval = f.eval[:len(f.eval)-1]
	return v, nil
}

func (s *Stack) peek() (uint16, error) {
	f := s.Current()
	if len(f.eval) == 0 {
		return 0, vmerr.New(vmerr.EmptyStack, "peek at empty evaluation stack")
	}
	return f.eval[len(f.eval)-1], nil
}

func (s *Stack) poke(v uint16) error {
	f := s.Current()
	if len(f.eval) == 0 {
		return vmerr.New(vmerr.EmptyStack, "poke at empty evaluation stack")
	}
	f.eval[len(f.eval)-1] = v
	return nil
}

// EvalDepth returns the current frame's evaluation stack depth, used by
// tests to assert the "stack depth returns to its prior value" property.
func (s *Stack) EvalDepth() int {
	return len(s.Current().eval)
}

// Snapshot captures enough of the stack's state for persistence: every
// frame's return-pc, store variable, locals, and eval stack.
type Snapshot struct {
	Frames []FrameSnapshot
}

// FrameSnapshot is the serializable shape of one Frame.
type FrameSnapshot struct {
	ReturnPC uint32
	Store    *uint8
	Locals   []uint16
	Eval     []uint16
}

// Capture snapshots the entire frame stack.
func (s *Stack) Capture() Snapshot {
	out := Snapshot{Frames: make([]FrameSnapshot, len(s.frames))}
	for i, f := range s.frames {
		out.Frames[i] = FrameSnapshot{
			ReturnPC: f.ReturnPC,
			Store:    f.Store,
			Locals:   append([]uint16(nil), f.locals...),
			Eval:     append([]uint16(nil), f.eval...),
		}
	}
	return out
}

// Restore replaces the stack's frames with a previously captured snapshot.
func (s *Stack) Restore(snap Snapshot) {
	frames := make([]*Frame, len(snap.Frames))
	for i, fs := range snap.Frames {
		frames[i] = &Frame{
			ReturnPC: fs.ReturnPC,
			Store:    fs.Store,
			locals:   append([]uint16(nil), fs.Locals...),
			eval:     append([]uint16(nil), fs.Eval...),
		}
	}
	s.frames = frames
}
