// Package zpersist implements the persistence facade: a narrow interface
// decoupling the interpreter from any specific backing store, plus a
// CBOR-backed implementation of it. The interpreter only ever depends on
// the Facade interface; swapping in a different wire format or an external
// cache requires no change outside this package.
package zpersist

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/zirujauak/infocom/internal/memory"
	"github.com/zirujauak/infocom/internal/vmerr"
	"github.com/zirujauak/infocom/internal/zframe"
)

// State is the full serializable shape of a paused interpreter: everything
// needed to resume except the static and high memory regions, which are
// reloaded from the original story image and re-verified by checksum.
type State struct {
	Version       uint8
	Checksum      uint16
	DynamicMemory []byte
	Frames        []zframe.FrameSnapshot
	PC            uint32
}

// Facade is the narrow persistence boundary. Implementations decide the
// wire format and the backing store; the interpreter only calls these two
// methods, at a quiescent point between instructions.
type Facade interface {
	Save(state State) ([]byte, error)
	Load(blob []byte) (State, error)
}

// wireState is State's CBOR wire shape. It exists separately from State so
// a future wire-format change doesn't ripple into the interpreter's
// in-memory representation.
type wireState struct {
	Version       uint8                    `cbor:"1,keyasint"`
	Checksum      uint16                   `cbor:"2,keyasint"`
	DynamicMemory []byte                   `cbor:"3,keyasint"`
	Frames        []zframe.FrameSnapshot   `cbor:"4,keyasint"`
	PC            uint32                   `cbor:"5,keyasint"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("zpersist: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// CBORFacade is the repository's only shipped Facade implementation.
type CBORFacade struct{}

// Save encodes state as canonical CBOR.
func (CBORFacade) Save(state State) ([]byte, error) {
	w := wireState{
		Version:       state.Version,
		Checksum:      state.Checksum,
		DynamicMemory: state.DynamicMemory,
		Frames:        state.Frames,
		PC:            state.PC,
	}
	b, err := cborEncMode.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("zpersist: marshal state: %w", err)
	}
	return b, nil
}

// Load decodes a blob previously produced by Save.
func (CBORFacade) Load(blob []byte) (State, error) {
	var w wireState
	if err := cbor.Unmarshal(blob, &w); err != nil {
		return State{}, vmerr.Wrap(vmerr.IncompatibleSave, err, "unmarshal save blob")
	}
	return State{
		Version:       w.Version,
		Checksum:      w.Checksum,
		DynamicMemory: w.DynamicMemory,
		Frames:        w.Frames,
		PC:            w.PC,
	}, nil
}

// Capture builds a State from the live memory map, frame stack, and current
// pc, ready to hand to a Facade's Save.
func Capture(mem *memory.Map, frames *zframe.Stack, pc uint32) State {
	return State{
		Version:       mem.Header().Version,
		Checksum:      mem.Checksum(),
		DynamicMemory: mem.DynamicBytes(),
		Frames:        frames.Capture().Frames,
		PC:            pc,
	}
}

// Restore applies a previously loaded State back onto mem and frames, after
// verifying the state's checksum matches the currently loaded story. A
// mismatch means the save was taken against a different story image.
func Restore(state State, mem *memory.Map, frames *zframe.Stack) error {
	if state.Checksum != mem.Checksum() {
		return vmerr.New(vmerr.IncompatibleSave, "save checksum $%04x does not match loaded story's $%04x", state.Checksum, mem.Checksum())
	}
	if state.Version != mem.Header().Version {
		return vmerr.New(vmerr.IncompatibleSave, "save version %d does not match loaded story's version %d", state.Version, mem.Header().Version)
	}
	if err := mem.RestoreDynamicBytes(state.DynamicMemory); err != nil {
		return err
	}
	frames.Restore(zframe.Snapshot{Frames: state.Frames})
	return nil
}
