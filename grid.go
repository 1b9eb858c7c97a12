package grid

import "github.com/gogpu/grid/internal/bitset"

// MaxGrids is the number of grids that can be live at once. One ID out of
// the 8-bit space is reserved as a sentinel and never allocated.
const MaxGrids = 254

// invalidID is the reserved sentinel ID. It never names a live grid.
const invalidID = 255

// State is the lifecycle state of a grid.
//
// A grid starts Ready, becomes Waiting (or Forced) once started, moves to
// Executing when its last predecessor completes, to Complete when the
// client reports its device work finished, and is detached (its ID
// recycled) immediately after its dispose callback runs.
type State uint8

// Grid lifecycle states, in transition order.
const (
	StateReady State = iota
	StateWaiting
	StateForced
	StateExecuting
	StateComplete
	StateDetached
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateReady:
		return "Ready"
	case StateWaiting:
		return "Waiting"
	case StateForced:
		return "Forced"
	case StateExecuting:
		return "Executing"
	case StateComplete:
		return "Complete"
	case StateDetached:
		return "Detached"
	default:
		return "Unknown"
	}
}

// GridFunc is a grid lifecycle callback. The registry passes the grid's
// handle and the opaque payload that was attached with it.
type GridFunc func(h Handle, payload any)

// GridDesc describes a grid to Attach. All fields are optional.
type GridDesc struct {
	// Label is a debug name, forwarded to the scheduler when the execute
	// callback is dispatched.
	Label string

	// Payload is an opaque client value carried by the grid and passed
	// to every callback. The registry never interprets it.
	Payload any

	// OnWaiting runs once, when the grid leaves Ready (Start or Force).
	OnWaiting GridFunc

	// OnExecute runs once, when every declared predecessor has completed.
	// It is dispatched through the registry's scheduler, never invoked
	// inline from a dependency-graph mutation. It is expected to submit
	// device work and eventually cause Complete to be called.
	OnExecute GridFunc

	// OnDispose runs once, after Complete propagation and before the
	// grid's ID is recycled.
	OnDispose GridFunc
}

// Handle names a grid without holding a reference into registry memory.
// It pairs the grid's slot index with a generation counter; once the grid
// detaches and its slot is reused, old handles stop matching and every
// registry operation on them becomes a no-op. The zero Handle is invalid.
type Handle struct {
	id  uint8
	gen uint32
}

// gridSlot is one registry slot. Slots are embedded in the registry's
// fixed array and reused; gen distinguishes incarnations.
type gridSlot struct {
	state State
	gen   uint32

	label   string
	payload any
	waiting GridFunc
	execute GridFunc
	dispose GridFunc

	// before holds the IDs of live grids this one still waits for;
	// nbefore mirrors its popcount. after holds the IDs of grids that
	// declared a dependency on this one while it was still live.
	before  bitset.Set256
	after   bitset.Set256
	nbefore int
	nafter  int
}
