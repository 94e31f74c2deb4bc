package pool

import (
	"github.com/simplexbft/simplex-go/model/simplex"
)

// slotWindow is the sliding map from slot number to per-slot state,
// bounded below by the first non-finalized slot. Slot states are
// created lazily on first reference at or above the bound and destroyed
// when finalization advances the bound past them. The bound only ever
// moves forward.
type slotWindow struct {
	states            map[simplex.Slot]*slotState
	firstNonFinalized simplex.Slot
}

func newSlotWindow() *slotWindow {
	return &slotWindow{
		states: make(map[simplex.Slot]*slotState),
	}
}

// get returns the state for the given slot, creating it if absent.
// Error returns:
//   - simplex.SlotAlreadyFinalizedError if the slot lies below the
//     window's lower bound and its state has been pruned
func (w *slotWindow) get(slot simplex.Slot) (*slotState, error) {
	if slot < w.firstNonFinalized {
		return nil, simplex.SlotAlreadyFinalizedError{Slot: slot, FirstNonFinalized: w.firstNonFinalized}
	}
	st, ok := w.states[slot]
	if !ok {
		st = newSlotState(slot)
		w.states[slot] = st
	}
	return st, nil
}

// lookup returns the state for the given slot without creating it.
func (w *slotWindow) lookup(slot simplex.Slot) (*slotState, bool) {
	st, ok := w.states[slot]
	return st, ok
}

// pruneUpTo advances the lower bound to the given slot and drops all
// state below it. A bound at or below the current one is a no-op.
func (w *slotWindow) pruneUpTo(bound simplex.Slot) {
	if bound <= w.firstNonFinalized {
		return
	}
	for slot := range w.states {
		if slot < bound {
			delete(w.states, slot)
		}
	}
	w.firstNonFinalized = bound
}
