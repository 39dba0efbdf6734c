package intent

import (
	"errors"
	"fmt"
	"sync"
)

// ErrDuplicateRequestID is returned when a fire-and-forget flow is started with
// an id that is still in flight.
var ErrDuplicateRequestID = errors.New("intent: duplicate request id")

// ErrEmptyRequestID is returned when a fire-and-forget flow has no id.
var ErrEmptyRequestID = errors.New("intent: empty request id")

// InFlight tracks caller-supplied ids of fire-and-forget flows until they complete.
type InFlight struct {
	wg  sync.WaitGroup
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewInFlight creates an empty tracker.
func NewInFlight() *InFlight {
	return &InFlight{ids: make(map[string]struct{})}
}

// Begin claims id for a new flow.
func (f *InFlight) Begin(id string) error {
	if id == "" {
		return ErrEmptyRequestID
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ids[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRequestID, id)
	}
	f.ids[id] = struct{}{}
	f.wg.Add(1)
	return nil
}

// End releases id. Ending an unknown id is a no-op.
func (f *InFlight) End(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ids[id]; !ok {
		return
	}
	delete(f.ids, id)
	f.wg.Done()
}

// Len returns the number of flows in flight.
func (f *InFlight) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ids)
}

// Wait blocks until every flow begun so far has ended.
func (f *InFlight) Wait() {
	f.wg.Wait()
}
