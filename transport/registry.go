package transport

import (
	"sync"
	"time"

	"github.com/brodyxchen/framerpc/constant"
	"github.com/brodyxchen/framerpc/errors"
)

// Handler serves one inbound REQ or STREAM message. It writes at most
// len(out) bytes of response data and returns the count. timeout is
// advisory; handlers must not block past it. A non-nil error causes an
// ERR message to be sent for REQ calls.
type Handler func(args []byte, out []byte, timeout time.Duration) (int, error)

type regEntry struct {
	name string
	fn   Handler
}

// registry is a bounded append-only table. Duplicate names are not
// rejected; the first match wins on lookup.
type registry struct {
	mu      sync.Mutex
	entries []regEntry
}

func (r *registry) register(name string, fn Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.entries) >= constant.RegistryCapacity {
		return errors.ErrRegistryFull
	}
	r.entries = append(r.entries, regEntry{name: name, fn: fn})
	return nil
}

func (r *registry) find(name string) Handler {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.entries {
		if r.entries[i].name == name {
			return r.entries[i].fn
		}
	}
	return nil
}
