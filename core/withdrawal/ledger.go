package withdrawal

import (
	"fmt"
	"sort"
	"sync"
)

// RequestLedger holds the live withdrawal requests and a per-user index of
// request identifiers in insertion order. All getters return deep copies so
// callers can never mutate ledger state behind the lock.
type RequestLedger struct {
	requests  map[string]*Request
	userIndex map[string][]string
	mu        sync.RWMutex
}

func NewRequestLedger() *RequestLedger {
	return &RequestLedger{
		requests:  make(map[string]*Request),
		userIndex: make(map[string][]string),
	}
}

// Has reports whether a live request exists under the identifier.
func (l *RequestLedger) Has(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.requests[id]
	return ok
}

// Get returns a copy of the request, or ErrNotFound.
func (l *RequestLedger) Get(id string) (*Request, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	req, ok := l.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: withdrawal request %s", ErrNotFound, id)
	}
	return req.Copy(), nil
}

// GetBatch returns copies of all named requests in order. The first missing
// identifier fails the whole lookup.
func (l *RequestLedger) GetBatch(ids []string) ([]*Request, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*Request, 0, len(ids))
	for _, id := range ids {
		req, ok := l.requests[id]
		if !ok {
			return nil, fmt.Errorf("%w: withdrawal request %s", ErrNotFound, id)
		}
		out = append(out, req.Copy())
	}
	return out, nil
}

// UserRequests returns copies of the user's live requests in the order they
// were created. Unknown users get an empty slice.
func (l *RequestLedger) UserRequests(user string) []*Request {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := l.userIndex[user]
	out := make([]*Request, 0, len(ids))
	for _, id := range ids {
		if req, ok := l.requests[id]; ok {
			out = append(out, req.Copy())
		}
	}
	return out
}

// Put stores a copy of the request, appending it to the owner's index when
// the identifier is new. Overwrites of an existing identifier keep the index
// position.
func (l *RequestLedger) Put(req *Request) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.requests[req.ID]; !ok {
		l.userIndex[req.User] = append(l.userIndex[req.User], req.ID)
	}
	l.requests[req.ID] = req.Copy()
}

// Delete removes the request and compacts the owner's index. Deleting an
// unknown identifier is a no-op.
func (l *RequestLedger) Delete(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	req, ok := l.requests[id]
	if !ok {
		return
	}
	delete(l.requests, id)

	ids := l.userIndex[req.User]
	for i, rid := range ids {
		if rid == id {
			l.userIndex[req.User] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(l.userIndex[req.User]) == 0 {
		delete(l.userIndex, req.User)
	}
}

// RestoreIndex replaces a user's index wholesale. Load path only.
func (l *RequestLedger) RestoreIndex(user string, ids []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(ids) == 0 {
		delete(l.userIndex, user)
		return
	}
	l.userIndex[user] = append([]string(nil), ids...)
}

// UserIndex returns a copy of the user's index, nil when the user has no
// live requests.
func (l *RequestLedger) UserIndex(user string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids, ok := l.userIndex[user]
	if !ok {
		return nil
	}
	return append([]string(nil), ids...)
}

// All returns copies of every live request sorted by identifier.
func (l *RequestLedger) All() []*Request {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*Request, 0, len(l.requests))
	for _, req := range l.requests {
		out = append(out, req.Copy())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of live requests.
func (l *RequestLedger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.requests)
}
