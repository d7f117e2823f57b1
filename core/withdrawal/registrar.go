package withdrawal

import (
	"fmt"
	"sort"
	"sync"
)

// Registrar tracks the pending redemptions. A redemption lives from the
// moment the external unstake is initiated until its completion is recorded,
// at which point it is removed for good.
type Registrar struct {
	redemptions map[string]*Redemption
	mu          sync.RWMutex
}

func NewRegistrar() *Registrar {
	return &Registrar{redemptions: make(map[string]*Redemption)}
}

// Has reports whether a pending redemption exists under the identifier.
func (g *Registrar) Has(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.redemptions[id]
	return ok
}

// Get returns a copy of the redemption, or ErrNotFound.
func (g *Registrar) Get(id string) (*Redemption, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rd, ok := g.redemptions[id]
	if !ok {
		return nil, fmt.Errorf("%w: redemption %s", ErrNotFound, id)
	}
	return rd.Copy(), nil
}

// Put stores a copy of the redemption.
func (g *Registrar) Put(rd *Redemption) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.redemptions[rd.ID] = rd.Copy()
}

// Delete removes the redemption. Unknown identifiers are a no-op.
func (g *Registrar) Delete(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.redemptions, id)
}

// All returns copies of every pending redemption sorted by identifier.
func (g *Registrar) All() []*Redemption {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*Redemption, 0, len(g.redemptions))
	for _, rd := range g.redemptions {
		out = append(out, rd.Copy())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of pending redemptions.
func (g *Registrar) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.redemptions)
}
