package serviceability

import (
	"sync"

	"github.com/dz-core/serviceability/doublezeroerr"
)

// Store is the in-memory ledger: a totally-ordered, single-writer account
// map keyed by PDA. Every instruction is applied atomically under mu, so
// readers that take the same lock always see a committed,
// internally-consistent snapshot — mirroring the on-chain
// program's committed-read semantics described for the ledger.
type Store struct {
	mu sync.Mutex

	Locations    map[[32]byte]*Location
	Exchanges    map[[32]byte]*Exchange
	Devices      map[[32]byte]*Device
	Links        map[[32]byte]*Link
	Users        map[[32]byte]*User
	MGroups      map[[32]byte]*MulticastGroup
	Contributors map[[32]byte]*Contributor
	AccessPasses map[[32]byte]*AccessPass
	Tenants      map[[32]byte]*Tenant

	GlobalState  *GlobalState
	GlobalConfig *GlobalConfig
}

func NewStore() *Store {
	return &Store{
		Locations:    map[[32]byte]*Location{},
		Exchanges:    map[[32]byte]*Exchange{},
		Devices:      map[[32]byte]*Device{},
		Links:        map[[32]byte]*Link{},
		Users:        map[[32]byte]*User{},
		MGroups:      map[[32]byte]*MulticastGroup{},
		Contributors: map[[32]byte]*Contributor{},
		AccessPasses: map[[32]byte]*AccessPass{},
		Tenants:      map[[32]byte]*Tenant{},
	}
}

// Lock/Unlock expose the store's single writer lock so that a processor
// can apply an entire instruction (read the prior state, validate,
// mutate, and touch reference counts) as one atomic unit, matching the
// ledger's per-instruction atomicity.
func (s *Store) Lock()   { s.mu.Lock() }
func (s *Store) Unlock() { s.mu.Unlock() }

// IncRef/DecRef adjust a referenced entity's ReferenceCount. DecRef
// reports ReferenceCountNotZero if the caller attempts to drop the count
// below zero, which should never happen if callers only decrement counts
// they previously incremented.
func IncRef(c *Common) { c.ReferenceCount++ }

func DecRef(c *Common) error {
	if c.ReferenceCount == 0 {
		return doublezeroerr.Sentinel(doublezeroerr.ReferenceCountNotZero)
	}
	c.ReferenceCount--
	return nil
}

// RequireZeroRefs is consulted by the Location, Exchange, Contributor and
// Device delete processors before removing or retiring an account: any
// outstanding reference holder blocks deletion.
func RequireZeroRefs(c *Common) error {
	if c.ReferenceCount != 0 {
		return doublezeroerr.New(doublezeroerr.ReferenceCountNotZero, "reference_count=%d", c.ReferenceCount)
	}
	return nil
}
