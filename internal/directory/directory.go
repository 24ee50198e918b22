// Package directory provides the peer-handle directory: the collaborator
// that maps opaque peer handles to link-layer addresses. Resolution is
// principal-scoped — the same handle may resolve differently per caller.
package directory

import (
	"sync"

	"github.com/me/rangerd/pkg/model"
)

// Directory answers batch handle-to-address lookups asynchronously. The
// reply callback receives a mapping containing only the handles the
// directory knows about; absent handles simply do not appear. The callback
// may run on any goroutine and must be invoked exactly once per lookup.
type Directory interface {
	LookupAddresses(principal model.Principal, handles []model.PeerHandle, reply func(map[model.PeerHandle]string))
}

// StaticDirectory is an in-memory Directory backed by a per-principal table.
// The daemon exposes it through the admin API; tests seed it directly.
type StaticDirectory struct {
	mu    sync.Mutex
	table map[model.Principal]map[model.PeerHandle]string
}

// NewStaticDirectory creates an empty directory.
func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{table: make(map[model.Principal]map[model.PeerHandle]string)}
}

// Set records a handle-to-address mapping for the given principal.
func (d *StaticDirectory) Set(p model.Principal, h model.PeerHandle, addr string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	byHandle, ok := d.table[p]
	if !ok {
		byHandle = make(map[model.PeerHandle]string)
		d.table[p] = byHandle
	}
	byHandle[h] = model.NormalizeAddr(addr)
}

// Delete removes a mapping, if present.
func (d *StaticDirectory) Delete(p model.Principal, h model.PeerHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if byHandle, ok := d.table[p]; ok {
		delete(byHandle, h)
	}
}

// LookupAddresses replies on a fresh goroutine with whatever subset of the
// requested handles is known for the principal.
func (d *StaticDirectory) LookupAddresses(p model.Principal, handles []model.PeerHandle, reply func(map[model.PeerHandle]string)) {
	d.mu.Lock()
	found := make(map[model.PeerHandle]string, len(handles))
	if byHandle, ok := d.table[p]; ok {
		for _, h := range handles {
			if addr, ok := byHandle[h]; ok {
				found[h] = addr
			}
		}
	}
	d.mu.Unlock()

	go reply(found)
}
