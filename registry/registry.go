// Package registry implements the Key Registry (spec §4.6): a thread-safe
// key-id to KeyBundle map. Register is idempotent on the key-id; the
// registry never deletes entries, matching the server's current design.
package registry

import (
	"fmt"
	"sync"

	"github.com/chorus-fhe/ppcnn/fhe"
	"github.com/chorus-fhe/ppcnn/ppcnnerr"
)

// KeyBundle is the immutable key material registered under one key-id:
// the client's encryption parameters, public key and relinearization key.
// Once registered it is shared across workers by reference (spec §5).
type KeyBundle struct {
	Params fhe.Parameters
	Pubkey fhe.PublicKey
	Relin  fhe.RelinearizationKey
}

// Registry is the thread-safe key-id -> KeyBundle map.
type Registry struct {
	mu   sync.RWMutex
	keys map[int64]KeyBundle
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{keys: make(map[int64]KeyBundle)}
}

// Register stores bundle under keyID. Calling Register again with the same
// keyID simply overwrites the bundle (idempotent: the registry never
// rejects a re-registration, per spec §4.6).
func (r *Registry) Register(keyID int64, bundle KeyBundle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[keyID] = bundle
}

// Get returns the KeyBundle registered under keyID, or ppcnnerr.ErrUnknownKey
// if none was ever registered.
func (r *Registry) Get(keyID int64) (KeyBundle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bundle, ok := r.keys[keyID]
	if !ok {
		return KeyBundle{}, fmt.Errorf("key-id %d: %w", keyID, ppcnnerr.ErrUnknownKey)
	}
	return bundle, nil
}

// Len returns the number of registered keys, for metrics and tests.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}
