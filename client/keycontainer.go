// Package client implements the client side of the wire protocol: key
// registration, query submission and result polling, plus a background
// Result Subscriber (spec §4.10, §4.11).
package client

import (
	"sync"

	"github.com/chorus-fhe/ppcnn/fhe"
)

// KeyContainer holds the client's own key material and records, by
// connection id, which connections its keys have been marked registered on,
// mirroring ppcnn_client_keycontainer.* (SPEC_FULL.md "SUPPLEMENTED
// FEATURES"). Client.RegisterKeys does not consult this record: it sends the
// keys on every call.
type KeyContainer struct {
	mu sync.RWMutex

	keyID  int64
	params fhe.Parameters
	secret fhe.SecretKey
	pubkey fhe.PublicKey
	relin  fhe.RelinearizationKey

	registered map[int64]bool
}

// NewKeyContainer mints a fresh key triple under params using gen.
func NewKeyContainer(gen fhe.KeyGenerator, params fhe.Parameters) (*KeyContainer, error) {
	sk, pk, err := gen.GenKeyPair()
	if err != nil {
		return nil, err
	}
	rlk, err := gen.GenRelinearizationKey(sk)
	if err != nil {
		return nil, err
	}
	return &KeyContainer{
		keyID:      pk.KeyID(),
		params:     params,
		secret:     sk,
		pubkey:     pk,
		relin:      rlk,
		registered: make(map[int64]bool),
	}, nil
}

// KeyID returns the container's key-id.
func (k *KeyContainer) KeyID() int64 { return k.keyID }

// Params returns the container's encryption parameters.
func (k *KeyContainer) Params() fhe.Parameters { return k.params }

// SecretKey returns the container's secret key, for local Decrypt calls.
func (k *KeyContainer) SecretKey() fhe.SecretKey { return k.secret }

// PublicKey returns the container's public key.
func (k *KeyContainer) PublicKey() fhe.PublicKey { return k.pubkey }

// RelinearizationKey returns the container's relinearization key.
func (k *KeyContainer) RelinearizationKey() fhe.RelinearizationKey { return k.relin }

// IsRegistered reports whether keyID has already been registered on the
// connection identified by connID.
func (k *KeyContainer) IsRegistered(connID int64) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.registered[connID]
}

// MarkRegistered records that the container's keys have been registered on
// the connection identified by connID.
func (k *KeyContainer) MarkRegistered(connID int64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.registered[connID] = true
}
