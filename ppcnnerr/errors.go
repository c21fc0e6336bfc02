// Package ppcnnerr defines the closed error taxonomy shared by every layer
// of the inference service, from FHE operand arithmetic up to the wire
// protocol. Callers should compare with errors.Is against the sentinels
// below; constructors wrap them with fmt.Errorf("...: %w", ...) to attach
// request-specific context.
package ppcnnerr

import "errors"

var (
	// ErrProtocol marks a malformed frame, an unknown control code, or an
	// invalid connection-state transition.
	ErrProtocol = errors.New("protocol error")

	// ErrUnknownKey marks a query or registration referencing a key-id the
	// Key Registry has never seen.
	ErrUnknownKey = errors.New("unknown key-id")

	// ErrUnknownLayer marks a topology descriptor naming a layer class the
	// compiler does not implement.
	ErrUnknownLayer = errors.New("unknown layer class")

	// ErrShapeMismatch marks a declared height*width*channels that does not
	// match the number of ciphertexts supplied with a query.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrLevelExhausted marks a compiled or executing operator that needs a
	// multiplicative level the ciphertext no longer has.
	ErrLevelExhausted = errors.New("level exhausted")

	// ErrSchemeMismatch marks operands whose encryption parameters disagree
	// with the registered KeyBundle they are being evaluated against.
	ErrSchemeMismatch = errors.New("scheme mismatch")

	// ErrScaleMismatch marks an arithmetic operation between operands whose
	// scales do not agree (spec §4.1).
	ErrScaleMismatch = errors.New("scale mismatch")

	// ErrIO marks a missing or unreadable topology descriptor or weights
	// store.
	ErrIO = errors.New("io error")

	// ErrCapacityRejected marks a push rejected because a bounded queue is
	// at capacity.
	ErrCapacityRejected = errors.New("capacity rejected")
)
