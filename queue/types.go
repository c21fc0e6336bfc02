package queue

import "github.com/chorus-fhe/ppcnn/fhe"

// Query is one submitted inference request: the registered key-id to
// evaluate under, the dataset/model name selecting which topology and
// weight store to compile, and the input ciphertexts (spec §4.8).
type Query struct {
	KeyID   int64
	Dataset string
	Model   string
	Input   []fhe.Ciphertext
	InH, InW, InC int
}

// Result is one completed (or failed) inference, keyed by the query-id
// that produced it (spec §4.8, §4.9).
type Result struct {
	Success bool
	Outputs []fhe.Ciphertext
}

// Queries is the Query Queue's concrete instantiation.
type Queries = MapQueue[Query]

// Results is the Result Queue's concrete instantiation.
type Results = MapQueue[Result]
