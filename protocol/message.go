package protocol

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/chorus-fhe/ppcnn/fhe"
	"github.com/chorus-fhe/ppcnn/queue"
	"github.com/chorus-fhe/ppcnn/registry"
)

// Every payload below is gob-encoded as a single envelope value: spec §4.10
// describes the payload as "a small serialized struct, followed by the
// binary-serialized ciphertexts/keys" — here the ciphertext/key bytes (each
// already produced by fhe.Marshal*) are carried as []byte fields inside the
// same envelope rather than as a second concatenated blob, since gob already
// gives the struct a self-describing length-prefixed encoding.

// EncKeysEnvelope is the CodeDataEncKeys payload: a client registering its
// encryption parameters, public key and relinearization key under a key-id
// it chooses.
type EncKeysEnvelope struct {
	KeyID  int64
	Params fhe.Parameters
	Pubkey []byte
	Relin  []byte
}

// EncodeEncKeys builds an EncKeysEnvelope's wire bytes.
func EncodeEncKeys(keyID int64, bundle registry.KeyBundle) ([]byte, error) {
	pk, err := fhe.MarshalPublicKey(bundle.Pubkey)
	if err != nil {
		return nil, err
	}
	rlk, err := fhe.MarshalRelinearizationKey(bundle.Relin)
	if err != nil {
		return nil, err
	}
	return encodeGob(EncKeysEnvelope{KeyID: keyID, Params: bundle.Params, Pubkey: pk, Relin: rlk})
}

// DecodeEncKeys parses an EncKeysEnvelope's wire bytes back into a KeyBundle.
func DecodeEncKeys(data []byte) (int64, registry.KeyBundle, error) {
	var env EncKeysEnvelope
	if err := decodeGob(data, &env); err != nil {
		return 0, registry.KeyBundle{}, err
	}
	pk, err := fhe.UnmarshalPublicKey(env.Pubkey)
	if err != nil {
		return 0, registry.KeyBundle{}, err
	}
	rlk, err := fhe.UnmarshalRelinearizationKey(env.Relin)
	if err != nil {
		return 0, registry.KeyBundle{}, err
	}
	return env.KeyID, registry.KeyBundle{Params: env.Params, Pubkey: pk, Relin: rlk}, nil
}

// QueryEnvelope is the CodeUpDownloadQuery request payload.
type QueryEnvelope struct {
	KeyID          int64
	Dataset, Model string
	InH, InW, InC  int
	Input          [][]byte
}

// EncodeQuery builds a QueryEnvelope's wire bytes from a queue.Query.
func EncodeQuery(q queue.Query) ([]byte, error) {
	input := make([][]byte, len(q.Input))
	for i, ct := range q.Input {
		b, err := fhe.MarshalCiphertext(ct)
		if err != nil {
			return nil, err
		}
		input[i] = b
	}
	return encodeGob(QueryEnvelope{
		KeyID: q.KeyID, Dataset: q.Dataset, Model: q.Model,
		InH: q.InH, InW: q.InW, InC: q.InC, Input: input,
	})
}

// DecodeQuery parses a QueryEnvelope's wire bytes into a queue.Query.
func DecodeQuery(data []byte) (queue.Query, error) {
	var env QueryEnvelope
	if err := decodeGob(data, &env); err != nil {
		return queue.Query{}, err
	}
	input := make([]fhe.Ciphertext, len(env.Input))
	for i, b := range env.Input {
		ct, err := fhe.UnmarshalCiphertext(b)
		if err != nil {
			return queue.Query{}, err
		}
		input[i] = ct
	}
	return queue.Query{
		KeyID: env.KeyID, Dataset: env.Dataset, Model: env.Model,
		InH: env.InH, InW: env.InW, InC: env.InC, Input: input,
	}, nil
}

// QueryIDEnvelope is the CodeDataQueryID response payload.
type QueryIDEnvelope struct {
	QueryID int64
}

func EncodeQueryID(queryID int64) ([]byte, error) {
	return encodeGob(QueryIDEnvelope{QueryID: queryID})
}

func DecodeQueryID(data []byte) (int64, error) {
	var env QueryIDEnvelope
	if err := decodeGob(data, &env); err != nil {
		return 0, err
	}
	return env.QueryID, nil
}

// ResultRequestEnvelope is the CodeUpDownloadResult request payload: a poll
// for the result of a previously submitted query-id.
type ResultRequestEnvelope struct {
	QueryID int64
}

func EncodeResultRequest(queryID int64) ([]byte, error) {
	return encodeGob(ResultRequestEnvelope{QueryID: queryID})
}

func DecodeResultRequest(data []byte) (int64, error) {
	var env ResultRequestEnvelope
	if err := decodeGob(data, &env); err != nil {
		return 0, err
	}
	return env.QueryID, nil
}

// ResultEnvelope is the CodeDataResult response payload.
type ResultEnvelope struct {
	Success bool
	Outputs [][]byte
}

// EncodeResult builds a ResultEnvelope's wire bytes from a queue.Result.
func EncodeResult(r queue.Result) ([]byte, error) {
	outputs := make([][]byte, len(r.Outputs))
	for i, ct := range r.Outputs {
		b, err := fhe.MarshalCiphertext(ct)
		if err != nil {
			return nil, err
		}
		outputs[i] = b
	}
	return encodeGob(ResultEnvelope{Success: r.Success, Outputs: outputs})
}

// DecodeResult parses a ResultEnvelope's wire bytes into a queue.Result.
func DecodeResult(data []byte) (queue.Result, error) {
	var env ResultEnvelope
	if err := decodeGob(data, &env); err != nil {
		return queue.Result{}, err
	}
	outputs := make([]fhe.Ciphertext, len(env.Outputs))
	for i, b := range env.Outputs {
		ct, err := fhe.UnmarshalCiphertext(b)
		if err != nil {
			return queue.Result{}, err
		}
		outputs[i] = ct
	}
	return queue.Result{Success: env.Success, Outputs: outputs}, nil
}

func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("protocol: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("protocol: decode: %w", err)
	}
	return nil
}
