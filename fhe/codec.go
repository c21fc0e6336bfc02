package fhe

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// The wire types below mirror the reference engine's unexported operand
// representations so Ciphertext/Plaintext/key values can cross the network
// (spec §4.10: "binary-serialized ciphertexts / keys produced by the
// underlying scheme"). gob cannot encode complex128 directly, so slot
// vectors travel as parallel real/imaginary float64 slices.
type wireCiphertext struct {
	Real, Imag []float64
	Level      int
	Scale      float64
	Degree     int
	KeyID      int64
}

type wirePlaintext struct {
	Real, Imag []float64
	Level      int
	Scale      float64
}

type wireKey struct {
	ID int64
}

// MarshalCiphertext serializes a Ciphertext produced by this package's
// reference Engine.
func MarshalCiphertext(ct Ciphertext) ([]byte, error) {
	c, ok := ct.(*ckksCiphertext)
	if !ok {
		return nil, fmt.Errorf("marshal ciphertext: %w", errSchemeMismatch)
	}
	w := wireCiphertext{Level: c.level, Scale: c.scale, Degree: c.degree, KeyID: c.keyID}
	w.Real, w.Imag = splitComplex(c.slots)
	return encodeGob(w)
}

// UnmarshalCiphertext is MarshalCiphertext's inverse.
func UnmarshalCiphertext(data []byte) (Ciphertext, error) {
	var w wireCiphertext
	if err := decodeGob(data, &w); err != nil {
		return nil, err
	}
	return &ckksCiphertext{
		slots:  joinComplex(w.Real, w.Imag),
		level:  w.Level,
		scale:  w.Scale,
		degree: w.Degree,
		keyID:  w.KeyID,
	}, nil
}

// MarshalPlaintext serializes a Plaintext produced by this package's
// reference Engine.
func MarshalPlaintext(pt Plaintext) ([]byte, error) {
	p, ok := pt.(*ckksPlaintext)
	if !ok {
		return nil, fmt.Errorf("marshal plaintext: %w", errSchemeMismatch)
	}
	w := wirePlaintext{Level: p.level, Scale: p.scale}
	w.Real, w.Imag = splitComplex(p.slots)
	return encodeGob(w)
}

// UnmarshalPlaintext is MarshalPlaintext's inverse.
func UnmarshalPlaintext(data []byte) (Plaintext, error) {
	var w wirePlaintext
	if err := decodeGob(data, &w); err != nil {
		return nil, err
	}
	return &ckksPlaintext{slots: joinComplex(w.Real, w.Imag), level: w.Level, scale: w.Scale}, nil
}

// MarshalPublicKey serializes a PublicKey produced by this package's
// reference KeyGenerator.
func MarshalPublicKey(pk PublicKey) ([]byte, error) { return encodeGob(wireKey{ID: pk.KeyID()}) }

// UnmarshalPublicKey is MarshalPublicKey's inverse.
func UnmarshalPublicKey(data []byte) (PublicKey, error) {
	var w wireKey
	if err := decodeGob(data, &w); err != nil {
		return nil, err
	}
	return ckksPublicKey{id: w.ID}, nil
}

// MarshalRelinearizationKey serializes a RelinearizationKey produced by
// this package's reference KeyGenerator.
func MarshalRelinearizationKey(rlk RelinearizationKey) ([]byte, error) {
	return encodeGob(wireKey{ID: rlk.KeyID()})
}

// UnmarshalRelinearizationKey is MarshalRelinearizationKey's inverse.
func UnmarshalRelinearizationKey(data []byte) (RelinearizationKey, error) {
	var w wireKey
	if err := decodeGob(data, &w); err != nil {
		return nil, err
	}
	return ckksRelinKey{id: w.ID}, nil
}

func splitComplex(in []complex128) (real, imag []float64) {
	real = make([]float64, len(in))
	imag = make([]float64, len(in))
	for i, v := range in {
		real[i] = realPart(v)
		imag[i] = imagPart(v)
	}
	return real, imag
}

func joinComplex(real, imag []float64) []complex128 {
	out := make([]complex128, len(real))
	for i := range out {
		out[i] = complex(real[i], imag[i])
	}
	return out
}

func realPart(v complex128) float64 { return float64(real(v)) }
func imagPart(v complex128) float64 { return float64(imag(v)) }

func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
