package model

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chorus-fhe/ppcnn/ppcnnerr"
)

// Tensor names under a layer's weight group (spec §6).
const (
	TensorKernel         = "kernel"
	TensorBias           = "bias"
	TensorBeta           = "beta"
	TensorGamma          = "gamma"
	TensorMovingMean     = "moving_mean"
	TensorMovingVariance = "moving_variance"
)

// Tensor is one trained weight tensor: a shape and its row-major float32
// values.
type Tensor struct {
	Shape []int
	Data  []float32
}

// Len returns the tensor's total element count.
func (t Tensor) Len() int { return len(t.Data) }

// WeightStore reads trained-weight tensors by layer name and tensor name.
type WeightStore interface {
	Read(layerName, tensorName string) (Tensor, error)
}

// DirStore is a WeightStore backed by a directory laid out per spec §6:
// `/<layer-name>/<layer-name>/<tensor-name>.bin`. Each file is a small
// binary header (dimension count, then that many dimension sizes, all
// little-endian uint32) followed by the tensor's float32 values,
// little-endian, row-major.
type DirStore struct {
	Root string
}

// Read loads one tensor from the store.
func (s DirStore) Read(layerName, tensorName string) (Tensor, error) {
	path := filepath.Join(s.Root, layerName, layerName, tensorName+".bin")
	f, err := os.Open(path)
	if err != nil {
		return Tensor{}, fmt.Errorf("read %s/%s: %w", layerName, tensorName, ppcnnerr.ErrIO)
	}
	defer f.Close()

	var ndims uint32
	if err := binary.Read(f, binary.LittleEndian, &ndims); err != nil {
		return Tensor{}, fmt.Errorf("read %s/%s header: %w", layerName, tensorName, ppcnnerr.ErrIO)
	}
	shape := make([]int, ndims)
	count := 1
	for i := range shape {
		var dim uint32
		if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
			return Tensor{}, fmt.Errorf("read %s/%s shape: %w", layerName, tensorName, ppcnnerr.ErrIO)
		}
		shape[i] = int(dim)
		count *= int(dim)
	}
	data := make([]float32, count)
	if err := binary.Read(f, binary.LittleEndian, data); err != nil && err != io.EOF {
		return Tensor{}, fmt.Errorf("read %s/%s data: %w", layerName, tensorName, ppcnnerr.ErrIO)
	}
	return Tensor{Shape: shape, Data: data}, nil
}

// MapStore is an in-memory WeightStore, used by tests and by any caller
// that has already materialized tensors (e.g. converted from another
// format) rather than reading them from disk.
type MapStore map[string]map[string]Tensor

// Read implements WeightStore.
func (s MapStore) Read(layerName, tensorName string) (Tensor, error) {
	group, ok := s[layerName]
	if !ok {
		return Tensor{}, fmt.Errorf("layer %q: %w", layerName, ppcnnerr.ErrIO)
	}
	t, ok := group[tensorName]
	if !ok {
		return Tensor{}, fmt.Errorf("layer %q tensor %q: %w", layerName, tensorName, ppcnnerr.ErrIO)
	}
	return t, nil
}
