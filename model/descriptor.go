// Package model parses the topology descriptor and reads the trained-weight
// store (spec §6) that the Network Compiler consumes.
package model

import (
	"encoding/json"
	"fmt"

	"github.com/chorus-fhe/ppcnn/ppcnnerr"
)

// Class names the topology descriptor's `class_name` values (spec §6).
type Class string

const (
	ClassConv2D               Class = "Conv2D"
	ClassAveragePooling2D     Class = "AveragePooling2D"
	ClassBatchNormalization   Class = "BatchNormalization"
	ClassFlatten              Class = "Flatten"
	ClassDense                Class = "Dense"
	ClassActivation           Class = "Activation"
	ClassGlobalAveragePooling2D Class = "GlobalAveragePooling2D"
)

// LayerConfig is the kind-specific `config` sub-object of one descriptor
// entry. Fields are populated according to the entry's Class; irrelevant
// fields are left zero.
type LayerConfig struct {
	Name            string `json:"name"`
	BatchInputShape []int  `json:"batch_input_shape,omitempty"`
	Filters         int    `json:"filters,omitempty"`
	KernelSize      [2]int `json:"kernel_size,omitempty"`
	Strides         [2]int `json:"strides,omitempty"`
	Padding         string `json:"padding,omitempty"`
	Activation      string `json:"activation,omitempty"`
	PoolSize        [2]int `json:"pool_size,omitempty"`
	Units           int    `json:"units,omitempty"`
}

// Entry is one layer in the topology descriptor's ordered list.
type Entry struct {
	ClassName Class       `json:"class_name"`
	Config    LayerConfig `json:"config"`
}

// Descriptor is the parsed topology descriptor: a JSON object with a
// top-level `config` key naming the ordered layer list (spec §6).
type Descriptor struct {
	Config []Entry `json:"config"`
}

// ParseDescriptor decodes a topology descriptor from its JSON
// representation.
func ParseDescriptor(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse topology descriptor: %w: %v", ppcnnerr.ErrIO, err)
	}
	for i, e := range d.Config {
		if !e.ClassName.valid() {
			return nil, fmt.Errorf("layer %d: class %q: %w", i, e.ClassName, ppcnnerr.ErrUnknownLayer)
		}
	}
	return &d, nil
}

func (c Class) valid() bool {
	switch c {
	case ClassConv2D, ClassAveragePooling2D, ClassBatchNormalization, ClassFlatten,
		ClassDense, ClassActivation, ClassGlobalAveragePooling2D:
		return true
	default:
		return false
	}
}
