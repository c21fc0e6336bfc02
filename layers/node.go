package layers

import "github.com/chorus-fhe/ppcnn/fhe"

// Kind tags which operator variant a Node implements; Plan.String and the
// executor's error messages report it (the executor itself dispatches with a
// type switch on the Node's Go type).
type Kind int

const (
	KindConv2D Kind = iota
	KindConvFusedBN
	KindAveragePooling2D
	KindBatchNormalization
	KindDense
	KindDenseFusedBN
	KindActivation
	KindFlatten
	KindGlobalAveragePooling2D
)

func (k Kind) String() string {
	switch k {
	case KindConv2D:
		return "Conv2D"
	case KindConvFusedBN:
		return "ConvFusedBN"
	case KindAveragePooling2D:
		return "AveragePooling2D"
	case KindBatchNormalization:
		return "BatchNormalization"
	case KindDense:
		return "Dense"
	case KindDenseFusedBN:
		return "DenseFusedBN"
	case KindActivation:
		return "Activation"
	case KindFlatten:
		return "Flatten"
	case KindGlobalAveragePooling2D:
		return "GlobalAveragePooling2D"
	default:
		return "Unknown"
	}
}

// Node is one compiled operator in a Network Plan. Name identifies the
// layer the node was built from, for error messages and debug logging.
type Node interface {
	Kind() Kind
	Name() string
}

// Ctx carries everything a Node's Forward implementation needs beyond its
// own parameters: the engine to evaluate against and the relinearization
// key for the KeyBundle the plan was compiled against.
type Ctx struct {
	Engine fhe.Engine
	Relin  fhe.RelinearizationKey
}
