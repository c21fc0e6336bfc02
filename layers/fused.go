package layers

// ConvFusedBN is the node the compiler emits under FuseConvBN in place of a
// Conv2D immediately followed by a BatchNormalization (spec §4.3): its
// Conv2D's Filters/Biases already carry `w_bn*W` and `w_bn*b_conv + b_bn`,
// so the forward computation is identical to a plain Conv2D and consumes
// the same single level, saving the BatchNormalization's level entirely.
type ConvFusedBN struct {
	Conv2D
}

func (c *ConvFusedBN) Kind() Kind { return KindConvFusedBN }

// DenseFusedBN is the Dense analogue of ConvFusedBN.
type DenseFusedBN struct {
	Dense
}

func (d *DenseFusedBN) Kind() Kind { return KindDenseFusedBN }
