package layers

// Padding names the two padding modes the topology descriptor supports
// (spec §4.3, §6).
type Padding string

const (
	PaddingValid Padding = "valid"
	PaddingSame  Padding = "same"
)

// ceilDiv returns ceil(a/b) for positive a, b.
func ceilDiv(a, b int) int { return (a + b - 1) / b }

// samePadAlong returns the total padding Conv2D/AveragePooling2D must split
// across one spatial dimension under "same" padding: spec §4.3's
// `pad_along = max(filter − (in mod stride or stride), 0)`.
func samePadAlong(in, filter, stride int) int {
	m := in % stride
	if m == 0 {
		m = stride
	}
	padAlong := filter - m
	if padAlong < 0 {
		padAlong = 0
	}
	return padAlong
}

// ConvOutputShape computes a Conv2D/AveragePooling2D output dimension and
// leading pad for one spatial axis, per spec §4.3.
func ConvOutputShape(in, filter, stride int, padding Padding) (out, padLead int) {
	if padding == PaddingSame {
		out = ceilDiv(in, stride)
		padAlong := samePadAlong(in, filter, stride)
		padLead = padAlong / 2
		return out, padLead
	}
	out = ceilDiv(in-filter+1, stride)
	return out, 0
}
