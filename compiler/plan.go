package compiler

import (
	"fmt"
	"strings"

	"github.com/chorus-fhe/ppcnn/layers"
)

// nodeLevels records the level budget consumed immediately before and
// after one compiled node, for Plan.String's level-range rendering.
type nodeLevels struct {
	before, after int
}

// Plan is a compiled, ordered operator list ready for the Forward
// Executor, annotated with the level range each node consumes.
// Mirrors the original's Network::printStructure via Plan.String.
type Plan struct {
	Nodes  []layers.Node
	levels []nodeLevels
}

// String renders one line per node: its kind, name, and the level range
// it consumes, e.g. "conv1 (Conv2D) level 0->1".
func (p Plan) String() string {
	var b strings.Builder
	for i, n := range p.Nodes {
		lv := p.levels[i]
		fmt.Fprintf(&b, "%s (%s) level %d->%d\n", n.Name(), n.Kind(), lv.before, lv.after)
	}
	return b.String()
}
