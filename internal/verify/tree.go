package verify

import "github.com/lhaig/refine/internal/rty"

type nodeKind uint8

const (
	nodeConj nodeKind = iota
	nodeForAll
	nodeGuard
	nodeCheck
)

// node is one level of the refinement tree a FnChecker grows. Binders and
// guards scope over their children; checks are leaves.
type node struct {
	kind     nodeKind
	name     rty.Name
	sort     rty.Sort
	pred     *rty.Pred // nil means true
	tag      Tag
	children []*node
}

func (n *node) push(child *node) *node {
	n.children = append(n.children, child)
	return child
}

// obligations counts the check leaves below n
func (n *node) obligations() int {
	if n.kind == nodeCheck {
		return 1
	}
	total := 0
	for _, c := range n.children {
		total += c.obligations()
	}
	return total
}

func (n *node) walk(fn func(*node)) {
	fn(n)
	for _, c := range n.children {
		c.walk(fn)
	}
}
