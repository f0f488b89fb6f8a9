package ast

// Inspect traverses the tree rooted at n in depth-first pre-order. If f
// returns false the children of the current node are skipped.
func Inspect(n *Node, f func(*Node) bool) {
	if n == nil {
		return
	}
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !f(cur) {
			continue
		}
		for i := len(cur.children) - 1; i >= 0; i-- {
			stack = append(stack, cur.children[i])
		}
	}
}

// Functions returns every Function node under root, nested ones included,
// in order of their start in the source.
func Functions(root *Node) []*Node {
	var fns []*Node
	Inspect(root, func(n *Node) bool {
		if n.kind == KindFunction {
			fns = append(fns, n)
		}
		return true
	})
	return fns
}

// Count returns the number of nodes of kind k under root.
func Count(root *Node, k Kind) int {
	c := 0
	Inspect(root, func(n *Node) bool {
		if n.kind == k {
			c++
		}
		return true
	})
	return c
}

// InspectFunction visits the nodes that belong to fn's own scope. Nested
// function definitions are visited and their header expressions (defaults and
// annotations) are walked, but their bodies are not entered.
// Header expressions of fn itself are not visited.
func InspectFunction(fn *Node, f func(*Node) bool) {
	body := fn.Body()
	if body == nil {
		return
	}
	var visit func(*Node) bool
	visit = func(n *Node) bool {
		if !f(n) {
			return false
		}
		if n.kind != KindFunction {
			return true
		}
		for _, h := range n.Header() {
			Inspect(h, visit)
		}
		return false
	}
	Inspect(body, visit)
}
