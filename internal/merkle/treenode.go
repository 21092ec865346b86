package merkle

// TreeNode is the flat wire projection of a hashed node, submitted to
// the backend's diff-check endpoint.
type TreeNode struct {
	// ID is the node's content hash.
	ID string `json:"id"`

	// ParentID is the parent directory's hash; empty for the root.
	ParentID string `json:"parent_id,omitempty"`

	// Type is "file" or "dir".
	Type string `json:"type"`
}

// ToTreeNodes flattens the tree into wire projections. Excluded nodes
// are omitted; ignored subtrees were never walked in the first place.
func (n *Node) ToTreeNodes() []TreeNode {
	type frame struct {
		node     *Node
		parentID string
	}

	var out []TreeNode
	stack := []frame{{node: n}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.node.excluded || !top.node.hashed {
			continue
		}

		typ := "file"
		if top.node.kind == KindDir {
			typ = "dir"
		}
		out = append(out, TreeNode{
			ID:       top.node.hash,
			ParentID: top.parentID,
			Type:     typ,
		})

		for _, c := range top.node.children {
			stack = append(stack, frame{node: c, parentID: top.node.hash})
		}
	}
	return out
}

// LeafHashes returns a lookup from content hash to file node, used to
// map the backend's diverging-hash list back onto local files. Excluded
// nodes are omitted.
func (n *Node) LeafHashes() map[string]*Node {
	out := make(map[string]*Node)
	stack := []*Node{n}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.kind == KindFile {
			if top.hashed && !top.excluded {
				out[top.hash] = top
			}
			continue
		}
		stack = append(stack, top.children...)
	}
	return out
}
