package parser

// affectedNode is one unwrapped state-delta entry.
type affectedNode struct {
	Kind  string // CreatedNode, ModifiedNode or DeletedNode
	Entry string // LedgerEntryType
	Index int    // position within AffectedNodes

	Final    map[string]any // FinalFields or NewFields
	Previous map[string]any // PreviousFields
}

// unwrapNodes flattens the single-key wrapper objects of AffectedNodes.
func unwrapNodes(nodes []map[string]any) []affectedNode {
	out := make([]affectedNode, 0, len(nodes))
	for i, wrapper := range nodes {
		for kind, v := range wrapper {
			inner, ok := v.(map[string]any)
			if !ok {
				continue
			}
			node := affectedNode{Kind: kind, Index: i}
			node.Entry, _ = inner["LedgerEntryType"].(string)

			if final, ok := inner["FinalFields"].(map[string]any); ok {
				node.Final = final
			} else if created, ok := inner["NewFields"].(map[string]any); ok {
				node.Final = created
			}
			if prev, ok := inner["PreviousFields"].(map[string]any); ok {
				node.Previous = prev
			}
			out = append(out, node)
		}
	}
	return out
}

// created reports whether this node brought a new ledger entry into being.
func (n affectedNode) created() bool {
	return n.Kind == "CreatedNode"
}

// deleted reports whether this node removed its ledger entry.
func (n affectedNode) deleted() bool {
	return n.Kind == "DeletedNode"
}

func (n affectedNode) finalString(field string) string {
	s, _ := n.Final[field].(string)
	return s
}
