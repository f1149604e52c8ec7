package topology

import "github.com/valkey-io/valkeycluster-go/slot"

// Table is the slot→node mapping plus the node registry it draws from. It is
// never mutated in place once published — a refresh builds a new Table
// off to the side and the dispatcher swaps a pointer (spec §4.3's
// "replace then swap" policy), so a reader never observes a half-updated
// table.
type Table struct {
	slots [slot.Count]NodeID // empty string = unassigned
	nodes map[NodeID]*Node
}

// NewTable returns an empty table: every slot unassigned, no nodes.
func NewTable() *Table {
	return &Table{nodes: make(map[NodeID]*Node)}
}

// Clone returns a deep-enough copy to mutate independently (used as the
// "build off-line" half of the replace-then-swap policy).
func (t *Table) Clone() *Table {
	nt := &Table{nodes: make(map[NodeID]*Node, len(t.nodes))}
	nt.slots = t.slots
	for id, n := range t.nodes {
		cp := *n
		nt.nodes[id] = &cp
	}
	return nt
}

// RegisterNode adds or replaces a node in the registry.
func (t *Table) RegisterNode(n *Node) {
	t.nodes[n.ID] = n
}

// Node looks up a registered node by ID.
func (t *Table) Node(id NodeID) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// SetSlot assigns slot s to the primary node id, registering the node if
// it isn't already known (used both by full CLUSTER SLOTS ingestion and by
// single-slot MOVED patches).
func (t *Table) SetSlot(s uint16, id NodeID, host string, port int) {
	if _, ok := t.nodes[id]; !ok {
		t.nodes[id] = &Node{ID: id, Host: host, Port: port, Role: RolePrimary}
	}
	t.slots[s] = id
}

// PrimaryFor returns the primary node ID owning slot s, or "" if unassigned.
func (t *Table) PrimaryFor(s uint16) NodeID {
	return t.slots[s]
}

// PrimaryForKey hashes key and resolves its owning primary.
func (t *Table) PrimaryForKey(key []byte) NodeID {
	return t.PrimaryFor(slot.Of(key))
}

// Unassigned reports whether slot s has no owning node yet.
func (t *Table) Unassigned(s uint16) bool {
	return t.slots[s] == ""
}

// Nodes returns every registered node (primaries and replicas).
func (t *Table) Nodes() []*Node {
	out := make([]*Node, 0, len(t.nodes))
	for _, n := range t.nodes {
		out = append(out, n)
	}
	return out
}

// Primaries returns the distinct set of primary node IDs currently owning
// at least one slot, in order of the lowest slot each one owns.
func (t *Table) Primaries() []NodeID {
	seen := make(map[NodeID]bool)
	var out []NodeID
	for _, id := range t.slots {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
