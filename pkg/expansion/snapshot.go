package expansion

// NodeID identifies a position in the displayed hierarchy. Only identity
// matters; the controller attaches no other meaning to it.
type NodeID string

// Path is the chain of node IDs from a root down to a node, inclusive.
type Path []NodeID

// Leaf returns the last node of the path, or "" for an empty path.
func (p Path) Leaf() NodeID {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// IsPrefixOf reports whether p lies on the way to other, i.e. whether the
// node at the end of p is other's leaf or one of its ancestors.
func (p Path) IsPrefixOf(other Path) bool {
	if len(p) == 0 || len(p) > len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Snapshot is an insertion-ordered set of node IDs: the nodes that were
// expanded at some instant. The zero value is an empty snapshot.
type Snapshot struct {
	ids   []NodeID
	index map[NodeID]struct{}
}

// NewSnapshot builds a snapshot from ids, dropping duplicates.
func NewSnapshot(ids ...NodeID) Snapshot {
	var s Snapshot
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id and reports whether it was new.
func (s *Snapshot) Add(id NodeID) bool {
	if s.index == nil {
		s.index = make(map[NodeID]struct{})
	}
	if _, ok := s.index[id]; ok {
		return false
	}
	s.index[id] = struct{}{}
	s.ids = append(s.ids, id)
	return true
}

// Contains reports whether id is in the snapshot.
func (s Snapshot) Contains(id NodeID) bool {
	_, ok := s.index[id]
	return ok
}

// Len returns the number of distinct IDs.
func (s Snapshot) Len() int {
	return len(s.ids)
}

// IDs returns the IDs in insertion order. The slice is a copy.
func (s Snapshot) IDs() []NodeID {
	out := make([]NodeID, len(s.ids))
	copy(out, s.ids)
	return out
}

// Clone returns an independent copy.
func (s Snapshot) Clone() Snapshot {
	return NewSnapshot(s.ids...)
}

// Equal reports set equality, ignoring order.
func (s Snapshot) Equal(other Snapshot) bool {
	if s.Len() != other.Len() {
		return false
	}
	for _, id := range s.ids {
		if !other.Contains(id) {
			return false
		}
	}
	return true
}

// Row is one visible row of the tree as the view currently lays it out.
type Row struct {
	Node     NodeID
	Path     Path
	Expanded bool
}
