package dom

import (
	"sort"
	"sync"
)

// Mark is a visual highlight the playback engine puts on a node. A node
// carries at most one mark at a time.
type Mark string

const (
	// MarkActive flags the node whose message is being spoken.
	MarkActive Mark = "reading-now"
	// MarkOnDeck flags the node that will be spoken next.
	MarkOnDeck Mark = "reading-next"
)

// Marks is the set of marked nodes. It is safe for concurrent use: the
// engine writes it and the UI reads it while rendering.
type Marks struct {
	mu    sync.RWMutex
	marks map[NodeID]Mark
}

// NewMarks returns an empty mark set.
func NewMarks() *Marks {
	return &Marks{marks: make(map[NodeID]Mark)}
}

// Mark sets the mark of a node, replacing any previous one.
func (m *Marks) Mark(id NodeID, mark Mark) {
	if id.IsZero() {
		return
	}
	m.mu.Lock()
	m.marks[id] = mark
	m.mu.Unlock()
}

// Unmark removes mark from a node. Other marks are left alone.
func (m *Marks) Unmark(id NodeID, mark Mark) {
	m.mu.Lock()
	if m.marks[id] == mark {
		delete(m.marks, id)
	}
	m.mu.Unlock()
}

// UnmarkAll removes the given marks from every node. With no arguments it
// clears the set.
func (m *Marks) UnmarkAll(marks ...Mark) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(marks) == 0 {
		m.marks = make(map[NodeID]Mark)
		return
	}
	for id, have := range m.marks {
		for _, mark := range marks {
			if have == mark {
				delete(m.marks, id)
				break
			}
		}
	}
}

// Get returns the mark of a node.
func (m *Marks) Get(id NodeID) (Mark, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mark, ok := m.marks[id]
	return mark, ok
}

// Count returns how many nodes carry mark.
func (m *Marks) Count(mark Mark) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, have := range m.marks {
		if have == mark {
			n++
		}
	}
	return n
}

// Nodes returns the sorted handles carrying mark.
func (m *Marks) Nodes(mark Mark) []NodeID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []NodeID
	for id, have := range m.marks {
		if have == mark {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
