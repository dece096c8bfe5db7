package resolve

import "github.com/cleared-dev/dedupe/internal/duplicates"

// Selection is the caller's review state for one scan: which transactions
// are marked for deletion, in the order they were picked, and which groups
// are expanded. It is not persisted; build a new one for every scan.
type Selection struct {
	ids      []string
	expanded map[int]bool
}

// NewSelection returns an empty Selection.
func NewSelection() *Selection {
	return &Selection{expanded: make(map[int]bool)}
}

// IsSelected reports whether id is marked for deletion.
func (s *Selection) IsSelected(id string) bool {
	return s.indexOf(id) >= 0
}

// Select marks id. Selecting twice keeps the original position.
func (s *Selection) Select(id string) {
	if !s.IsSelected(id) {
		s.ids = append(s.ids, id)
	}
}

// Deselect unmarks id.
func (s *Selection) Deselect(id string) {
	if i := s.indexOf(id); i >= 0 {
		s.ids = append(s.ids[:i], s.ids[i+1:]...)
	}
}

// SelectAllButAnchor marks every member of g except its first.
func (s *Selection) SelectAllButAnchor(g duplicates.Group) {
	for _, tx := range g.Transactions[1:] {
		s.Select(tx.ID)
	}
}

// IDs returns the selected ids in selection order.
func (s *Selection) IDs() []string {
	return append([]string(nil), s.ids...)
}

// Len is the number of selected ids.
func (s *Selection) Len() int {
	return len(s.ids)
}

// SetExpanded records whether the group at index is expanded.
func (s *Selection) SetExpanded(group int, expanded bool) {
	if expanded {
		s.expanded[group] = true
	} else {
		delete(s.expanded, group)
	}
}

// IsExpanded reports whether the group at index is expanded.
func (s *Selection) IsExpanded(group int) bool {
	return s.expanded[group]
}

func (s *Selection) indexOf(id string) int {
	for i, v := range s.ids {
		if v == id {
			return i
		}
	}
	return -1
}
