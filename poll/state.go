package poll

import "sort"

// InteractionState is view state that cannot be derived from a snapshot:
// which rows are expanded, which tab is in front, how far the active list is
// scrolled and which row holds the cursor. Rows and tabs are identified by
// stable keys, never by position, because upstream lists reorder between
// fetches (play-by-play feeds prepend the newest entry).
type InteractionState struct {
	Open         map[string]bool `json:"open,omitempty"`
	ActiveTab    string          `json:"active_tab,omitempty"`
	ScrollOffset int             `json:"scroll_offset,omitempty"`
	Selected     string          `json:"selected,omitempty"`
}

// Clone returns a deep copy.
func (s InteractionState) Clone() InteractionState {
	c := s
	c.Open = make(map[string]bool, len(s.Open))
	for k, v := range s.Open {
		if v {
			c.Open[k] = true
		}
	}
	return c
}

// IsOpen reports whether the row with key is expanded.
func (s InteractionState) IsOpen(key string) bool {
	return s.Open[key]
}

// SetOpen expands or collapses the row with key.
func (s *InteractionState) SetOpen(key string, open bool) {
	if s.Open == nil {
		s.Open = make(map[string]bool)
	}
	if open {
		s.Open[key] = true
		return
	}
	delete(s.Open, key)
}

// Toggle flips the row with key and returns its new state.
func (s *InteractionState) Toggle(key string) bool {
	open := !s.IsOpen(key)
	s.SetOpen(key, open)
	return open
}

// OpenKeys returns the expanded row keys in sorted order.
func (s InteractionState) OpenKeys() []string {
	keys := make([]string, 0, len(s.Open))
	for k, v := range s.Open {
		if v {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
