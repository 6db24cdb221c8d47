// Package view renders Event snapshots into keyed regions and serves them as
// HTML. A Document plays the role of the page: regions are replaced
// wholesale on every render, which is exactly what loses interaction state
// unless the caller captures and reapplies it.
package view

import "sync"

// Row is one keyed element of a region. Detail is sanitised HTML shown
// while the row is expanded.
type Row struct {
	Key     string
	Summary string
	Detail  string
	Class   string
}

// Region is a named, independently replaceable part of a Document.
type Region struct {
	Name string
	Rows []Row
}

// Keys returns the row keys in order.
func (r Region) Keys() []string {
	keys := make([]string, len(r.Rows))
	for i, row := range r.Rows {
		keys[i] = row.Key
	}
	return keys
}

// Has reports whether the region holds a row with key.
func (r Region) Has(key string) bool {
	for _, row := range r.Rows {
		if row.Key == key {
			return true
		}
	}
	return false
}

// Document holds the regions of one page and counts writes per region.
type Document struct {
	mu      sync.RWMutex
	order   []string
	regions map[string]Region
	writes  map[string]int
}

func NewDocument(names ...string) *Document {
	d := &Document{
		regions: make(map[string]Region, len(names)),
		writes:  make(map[string]int, len(names)),
	}
	for _, n := range names {
		d.order = append(d.order, n)
		d.regions[n] = Region{Name: n}
	}
	return d
}

// Replace swaps the rows of region name.
func (d *Document) Replace(name string, rows []Row) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.regions[name]; !ok {
		d.order = append(d.order, name)
	}
	d.regions[name] = Region{Name: name, Rows: append([]Row(nil), rows...)}
	d.writes[name]++
}

// Region returns a copy of region name.
func (d *Document) Region(name string) (Region, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.regions[name]
	if !ok {
		return Region{}, false
	}
	r.Rows = append([]Row(nil), r.Rows...)
	return r, true
}

// Regions returns copies of every region in creation order.
func (d *Document) Regions() []Region {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Region, 0, len(d.order))
	for _, n := range d.order {
		r := d.regions[n]
		r.Rows = append([]Row(nil), r.Rows...)
		out = append(out, r)
	}
	return out
}

// Writes returns the number of Replace calls on region name, or on all
// regions when name is empty.
func (d *Document) Writes(name string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if name != "" {
		return d.writes[name]
	}
	total := 0
	for _, n := range d.writes {
		total += n
	}
	return total
}
