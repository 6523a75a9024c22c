package epub

import (
	"strconv"
	"strings"
)

// Allocator hands out manifest ids. Ids are restricted to XML-safe
// characters and guaranteed unique for the lifetime of the allocator,
// colliding stems get a numeric suffix.
type Allocator struct {
	used map[string]bool
}

// NewAllocator creates an allocator with the given ids already taken.
func NewAllocator(reserved ...string) *Allocator {
	a := &Allocator{used: make(map[string]bool, len(reserved))}
	for _, id := range reserved {
		a.used[id] = true
	}
	return a
}

// Allocate derives a unique id from the stem. The same stem allocated twice
// yields two different ids.
func (a *Allocator) Allocate(stem string) string {

	base := sanitizeID(stem)
	id := base
	for counter := 1; a.used[id]; counter++ {
		id = base + "_" + strconv.Itoa(counter)
	}
	a.used[id] = true
	return id
}

// sanitizeID maps a file name stem to an XML-safe id: anything outside
// [A-Za-z0-9_] becomes an underscore and a leading digit gets one prepended.
func sanitizeID(stem string) string {

	var b strings.Builder
	b.Grow(len(stem) + 1)
	for i, r := range stem {
		safe := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !safe {
			b.WriteByte('_')
			continue
		}
		if i == 0 && r >= '0' && r <= '9' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}
