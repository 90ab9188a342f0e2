package restrict

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Direction is a sort direction.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// ParseDirection accepts "asc"/"ascending" and "desc"/"descending" in any case.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	default:
		return "", fmt.Errorf("invalid sort direction %q", s)
	}
}

// Orders maps property paths to sort directions.
//
// Keys are unique: adding a path again overwrites its direction. Orders is
// a plain mapping with no iteration order guarantee. The SQL backend sorts
// keys lexically and appends the id as a tiebreaker so results stay
// deterministic; callers needing a specific key precedence must issue
// separate queries or rely on a single key.
type Orders struct {
	orders map[string]Direction
}

// NewOrders returns an empty container.
func NewOrders() *Orders {
	return &Orders{}
}

// Add sets the direction for path. An empty path or direction is a no-op.
func (o *Orders) Add(path string, dir Direction) *Orders {
	if path == "" || dir == "" {
		return o
	}
	if o.orders == nil {
		o.orders = make(map[string]Direction)
	}
	o.orders[path] = dir
	return o
}

// Size returns the number of ordered paths.
func (o *Orders) Size() int {
	if o == nil {
		return 0
	}
	return len(o.orders)
}

// Clear removes all entries.
func (o *Orders) Clear() {
	if o == nil {
		return
	}
	o.orders = nil
}

// Orders returns a copy of the path -> direction mapping.
func (o *Orders) Orders() map[string]Direction {
	if o == nil || o.orders == nil {
		return map[string]Direction{}
	}
	return maps.Clone(o.orders)
}

// Paths returns the ordered paths sorted lexically.
func (o *Orders) Paths() []string {
	if o == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(o.orders))
}
