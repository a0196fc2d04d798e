package models

// OrgUnit is an organizational unit (direction, service, port, terminal).
// The hierarchy is an arena of nodes referencing parents by id.
type OrgUnit struct {
	ID       int    `json:"id" db:"id"`
	Code     string `json:"code" db:"code"`
	Name     string `json:"name" db:"name"`
	Kind     string `json:"kind" db:"kind"`
	ParentID *int   `json:"parent_id" db:"parent_id"`
	Active   bool   `json:"active" db:"active"`
}

type OrgUnitArena struct {
	units    map[int]OrgUnit
	children map[int][]int
}

func NewOrgUnitArena(units []OrgUnit) *OrgUnitArena {
	arena := &OrgUnitArena{
		units:    make(map[int]OrgUnit, len(units)),
		children: make(map[int][]int),
	}
	for _, u := range units {
		arena.units[u.ID] = u
		if u.ParentID != nil {
			arena.children[*u.ParentID] = append(arena.children[*u.ParentID], u.ID)
		}
	}
	return arena
}

func (a *OrgUnitArena) Unit(id int) (OrgUnit, bool) {
	u, ok := a.units[id]
	return u, ok
}

// Hierarchy returns the path from the root down to the unit.
func (a *OrgUnitArena) Hierarchy(id int) []OrgUnit {
	var path []OrgUnit
	seen := make(map[int]bool)
	for {
		u, ok := a.units[id]
		if !ok || seen[id] {
			break
		}
		seen[id] = true
		path = append([]OrgUnit{u}, path...)
		if u.ParentID == nil {
			break
		}
		id = *u.ParentID
	}
	return path
}

// Scope returns the unit and all its descendants, the asset selection set
// for an inventory campaign scoped to that unit.
func (a *OrgUnitArena) Scope(id int) []int {
	if _, ok := a.units[id]; !ok {
		return nil
	}
	out := []int{id}
	queue := append([]int(nil), a.children[id]...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		out = append(out, next)
		queue = append(queue, a.children[next]...)
	}
	return out
}
