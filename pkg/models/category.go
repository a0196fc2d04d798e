package models

import "github.com/shopspring/decimal"

// Category is a node in the category tree. Parent/children are held as
// id-references so the arena owns no cycles.
type Category struct {
	ID       int    `json:"id" db:"id"`
	Code     string `json:"code" db:"code"`
	Name     string `json:"name" db:"name"`
	Kind     string `json:"kind" db:"kind"` // REAL_ESTATE, MOVABLE, INTANGIBLE
	ParentID *int   `json:"parent_id" db:"parent_id"`
	Active   bool   `json:"active" db:"active"`
}

// Subcategory carries the depreciation defaults and the criticality flag
// consumed by maintenance prioritization.
type Subcategory struct {
	ID                    int    `json:"id" db:"id"`
	CategoryID            int    `json:"category_id" db:"category_id"`
	Code                  string `json:"code" db:"code"`
	Name                  string `json:"name" db:"name"`
	DefaultDurationMonths *int   `json:"default_duration_months" db:"default_duration_months"`
	Critical              bool   `json:"critical" db:"critical"`
}

// CategoryArena indexes the category tree by id. Built once at load time;
// read-only afterwards.
type CategoryArena struct {
	categories    map[int]Category
	subcategories map[int]Subcategory
	children      map[int][]int
}

func NewCategoryArena(categories []Category, subcategories []Subcategory) *CategoryArena {
	arena := &CategoryArena{
		categories:    make(map[int]Category, len(categories)),
		subcategories: make(map[int]Subcategory, len(subcategories)),
		children:      make(map[int][]int),
	}
	for _, c := range categories {
		arena.categories[c.ID] = c
		if c.ParentID != nil {
			arena.children[*c.ParentID] = append(arena.children[*c.ParentID], c.ID)
		}
	}
	for _, s := range subcategories {
		arena.subcategories[s.ID] = s
	}
	return arena
}

func (a *CategoryArena) Category(id int) (Category, bool) {
	c, ok := a.categories[id]
	return c, ok
}

func (a *CategoryArena) Subcategory(id int) (Subcategory, bool) {
	s, ok := a.subcategories[id]
	return s, ok
}

// Belongs reports whether the subcategory is attached to the category.
func (a *CategoryArena) Belongs(subcategoryID, categoryID int) bool {
	s, ok := a.subcategories[subcategoryID]
	return ok && s.CategoryID == categoryID
}

// Descendants walks the child id-references breadth-first.
func (a *CategoryArena) Descendants(categoryID int) []Category {
	var out []Category
	queue := append([]int(nil), a.children[categoryID]...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if c, ok := a.categories[id]; ok && c.Active {
			out = append(out, c)
			queue = append(queue, a.children[id]...)
		}
	}
	return out
}

// ValueTier buckets an asset value for maintenance priority scoring.
func ValueTier(value decimal.Decimal) int {
	switch {
	case value.GreaterThanOrEqual(decimal.NewFromInt(10_000_000)):
		return 3
	case value.GreaterThanOrEqual(decimal.NewFromInt(1_000_000)):
		return 2
	default:
		return 1
	}
}
