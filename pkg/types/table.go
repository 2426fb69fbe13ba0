package types

// Filter narrows a Table.Fetch. Keys are table specific; an empty or nil
// filter matches every live entity.
type Filter map[string]any

// Table provides uniform CRUD operations for a single entity type.
// Get and Fetch return any; callers type-assert to the concrete entity struct.
type Table interface {
	// Get retrieves the entity with the given ID.
	// Returns ErrNotFound if no entity exists with that ID.
	Get(id string) (any, error)

	// Set creates or updates an entity. When id is empty a new UUID v7 is
	// generated. Returns the actual ID used (generated or provided).
	Set(id string, data any) (string, error)

	// Delete removes the entity with the given ID. Tables holding documents
	// only flag the entity as deleted.
	// Returns ErrNotFound if no entity exists with that ID.
	Delete(id string) error

	// Fetch returns all entities matching the filter.
	Fetch(filter Filter) ([]any, error)
}

// Counter is implemented by tables that count matching entities without
// hydrating them. Fetch filter keys apply; paging and sort keys are ignored.
type Counter interface {
	Count(filter Filter) (int, error)

	// CountBy groups the matching entities by column and counts each group.
	CountBy(filter Filter, column string) (map[string]int, error)
}

// Filter keys understood by the documents and document_types tables.
const (
	FilterTypeID = "type_id" // string
	FilterStatus = "status"  // string or []string
	FilterQuery  = "q"       // whitespace separated search tokens
	FilterName   = "name"    // string, document_types only
	FilterSort   = "sort"    // uploaded_at, updated_at, name, status
	FilterOrder  = "order"   // asc or desc
	FilterLimit  = "limit"   // int
	FilterOffset = "offset"  // int
)
