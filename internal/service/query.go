package service

import (
	"fmt"

	"github.com/mesh-intelligence/docket/pkg/types"
)

// ListOptions narrows and pages List. Zero values select everything with
// the default page size, newest uploads first.
type ListOptions struct {
	TypeID   string
	Statuses []string
	Query    string // Whitespace separated tokens; all must match.
	Sort     string // uploaded_at, updated_at, name or status.
	Order    string // asc or desc.
	Page     int    // 1-based.
	Limit    int
}

// Page is one page of List results.
type Page struct {
	TotalItems int               `json:"totalItems"`
	TotalPages int               `json:"totalPages"`
	Content    []*types.Document `json:"content"`
}

// DatasetEntry pairs the raw extraction input with the effective view, for
// training extraction models on confirmed documents.
type DatasetEntry struct {
	InputText  string       `json:"input_text"`
	TargetText *types.Layer `json:"target_text"`
}

// List returns a page of effective documents.
func (s *Service) List(opts ListOptions) (Page, error) {
	page := max(opts.Page, DefaultPage)
	limit := opts.Limit
	if limit < 1 {
		limit = DefaultLimit
	}

	filter := opts.filter()
	total, err := s.count(filter)
	if err != nil {
		return Page{}, err
	}

	filter[types.FilterSort] = opts.Sort
	filter[types.FilterOrder] = opts.Order
	filter[types.FilterLimit] = limit
	filter[types.FilterOffset] = (page - 1) * limit
	docs, err := s.fetch(filter)
	if err != nil {
		return Page{}, err
	}

	content := make([]*types.Document, 0, len(docs))
	for _, d := range docs {
		content = append(content, effective(d))
	}
	s.log.WithField("total", total).Debug("documents listed")
	return Page{
		TotalItems: total,
		TotalPages: (total + limit - 1) / limit,
		Content:    content,
	}, nil
}

// Count returns the number of live documents per status, optionally for a
// single document type.
func (s *Service) Count(typeID string) (map[string]int, error) {
	filter := types.Filter{}
	if typeID != "" {
		filter[types.FilterTypeID] = typeID
	}
	if c, ok := s.docs.(types.Counter); ok {
		counts, err := c.CountBy(filter, "status")
		if err != nil {
			return nil, fmt.Errorf("counting documents: %w", err)
		}
		return counts, nil
	}
	docs, err := s.fetch(filter)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, d := range docs {
		counts[d.Status]++
	}
	return counts, nil
}

// Dataset returns the dataset entry of one document.
func (s *Service) Dataset(id string) (DatasetEntry, error) {
	doc, err := s.load(id)
	if err != nil {
		return DatasetEntry{}, err
	}
	return datasetEntry(doc), nil
}

// Datasets returns the dataset entries of every CONFIRMED document.
// Returns ErrNotFound when there are none.
func (s *Service) Datasets() ([]DatasetEntry, error) {
	docs, err := s.fetch(types.Filter{types.FilterStatus: types.StatusConfirmed, types.FilterOrder: "asc"})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no confirmed documents", types.ErrNotFound)
	}
	out := make([]DatasetEntry, 0, len(docs))
	for _, d := range docs {
		out = append(out, datasetEntry(d))
	}
	return out, nil
}

func datasetEntry(doc *types.Document) DatasetEntry {
	return DatasetEntry{
		InputText:  doc.Debug,
		TargetText: effective(doc).Result,
	}
}

func (o ListOptions) filter() types.Filter {
	f := types.Filter{}
	if o.TypeID != "" {
		f[types.FilterTypeID] = o.TypeID
	}
	if len(o.Statuses) > 0 {
		f[types.FilterStatus] = o.Statuses
	}
	if o.Query != "" {
		f[types.FilterQuery] = o.Query
	}
	return f
}

func (s *Service) count(filter types.Filter) (int, error) {
	if c, ok := s.docs.(types.Counter); ok {
		n, err := c.Count(filter)
		if err != nil {
			return 0, fmt.Errorf("counting documents: %w", err)
		}
		return n, nil
	}
	docs, err := s.fetch(filter)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (s *Service) fetch(filter types.Filter) ([]*types.Document, error) {
	entities, err := s.docs.Fetch(filter)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	out := make([]*types.Document, 0, len(entities))
	for _, e := range entities {
		if d, ok := e.(*types.Document); ok {
			out = append(out, d)
		}
	}
	return out, nil
}
