// Package service orchestrates document storage, the overlay merge, row
// editing and validation. It is the only layer that reads or writes both
// document layers and persists them.
package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/docket/internal/merge"
	"github.com/mesh-intelligence/docket/internal/rows"
	"github.com/mesh-intelligence/docket/internal/schema"
	"github.com/mesh-intelligence/docket/internal/validate"
	"github.com/mesh-intelligence/docket/pkg/types"
)

// Defaults for List paging.
const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// Service exposes the document operations over an attached Store.
type Service struct {
	docs     types.Table
	doctypes types.Table
	engine   *validate.Engine
	log      logrus.FieldLogger

	// locks serializes read-modify-write cycles per document id. An entry
	// lives only while some caller holds or waits for it.
	locksMu sync.Mutex
	locks   map[string]*docLock
}

type docLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a Service over an attached store. engine validates fields;
// when nil an engine without remote lookups is used.
func New(store types.Store, engine *validate.Engine, opts ...Option) (*Service, error) {
	docs, err := store.GetTable(types.TableDocuments)
	if err != nil {
		return nil, fmt.Errorf("opening %s table: %w", types.TableDocuments, err)
	}
	doctypes, err := store.GetTable(types.TableDocumentTypes)
	if err != nil {
		return nil, fmt.Errorf("opening %s table: %w", types.TableDocumentTypes, err)
	}
	s := &Service{
		docs:     docs,
		doctypes: doctypes,
		engine:   engine,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = validate.New(nil, validate.WithLogger(s.log))
	}
	return s, nil
}

// PutType stores a document type, creating it when dt.TypeID is empty.
// Types whose field names collide are rejected with ErrDuplicateField.
func (s *Service) PutType(dt *types.DocumentType) (string, error) {
	if dt == nil {
		return "", types.ErrInvalidData
	}
	if dups := schema.New(dt).Duplicates(); len(dups) > 0 {
		return "", fmt.Errorf("%w: %s", types.ErrDuplicateField, strings.Join(dups, ", "))
	}
	id, err := s.doctypes.Set(dt.TypeID, dt)
	if err != nil {
		return "", fmt.Errorf("storing document type: %w", err)
	}
	s.log.WithFields(logrus.Fields{"type_id": id, "name": dt.Name}).Info("document type stored")
	return id, nil
}

// GetType returns the document type with the given id.
func (s *Service) GetType(id string) (*types.DocumentType, error) {
	entity, err := s.doctypes.Get(id)
	if err != nil {
		return nil, err
	}
	dt, ok := entity.(*types.DocumentType)
	if !ok {
		return nil, types.ErrInvalidData
	}
	return dt, nil
}

// ListTypes returns every document type ordered by name.
func (s *Service) ListTypes() ([]*types.DocumentType, error) {
	entities, err := s.doctypes.Fetch(nil)
	if err != nil {
		return nil, fmt.Errorf("listing document types: %w", err)
	}
	out := make([]*types.DocumentType, 0, len(entities))
	for _, e := range entities {
		if dt, ok := e.(*types.DocumentType); ok {
			out = append(out, dt)
		}
	}
	return out, nil
}

// Create stores a new document of an existing type. The edited layer always
// starts empty and the status is UPLOADED.
func (s *Service) Create(doc *types.Document) (*types.Document, error) {
	if doc == nil {
		return nil, types.ErrInvalidData
	}
	if _, err := s.GetType(doc.TypeID); err != nil {
		return nil, fmt.Errorf("creating document: %w", err)
	}
	doc.DocumentID = ""
	doc.Edited = &types.Layer{}
	doc.IsDeleted = false
	id, err := s.docs.Set("", doc)
	if err != nil {
		return nil, fmt.Errorf("creating document: %w", err)
	}
	s.log.WithFields(logrus.Fields{"doc_id": id, "type_id": doc.TypeID}).Info("document created")
	return doc, nil
}

// Get returns the document with Result replaced by the effective view.
func (s *Service) Get(id string) (*types.Document, error) {
	doc, err := s.load(id)
	if err != nil {
		return nil, err
	}
	s.log.WithField("doc_id", id).Debug("document read")
	return effective(doc), nil
}

// Delete flags the document as deleted. It disappears from every read.
func (s *Service) Delete(id string) error {
	if err := s.docs.Delete(id); err != nil {
		return err
	}
	s.log.WithField("doc_id", id).Info("document deleted")
	return nil
}

// Update validates every field of patch against the document type and then
// merges patch into the edited layer, introducing fields as needed. Row
// changes go through AddRow, EditRow and DeleteRow instead.
func (s *Service) Update(ctx context.Context, id string, patch *types.Layer) (*types.Document, error) {
	if countFields(patch) == 0 {
		return nil, fmt.Errorf("%w: patch carries no fields", types.ErrMalformedPatch)
	}
	if patch.Table != nil {
		return nil, fmt.Errorf("%w: rows are edited one at a time", types.ErrMalformedPatch)
	}

	unlock := s.lock(id)
	defer unlock()

	doc, err := s.load(id)
	if err != nil {
		return nil, err
	}
	dt, err := s.GetType(doc.TypeID)
	if err != nil {
		return nil, err
	}
	ix := schema.New(dt)

	var failed []types.FieldError
	for group, fields := range patch.Groups {
		for field, value := range fields {
			def, ok := ix.Lookup(group, field)
			if !ok {
				return nil, fmt.Errorf("%w: %s.%s", types.ErrFieldNotFound, group, field)
			}
			if msg := s.engine.ValidateField(ctx, value, def); msg != "" {
				failed = append(failed, types.FieldError{Field: types.Summarize(def, value), Message: msg})
			}
		}
	}
	if len(failed) > 0 {
		sortFieldErrors(failed, ix)
		return nil, &types.ValidationError{Errors: failed}
	}

	doc.Edited = merge.Merge(doc.Edited, patch, true)
	if err := s.save(doc); err != nil {
		return nil, err
	}
	s.log.WithField("doc_id", id).Info("document updated")
	return effective(doc), nil
}

// Validate checks the effective view of the document against its type and
// returns the failing fields in declaration order.
func (s *Service) Validate(ctx context.Context, id string) ([]types.FieldError, error) {
	doc, err := s.load(id)
	if err != nil {
		return nil, err
	}
	return s.validate(ctx, doc)
}

// Confirm validates the document and marks it CONFIRMED. A failing
// validation returns *types.ValidationError and leaves the status unchanged.
func (s *Service) Confirm(ctx context.Context, id string) (*types.Document, error) {
	unlock := s.lock(id)
	defer unlock()

	doc, err := s.load(id)
	if err != nil {
		return nil, err
	}
	failed, err := s.validate(ctx, doc)
	if err != nil {
		return nil, err
	}
	if len(failed) > 0 {
		s.log.WithFields(logrus.Fields{"doc_id": id, "failures": len(failed)}).Info("confirmation rejected")
		return nil, &types.ValidationError{Errors: failed}
	}

	doc.Status = types.StatusConfirmed
	if err := s.save(doc); err != nil {
		return nil, err
	}
	s.log.WithField("doc_id", id).Info("document confirmed")
	return effective(doc), nil
}

// AddRow appends a row to the document's edited table.
func (s *Service) AddRow(id string, payload map[string]any) (types.Row, error) {
	return s.editRows(id, "row added", func(doc *types.Document) (types.Row, error) {
		return rows.AddRow(doc, payload)
	})
}

// EditRow changes fields of row rowID.
func (s *Service) EditRow(id string, rowID int, payload map[string]any) (types.Row, error) {
	return s.editRows(id, "row edited", func(doc *types.Document) (types.Row, error) {
		return rows.EditRow(doc, rowID, payload)
	})
}

// DeleteRow removes row rowID from the effective view.
func (s *Service) DeleteRow(id string, rowID int) error {
	_, err := s.editRows(id, "row deleted", func(doc *types.Document) (types.Row, error) {
		return types.Row{ID: rowID}, rows.DeleteRow(doc, rowID)
	})
	return err
}

func (s *Service) editRows(id, event string, edit func(*types.Document) (types.Row, error)) (types.Row, error) {
	unlock := s.lock(id)
	defer unlock()

	doc, err := s.load(id)
	if err != nil {
		return types.Row{}, err
	}
	row, err := edit(doc)
	if err != nil {
		return types.Row{}, err
	}
	if err := s.save(doc); err != nil {
		return types.Row{}, err
	}
	s.log.WithFields(logrus.Fields{"doc_id": id, "row_id": row.ID}).Info(event)
	return row, nil
}

func (s *Service) validate(ctx context.Context, doc *types.Document) ([]types.FieldError, error) {
	dt, err := s.GetType(doc.TypeID)
	if err != nil {
		return nil, err
	}
	view := merge.Merge(doc.Result, doc.Edited, true)
	failed := s.engine.ValidateDocument(ctx, view, schema.New(dt))
	s.log.WithFields(logrus.Fields{"doc_id": doc.DocumentID, "failures": len(failed)}).Debug("document validated")
	return failed, nil
}

func (s *Service) load(id string) (*types.Document, error) {
	entity, err := s.docs.Get(id)
	if err != nil {
		return nil, err
	}
	doc, ok := entity.(*types.Document)
	if !ok {
		return nil, types.ErrInvalidData
	}
	return doc, nil
}

func (s *Service) save(doc *types.Document) error {
	if _, err := s.docs.Set(doc.DocumentID, doc); err != nil {
		return fmt.Errorf("saving document %s: %w", doc.DocumentID, err)
	}
	return nil
}

// lock acquires the per-document mutex and returns its release.
func (s *Service) lock(id string) func() {
	s.locksMu.Lock()
	if s.locks == nil {
		s.locks = make(map[string]*docLock)
	}
	l, ok := s.locks[id]
	if !ok {
		l = &docLock{}
		s.locks[id] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		if l.refs--; l.refs == 0 {
			delete(s.locks, id)
		}
		s.locksMu.Unlock()
	}
}

func countFields(patch *types.Layer) int {
	if patch == nil {
		return 0
	}
	n := 0
	for _, g := range patch.Groups {
		n += len(g)
	}
	return n
}

// effective returns a copy of doc whose Result is the merged view.
func effective(doc *types.Document) *types.Document {
	out := *doc
	out.Result = merge.Merge(doc.Result, doc.Edited, true)
	out.Edited = doc.Edited.Clone()
	return &out
}

// sortFieldErrors orders failures by schema declaration order.
func sortFieldErrors(failed []types.FieldError, ix *schema.Index) {
	pos := make(map[string]int)
	for i, def := range ix.Fields() {
		pos[def.Path+"\x00"+def.Field] = i
	}
	sort.SliceStable(failed, func(i, j int) bool {
		return pos[failed[i].Field.Path+"\x00"+failed[i].Field.Field] < pos[failed[j].Field.Path+"\x00"+failed[j].Field.Field]
	})
}
