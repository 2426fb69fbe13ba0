package validate

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/docket/internal/schema"
	"github.com/mesh-intelligence/docket/pkg/types"
)

func intp(n int) *int { return &n }

type fetchCall struct {
	url     string
	headers map[string]string
	query   map[string]string
}

// fakeFetcher returns records or err and remembers each call.
type fakeFetcher struct {
	mu      sync.Mutex
	records []map[string]any
	err     error
	block   bool
	panics  bool
	calls   []fetchCall
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, headers, query map[string]string) ([]map[string]any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{url: url, headers: headers, query: query})
	f.mu.Unlock()
	if f.panics {
		panic("boom")
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.records, f.err
}

func quietLogger() logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}

func TestValidateFieldEmptiness(t *testing.T) {
	e := New(nil, WithLogger(quietLogger()))
	ctx := context.Background()

	for _, typ := range []string{"string", "number", "date", "remoteValidation", "bogus"} {
		for _, v := range []any{nil, ""} {
			assert.Equal(t, "Value is required", e.ValidateField(ctx, v, types.FieldDef{Type: typ, Mandatory: true}), "type %s value %#v", typ, v)
			assert.Empty(t, e.ValidateField(ctx, v, types.FieldDef{Type: typ}), "type %s value %#v", typ, v)
		}
	}
}

func TestValidateFieldTypes(t *testing.T) {
	e := New(nil, WithLogger(quietLogger()))

	tests := []struct {
		name  string
		value any
		def   types.FieldDef
		want  string
	}{
		{"string ok", "abc", types.FieldDef{Type: "string"}, ""},
		{"string wrong type", 12.0, types.FieldDef{Type: "string"}, "Value must be a string"},
		{"string too short", "a", types.FieldDef{Type: "string", LengthMin: intp(2)}, "Value must be at least 2 characters long"},
		{"string too long", "abcd", types.FieldDef{Type: "string", LengthMax: intp(3)}, "Value must be at most 3 characters long"},
		{"string length counts runes", "àè", types.FieldDef{Type: "string", LengthMax: intp(2)}, ""},
		{"remote type checks as string", 3.0, types.FieldDef{Type: "remoteValidation"}, "Value must be a string"},
		{"number ok", 5.0, types.FieldDef{Type: "number", Min: 1.0, Max: 10.0}, ""},
		{"integer from int", 5, types.FieldDef{Type: "integer"}, ""},
		{"float from json.Number", json.Number("2.5"), types.FieldDef{Type: "float"}, ""},
		{"number as string", "5", types.FieldDef{Type: "number"}, "Value must be a number"},
		{"number below min", 0.5, types.FieldDef{Type: "number", Min: 1}, "Value must be at least 1"},
		{"number above max", 11.0, types.FieldDef{Type: "float", Max: 10.5}, "Value must be at most 10.5"},
		{"number non numeric bound ignored", 11.0, types.FieldDef{Type: "number", Max: "ten"}, ""},
		{"unsupported", "x", types.FieldDef{Type: "boolean"}, "Unsupported type: boolean"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.ValidateField(context.Background(), tt.value, tt.def))
		})
	}
}

func TestValidateFieldDates(t *testing.T) {
	e := New(nil, WithLogger(quietLogger()))

	tests := []struct {
		name  string
		value any
		min   any
		max   any
		want  string
	}{
		{"valid", "15/06/2021", nil, nil, ""},
		{"no leading zeros", "1/2/2021", nil, nil, ""},
		{"impossible day", "31/02/2024", nil, nil, "Value must be a valid date"},
		{"garbage", "2021-06-15", nil, nil, "Value must be a valid date"},
		{"not a string", 20210615.0, nil, nil, "Value must be a valid date"},
		{"before min", "01/01/2020", "01/01/2021", nil, "Date must be on or after 01/01/2021"},
		{"inside range", "15/06/2021", "01/01/2021", "31/12/2021", ""},
		{"min inclusive", "01/01/2021", "01/01/2021", "31/12/2021", ""},
		{"max inclusive", "31/12/2021", "01/01/2021", "31/12/2021", ""},
		{"after max", "01/01/2022", nil, "31/12/2021", "Date must be on or before 31/12/2021"},
		{"unparsable bound ignored", "01/01/2020", "soon", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := types.FieldDef{Type: "date", Min: tt.min, Max: tt.max}
			assert.Equal(t, tt.want, e.ValidateField(context.Background(), tt.value, def))
		})
	}
}

func remoteDef() types.FieldDef {
	return types.FieldDef{
		Path:  "FORNITORE",
		Field: "piva",
		Type:  "remoteValidation",
		RemoteValidation: &types.RemoteValidation{
			URL:       `"https://lookup.example/suppliers"`,
			APIKey:    `'X-Api-Key'`,
			APISecret: `"s3cret"`,
			Key:       "vat",
			Params:    map[string]any{"country": `"IT"`, "limit": 10.0},
			Input:     map[string]any{"country": "'SM'"},
		},
	}
}

func TestValidateFieldRemote(t *testing.T) {
	t.Run("match", func(t *testing.T) {
		f := &fakeFetcher{records: []map[string]any{{"vat": "111"}, {"vat": "123"}}}
		e := New(f, WithLogger(quietLogger()))

		assert.Empty(t, e.ValidateField(context.Background(), "123", remoteDef()))
		require.Len(t, f.calls, 1)
		call := f.calls[0]
		assert.Equal(t, "https://lookup.example/suppliers", call.url)
		assert.Equal(t, map[string]string{"X-Api-Key": "s3cret"}, call.headers)
		assert.Equal(t, map[string]string{"country": "SM", "limit": "10"}, call.query)
	})

	t.Run("numeric record matches string value", func(t *testing.T) {
		f := &fakeFetcher{records: []map[string]any{{"vat": 123.0}}}
		e := New(f, WithLogger(quietLogger()))
		assert.Empty(t, e.ValidateField(context.Background(), "123", remoteDef()))
	})

	t.Run("no match", func(t *testing.T) {
		f := &fakeFetcher{records: []map[string]any{{"vat": "111"}, {"other": "123"}}}
		e := New(f, WithLogger(quietLogger()))
		assert.Equal(t, "Remote validation failed: value not found", e.ValidateField(context.Background(), "123", remoteDef()))
	})

	t.Run("fetch error", func(t *testing.T) {
		log, hook := test.NewNullLogger()
		f := &fakeFetcher{err: errors.New("connection refused")}
		e := New(f, WithLogger(log))

		assert.Equal(t, "Remote validation runtime error: connection refused", e.ValidateField(context.Background(), "123", remoteDef()))
		require.NotNil(t, hook.LastEntry())
		assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
		assert.Equal(t, "piva", hook.LastEntry().Data["field"])
	})

	t.Run("timeout", func(t *testing.T) {
		f := &fakeFetcher{block: true}
		e := New(f, WithLogger(quietLogger()), WithTimeout(20*time.Millisecond))
		msg := e.ValidateField(context.Background(), "123", remoteDef())
		assert.Contains(t, msg, "Remote validation runtime error: ")
		assert.Contains(t, msg, context.DeadlineExceeded.Error())
	})

	t.Run("no fetcher", func(t *testing.T) {
		e := New(nil, WithLogger(quietLogger()))
		assert.Contains(t, e.ValidateField(context.Background(), "123", remoteDef()), "Remote validation runtime error")
	})

	t.Run("skipped when base type check fails", func(t *testing.T) {
		f := &fakeFetcher{}
		e := New(f, WithLogger(quietLogger()))
		assert.Equal(t, "Value must be a string", e.ValidateField(context.Background(), 123.0, remoteDef()))
		assert.Empty(t, f.calls)
	})
}

func scenarioSchema() *schema.Index {
	return schema.New(&types.DocumentType{
		Groups: types.Groups{{
			Name:   "INFORMAZIONI",
			Fields: []types.FieldDef{{Field: "nome", Label: "Nome", Type: "string", Mandatory: true, LengthMin: intp(2)}},
		}},
	})
}

func TestValidateDocumentScenario(t *testing.T) {
	e := New(nil, WithLogger(quietLogger()))
	ix := scenarioSchema()

	ok := &types.Layer{Groups: map[string]types.Group{"INFORMAZIONI": {"nome": "Al"}}}
	assert.Empty(t, e.ValidateDocument(context.Background(), ok, ix))

	short := &types.Layer{Groups: map[string]types.Group{"INFORMAZIONI": {"nome": "A"}}}
	errs := e.ValidateDocument(context.Background(), short, ix)
	require.Len(t, errs, 1)
	assert.Equal(t, "nome", errs[0].Field.Field)
	assert.Equal(t, "INFORMAZIONI", errs[0].Field.Path)
	assert.Equal(t, "Nome", errs[0].Field.Label)
	assert.Equal(t, "A", errs[0].Field.Value)
	assert.True(t, errs[0].Field.Mandatory)
	assert.Equal(t, "Value must be at least 2 characters long", errs[0].Message)
}

func TestValidateDocumentKeepsDeclarationOrder(t *testing.T) {
	dt := &types.DocumentType{Groups: types.Groups{
		{Name: "B", Fields: []types.FieldDef{{Field: "z", Type: "string", Mandatory: true}, {Field: "y", Type: "number"}}},
		{Name: "A", Fields: []types.FieldDef{{Field: "x", Type: "date", Mandatory: true}, {Field: "w", Type: "string"}}},
	}}
	view := &types.Layer{Groups: map[string]types.Group{
		"B": {"y": "NaN"},
		"A": {"x": "yesterday", "w": "fine"},
	}}

	e := New(nil, WithLogger(quietLogger()), WithConcurrency(1))
	errs := e.ValidateDocument(context.Background(), view, schema.New(dt))

	var got []string
	for _, fe := range errs {
		got = append(got, fe.Field.Field+": "+fe.Message)
	}
	assert.Equal(t, []string{
		"z: Value is required",
		"y: Value must be a number",
		"x: Value must be a valid date",
	}, got)
}

func TestValidateDocumentIsolatesRemoteFailures(t *testing.T) {
	def := remoteDef()
	dt := &types.DocumentType{Groups: types.Groups{
		{Name: "FORNITORE", Fields: []types.FieldDef{def, {Field: "ragione", Type: "string", Mandatory: true}}},
	}}
	view := &types.Layer{Groups: map[string]types.Group{"FORNITORE": {"piva": "123", "ragione": "ACME"}}}

	e := New(&fakeFetcher{panics: true}, WithLogger(quietLogger()))
	errs := e.ValidateDocument(context.Background(), view, schema.New(dt))
	require.Len(t, errs, 1)
	assert.Equal(t, "piva", errs[0].Field.Field)
	assert.Contains(t, errs[0].Message, "boom")
}

func TestValidateDocumentBoundsConcurrency(t *testing.T) {
	var fields []types.FieldDef
	group := types.Group{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		def := remoteDef()
		def.Field = name
		fields = append(fields, def)
		group[name] = "123"
	}
	dt := &types.DocumentType{Groups: types.Groups{{Name: "FORNITORE", Fields: fields}}}
	view := &types.Layer{Groups: map[string]types.Group{"FORNITORE": group}}

	f := &countingFetcher{records: []map[string]any{{"vat": "123"}}}
	e := New(f, WithLogger(quietLogger()), WithConcurrency(2))
	assert.Empty(t, e.ValidateDocument(context.Background(), view, schema.New(dt)))
	assert.LessOrEqual(t, f.peak.Load(), int32(2))
	assert.Equal(t, int32(6), f.total.Load())
}

type countingFetcher struct {
	records []map[string]any
	active  atomic.Int32
	peak    atomic.Int32
	total   atomic.Int32
}

func (f *countingFetcher) Fetch(ctx context.Context, _ string, _, _ map[string]string) ([]map[string]any, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	f.total.Add(1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return f.records, nil
}
