// Package validate checks document field values against their schema
// definitions. Checks are local except for fields configured with a remote
// lookup, which go through a Fetcher.
package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"github.com/mesh-intelligence/docket/internal/schema"
	"github.com/mesh-intelligence/docket/pkg/types"
)

// DateLayout is the day/month/year layout of date field values and bounds.
const DateLayout = "2/1/2006"

// Defaults used when no option overrides them.
const (
	DefaultTimeout     = 10 * time.Second
	DefaultConcurrency = 8
)

// Fetcher retrieves the record set a remote validation matches against.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers, query map[string]string) ([]map[string]any, error)
}

// Engine validates fields and documents. An Engine holds no per-call state
// and is safe for concurrent use.
type Engine struct {
	fetcher     Fetcher
	timeout     time.Duration
	concurrency int
	log         logrus.FieldLogger
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout bounds each remote lookup.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithConcurrency bounds the number of fields validated at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithLogger sets the logger receiving remote lookup failures.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// New creates an Engine. fetcher may be nil when no document type uses
// remote validation; a remote check then fails with a runtime error.
func New(fetcher Fetcher, opts ...Option) *Engine {
	e := &Engine{
		fetcher:     fetcher,
		timeout:     DefaultTimeout,
		concurrency: DefaultConcurrency,
		log:         logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ValidateField checks value against def and returns the failure message,
// or "" when the value is acceptable.
func (e *Engine) ValidateField(ctx context.Context, value any, def types.FieldDef) string {
	if isEmpty(value) {
		if def.Mandatory {
			return "Value is required"
		}
		return ""
	}

	var msg string
	switch def.Type {
	case types.FieldTypeString, types.FieldTypeRemoteValidation:
		msg = checkString(value, def)
	case types.FieldTypeNumber, types.FieldTypeInteger, types.FieldTypeFloat:
		msg = checkNumber(value, def)
	case types.FieldTypeDate:
		msg = checkDate(value, def)
	default:
		return fmt.Sprintf("Unsupported type: %s", def.Type)
	}
	if msg != "" {
		return msg
	}

	if def.RemoteValidation != nil {
		return e.checkRemote(ctx, value, def)
	}
	return ""
}

// ValidateDocument validates every schema field of view and returns the
// failing ones in schema declaration order. Fields are checked concurrently;
// a failure or panic in one field never affects the others.
func (e *Engine) ValidateDocument(ctx context.Context, view *types.Layer, ix *schema.Index) []types.FieldError {
	entries := ix.Flatten(view)
	messages := make([]string, len(entries))

	p := pool.New().WithMaxGoroutines(e.concurrency)
	for i, entry := range entries {
		p.Go(func() {
			defer func() {
				if r := recover(); r != nil {
					messages[i] = fmt.Sprintf("Validation runtime error: %v", r)
				}
			}()
			messages[i] = e.ValidateField(ctx, entry.Value, entry.Def)
		})
	}
	p.Wait()

	var failed []types.FieldError
	for i, msg := range messages {
		if msg == "" {
			continue
		}
		failed = append(failed, types.FieldError{
			Field:   types.Summarize(entries[i].Def, entries[i].Value),
			Message: msg,
		})
	}
	return failed
}

func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	s, ok := value.(string)
	return ok && s == ""
}

func checkString(value any, def types.FieldDef) string {
	s, ok := value.(string)
	if !ok {
		return "Value must be a string"
	}
	n := utf8.RuneCountInString(s)
	if def.LengthMin != nil && n < *def.LengthMin {
		return fmt.Sprintf("Value must be at least %d characters long", *def.LengthMin)
	}
	if def.LengthMax != nil && n > *def.LengthMax {
		return fmt.Sprintf("Value must be at most %d characters long", *def.LengthMax)
	}
	return ""
}

func checkNumber(value any, def types.FieldDef) string {
	v, ok := toFloat(value)
	if !ok {
		return "Value must be a number"
	}
	if lo, ok := toFloat(def.Min); ok && v < lo {
		return fmt.Sprintf("Value must be at least %s", formatFloat(lo))
	}
	if hi, ok := toFloat(def.Max); ok && v > hi {
		return fmt.Sprintf("Value must be at most %s", formatFloat(hi))
	}
	return ""
}

func checkDate(value any, def types.FieldDef) string {
	s, ok := value.(string)
	if !ok {
		return "Value must be a valid date"
	}
	date, err := time.Parse(DateLayout, s)
	if err != nil {
		return "Value must be a valid date"
	}
	if lo, ok := parseBound(def.Min); ok && date.Before(lo) {
		return fmt.Sprintf("Date must be on or after %v", def.Min)
	}
	if hi, ok := parseBound(def.Max); ok && date.After(hi) {
		return fmt.Sprintf("Date must be on or before %v", def.Max)
	}
	return ""
}

// parseBound reads a date bound. Missing or unparsable bounds are ignored.
func parseBound(raw any) (time.Time, bool) {
	s, ok := raw.(string)
	if !ok || s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// toFloat accepts the numeric shapes produced by JSON and YAML decoding.
// Strings are not numbers.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
