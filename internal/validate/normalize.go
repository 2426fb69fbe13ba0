package validate

import (
	"fmt"

	"github.com/mesh-intelligence/docket/pkg/types"
)

// lookup is a remote validation request with configuration entry mistakes
// cleaned away.
type lookup struct {
	url     string
	key     string
	headers map[string]string
	query   map[string]string
}

// newLookup strips wrapping quotes from every scalar of rv. Input entries
// override params entries of the same name.
func newLookup(rv *types.RemoteValidation) lookup {
	req := lookup{
		url:   StripQuotes(rv.URL),
		key:   StripQuotes(rv.Key),
		query: make(map[string]string, len(rv.Params)+len(rv.Input)),
	}
	if name := StripQuotes(rv.APIKey); name != "" {
		req.headers = map[string]string{name: StripQuotes(rv.APISecret)}
	}
	for _, src := range []map[string]any{rv.Params, rv.Input} {
		for k, v := range src {
			req.query[k] = StripQuotes(scalar(v))
		}
	}
	return req
}

// StripQuotes removes one pair of matching single or double quotes wrapping s.
func StripQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	}
	if f, ok := toFloat(v); ok {
		return formatFloat(f)
	}
	return fmt.Sprint(v)
}
