package validate

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/docket/pkg/types"
)

var errNoFetcher = errors.New("no remote fetcher configured")

// checkRemote requires at least one record returned by the configured lookup
// whose Key field equals value. Every failure is returned as a message.
func (e *Engine) checkRemote(ctx context.Context, value any, def types.FieldDef) string {
	req := newLookup(def.RemoteValidation)
	log := e.log.WithFields(logrus.Fields{"field": def.Field, "url": req.url})

	if e.fetcher == nil {
		log.Warn(errNoFetcher)
		return fmt.Sprintf("Remote validation runtime error: %s", errNoFetcher)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	records, err := e.fetcher.Fetch(ctx, req.url, req.headers, req.query)
	if err != nil {
		log.WithError(err).Warn("remote validation lookup failed")
		return fmt.Sprintf("Remote validation runtime error: %s", err)
	}

	want := stringify(value)
	for _, rec := range records {
		got, ok := rec[req.key]
		if ok && got != nil && stringify(got) == want {
			return ""
		}
	}
	log.Debug("remote validation value not found")
	return "Remote validation failed: value not found"
}

// stringify renders a decoded JSON scalar the way it was written, so that
// 42 and "42" compare equal.
func stringify(v any) string {
	if f, ok := toFloat(v); ok {
		return formatFloat(f)
	}
	return fmt.Sprint(v)
}
