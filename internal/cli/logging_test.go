// Tests for logger construction.
package cli

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := newLogger(&buf, "info", "json")
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())

	log.WithField("doc_id", "d1").Info("document updated")
	assert.Contains(t, buf.String(), `"doc_id":"d1"`)

	log.Debug("hidden")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNewLoggerRejectsBadSettings(t *testing.T) {
	_, err := newLogger(&bytes.Buffer{}, "loud", "text")
	assert.Error(t, err)

	_, err = newLogger(&bytes.Buffer{}, "warn", "xml")
	assert.Error(t, err)
}
