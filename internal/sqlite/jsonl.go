// This file implements JSONL persistence: reading records and rewriting
// a file atomically.
package sqlite

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// maxLine bounds one JSONL record. Documents carry whole extraction results.
const maxLine = 64 << 20

// jsonlFile is a file holding one JSON record per line.
type jsonlFile string

// records returns every well-formed, non-empty line. A missing file holds
// no records.
func (f jsonlFile) records() ([]json.RawMessage, error) {
	fh, err := os.Open(string(f))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f, err)
	}
	defer fh.Close()

	var out []json.RawMessage
	sc := bufio.NewScanner(fh)
	sc.Buffer(make([]byte, 0, 64<<10), maxLine)
	for sc.Scan() {
		if line := sc.Bytes(); len(line) > 0 && json.Valid(line) {
			out = append(out, append(json.RawMessage(nil), line...))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", f, err)
	}
	return out, nil
}

// replace swaps the file contents for records. The new contents are
// written to a sibling temp file, synced and renamed over f, so readers
// see either the old or the new file.
func (f jsonlFile) replace(records []json.RawMessage) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(string(f)), ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		w.Write(rec)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing %s: %w", f, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), string(f)); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// touch creates f empty unless it already exists.
func (f jsonlFile) touch() error {
	fh, err := os.OpenFile(string(f), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("creating %s: %w", f, err)
	}
	return fh.Close()
}

// writeValues encodes each value as one line and replaces f with them.
func writeValues[T any](f jsonlFile, values []T) error {
	records := make([]json.RawMessage, 0, len(values))
	for _, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding record for %s: %w", filepath.Base(string(f)), err)
		}
		records = append(records, data)
	}
	return f.replace(records)
}
