// This file implements the text and JSON printers shared by the commands.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	json "github.com/goccy/go-json"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/docket/pkg/types"
)

// printer renders command output as JSON or as human-readable text.
type printer struct {
	w        io.Writer
	jsonMode bool
	bad      *color.Color
	good     *color.Color
	dim      *color.Color
}

func newPrinter(cmd *cobra.Command, f *rootFlags) *printer {
	w := cmd.OutOrStdout()
	p := &printer{
		w:        w,
		jsonMode: f.jsonMode,
		bad:      color.New(color.FgRed, color.Bold),
		good:     color.New(color.FgGreen),
		dim:      color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.bad, p.good, p.dim} {
		if useColor(w) {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// useColor reports whether w is a terminal.
func useColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// printJSON writes v as indented JSON.
func (p *printer) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(p.w, string(data))
	return err
}

// table writes rows under header as aligned columns.
func (p *printer) table(header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}

// report writes a validation result. An empty list reports success.
func (p *printer) report(errs []types.FieldError) error {
	if p.jsonMode {
		if errs == nil {
			errs = []types.FieldError{}
		}
		return p.printJSON(errs)
	}
	if len(errs) == 0 {
		p.good.Fprintln(p.w, "valid")
		return nil
	}
	for _, fe := range errs {
		name := fe.Field.Path + "." + fe.Field.Field
		if fe.Field.Label != "" {
			name += " (" + fe.Field.Label + ")"
		}
		p.bad.Fprint(p.w, "✗ ")
		fmt.Fprintf(p.w, "%s: %s", name, fe.Message)
		p.dim.Fprintf(p.w, " [value: %v]\n", fe.Field.Value)
	}
	return nil
}

// readInput returns arg itself, or the contents of the named file when arg
// starts with "@".
func readInput(arg string) ([]byte, error) {
	if name, ok := strings.CutPrefix(arg, "@"); ok {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, usagef("read %s: %w", name, err)
		}
		return data, nil
	}
	return []byte(arg), nil
}

// decodeInput decodes a JSON argument (or @file) into v.
func decodeInput(arg string, v any) error {
	data, err := readInput(arg)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return usagef("invalid JSON: %w", err)
	}
	return nil
}

// emptyDash renders an empty cell.
func emptyDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
