// This file implements the type command group.
package cli

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/docket/internal/schema"
	"github.com/mesh-intelligence/docket/pkg/types"
)

func newTypeCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "type",
		Short: "Manage document types",
	}
	cmd.AddCommand(newTypePutCmd(f), newTypeGetCmd(f), newTypeListCmd(f))
	return cmd
}

func newTypePutCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "put <file.yaml|file.json>",
		Short: "Create or replace a document type from a schema file",
		Long: `Put reads a document type from a YAML or JSON file and stores it.
A file carrying an id replaces that type; otherwise a new type is created.

Groups are kept in file order, which is also the order validation reports
failing fields in.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dt, err := readDocumentType(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, f, func(s *session) error {
				id, err := s.svc.PutType(dt)
				if err != nil {
					return err
				}
				p := newPrinter(cmd, f)
				if p.jsonMode {
					return p.printJSON(map[string]string{"id": id})
				}
				fmt.Fprintln(p.w, id)
				return nil
			})
		},
	}
}

func newTypeGetCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <type-id>",
		Short: "Show a document type",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, f, func(s *session) error {
				dt, err := s.svc.GetType(args[0])
				if err != nil {
					return err
				}
				p := newPrinter(cmd, f)
				if p.jsonMode {
					return p.printJSON(dt)
				}
				return printTypeFields(p, dt)
			})
		},
	}
}

func newTypeListCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List document types",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, f, func(s *session) error {
				dts, err := s.svc.ListTypes()
				if err != nil {
					return err
				}
				p := newPrinter(cmd, f)
				if p.jsonMode {
					return p.printJSON(dts)
				}
				rows := make([][]string, 0, len(dts))
				for _, dt := range dts {
					rows = append(rows, []string{
						dt.TypeID, dt.Name, emptyDash(dt.Version), strconv.Itoa(len(dt.Groups)),
					})
				}
				return p.table([]string{"ID", "NAME", "VERSION", "GROUPS"}, rows)
			})
		},
	}
}

// readDocumentType decodes a schema file, choosing the format by extension.
func readDocumentType(name string) (*types.DocumentType, error) {
	data, err := readInput("@" + name)
	if err != nil {
		return nil, err
	}
	var dt types.DocumentType
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &dt); err != nil {
			return nil, usagef("invalid YAML in %s: %w", name, err)
		}
	default:
		if err := decodeInput("@"+name, &dt); err != nil {
			return nil, err
		}
	}
	return &dt, nil
}

// printTypeFields lists every resolved field of dt in declaration order.
func printTypeFields(p *printer, dt *types.DocumentType) error {
	fmt.Fprintf(p.w, "%s  %s %s\n\n", dt.TypeID, dt.Name, dt.Version)
	var rows [][]string
	for _, def := range schema.New(dt).Fields() {
		mandatory := ""
		if def.Mandatory {
			mandatory = "yes"
		}
		remote := ""
		if def.RemoteValidation != nil {
			remote = def.RemoteValidation.URL
		}
		rows = append(rows, []string{def.Path, def.Field, def.Type, emptyDash(mandatory), emptyDash(remote)})
	}
	return p.table([]string{"GROUP", "FIELD", "TYPE", "MANDATORY", "REMOTE"}, rows)
}
