// This file implements the row command group for table corrections.
package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newRowCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "row",
		Short: "Correct the rows of a document table",
	}
	cmd.AddCommand(newRowAddCmd(f), newRowEditCmd(f), newRowDeleteCmd(f))
	return cmd
}

func newRowAddCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "add <doc-id> [row-json|@file]",
		Short: "Append a row",
		Long: `Add appends a row to the document table. The row id is assigned; any
id in the payload is ignored. Without a payload the row starts with every
known column empty.`,
		Args: rangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload map[string]any
			if len(args) == 2 {
				if err := decodeInput(args[1], &payload); err != nil {
					return err
				}
			}
			return withSession(cmd, f, func(s *session) error {
				row, err := s.svc.AddRow(args[0], payload)
				if err != nil {
					return err
				}
				return newPrinter(cmd, f).printJSON(row)
			})
		},
	}
}

func newRowEditCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <doc-id> <row-id> <row-json|@file>",
		Short: "Correct the cells of a row",
		Args:  exactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rowID, err := parseRowID(args[1])
			if err != nil {
				return err
			}
			var payload map[string]any
			if err := decodeInput(args[2], &payload); err != nil {
				return err
			}
			return withSession(cmd, f, func(s *session) error {
				row, err := s.svc.EditRow(args[0], rowID, payload)
				if err != nil {
					return err
				}
				return newPrinter(cmd, f).printJSON(row)
			})
		},
	}
}

func newRowDeleteCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <doc-id> <row-id>",
		Short: "Delete a row",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rowID, err := parseRowID(args[1])
			if err != nil {
				return err
			}
			return withSession(cmd, f, func(s *session) error {
				if err := s.svc.DeleteRow(args[0], rowID); err != nil {
					return err
				}
				p := newPrinter(cmd, f)
				if p.jsonMode {
					return p.printJSON(map[string]any{"id": rowID, "status": "deleted"})
				}
				fmt.Fprintf(p.w, "deleted row %d\n", rowID)
				return nil
			})
		},
	}
}

func parseRowID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id < 1 {
		return 0, usagef("invalid row id %q", s)
	}
	return id, nil
}
