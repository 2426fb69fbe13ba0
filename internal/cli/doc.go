// This file implements the doc command group.
package cli

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/docket/internal/service"
	"github.com/mesh-intelligence/docket/pkg/types"
)

func newDocCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doc",
		Short: "Review, correct and confirm documents",
	}
	cmd.AddCommand(
		newDocCreateCmd(f),
		newDocGetCmd(f),
		newDocListCmd(f),
		newDocCountCmd(f),
		newDocUpdateCmd(f),
		newDocDeleteCmd(f),
		newDocValidateCmd(f),
		newDocConfirmCmd(f),
		newDocDatasetCmd(f),
	)
	return cmd
}

func newDocCreateCmd(f *rootFlags) *cobra.Command {
	var typeID, name, reference, resultFile, debugFile string
	cmd := &cobra.Command{
		Use:   "create --type <type-id> --result <file.json>",
		Short: "Store an extracted document",
		Long: `Create stores the extraction result of a document as its base layer.
The document starts UPLOADED with no corrections.

Example:
  docket doc create --type 0190... --name invoice-17.pdf --result out.json --debug ocr.txt`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if typeID == "" {
				return usagef("--type is required")
			}
			doc := &types.Document{TypeID: typeID, Name: name, Reference: reference}
			if resultFile != "" {
				doc.Result = &types.Layer{}
				if err := decodeInput("@"+resultFile, doc.Result); err != nil {
					return err
				}
			}
			if debugFile != "" {
				data, err := readInput("@" + debugFile)
				if err != nil {
					return err
				}
				doc.Debug = string(data)
			}
			return withSession(cmd, f, func(s *session) error {
				created, err := s.svc.Create(doc)
				if err != nil {
					return err
				}
				p := newPrinter(cmd, f)
				if p.jsonMode {
					return p.printJSON(created)
				}
				fmt.Fprintln(p.w, created.DocumentID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&typeID, "type", "", "document type id")
	cmd.Flags().StringVar(&name, "name", "", "document name")
	cmd.Flags().StringVar(&reference, "reference", "", "external reference")
	cmd.Flags().StringVar(&resultFile, "result", "", "JSON file holding the extraction result")
	cmd.Flags().StringVar(&debugFile, "debug", "", "file holding the raw extraction input text")
	return cmd
}

func newDocGetCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <doc-id>",
		Short: "Show a document with corrections applied",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, f, func(s *session) error {
				doc, err := s.svc.Get(args[0])
				if err != nil {
					return err
				}
				return newPrinter(cmd, f).printJSON(doc)
			})
		},
	}
}

func newDocListCmd(f *rootFlags) *cobra.Command {
	var opts service.ListOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents",
		Long: `List pages through live documents, newest uploads first.

Example:
  docket doc list --status PROCESSED --status ERROR --q "acme 2024" --page 2`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, f, func(s *session) error {
				page, err := s.svc.List(opts)
				if err != nil {
					return err
				}
				p := newPrinter(cmd, f)
				if p.jsonMode {
					return p.printJSON(page)
				}
				rows := make([][]string, 0, len(page.Content))
				for _, d := range page.Content {
					rows = append(rows, []string{
						d.DocumentID, d.TypeID, d.Status, emptyDash(d.Name), d.UploadedAt.Format(time.DateTime),
					})
				}
				if err := p.table([]string{"ID", "TYPE", "STATUS", "NAME", "UPLOADED"}, rows); err != nil {
					return err
				}
				fmt.Fprintf(p.w, "\n%d documents, page %d of %d\n", page.TotalItems, max(opts.Page, service.DefaultPage), page.TotalPages)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.TypeID, "type", "", "only documents of this type")
	cmd.Flags().StringSliceVar(&opts.Statuses, "status", nil, "only documents with this status (repeatable)")
	cmd.Flags().StringVar(&opts.Query, "q", "", "search tokens; all must match name or content")
	cmd.Flags().StringVar(&opts.Sort, "sort", "", "sort column: uploaded_at, updated_at, name or status")
	cmd.Flags().StringVar(&opts.Order, "order", "", "asc or desc")
	cmd.Flags().IntVar(&opts.Page, "page", service.DefaultPage, "page number, starting at 1")
	cmd.Flags().IntVar(&opts.Limit, "limit", service.DefaultLimit, "documents per page")
	return cmd
}

func newDocCountCmd(f *rootFlags) *cobra.Command {
	var typeID string
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count documents per status",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, f, func(s *session) error {
				counts, err := s.svc.Count(typeID)
				if err != nil {
					return err
				}
				p := newPrinter(cmd, f)
				if p.jsonMode {
					return p.printJSON(counts)
				}
				statuses := make([]string, 0, len(counts))
				for status := range counts {
					statuses = append(statuses, status)
				}
				sort.Strings(statuses)
				rows := make([][]string, 0, len(statuses))
				for _, status := range statuses {
					rows = append(rows, []string{status, strconv.Itoa(counts[status])})
				}
				return p.table([]string{"STATUS", "COUNT"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&typeID, "type", "", "only documents of this type")
	return cmd
}

func newDocUpdateCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "update <doc-id> <patch-json|@file>",
		Short: "Correct field values",
		Long: `Update validates every field of the patch and records the corrections.
Nothing is recorded when any field fails.

Example:
  docket doc update 0190... '{"header":{"invoice_date":"01/02/2024"}}'`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch types.Layer
			if err := decodeInput(args[1], &patch); err != nil {
				return err
			}
			return withSession(cmd, f, func(s *session) error {
				p := newPrinter(cmd, f)
				doc, err := s.svc.Update(cmd.Context(), args[0], &patch)
				if err != nil {
					return reportFailure(p, err)
				}
				return p.printJSON(doc)
			})
		},
	}
}

func newDocDeleteCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <doc-id>",
		Short: "Delete a document",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, f, func(s *session) error {
				if err := s.svc.Delete(args[0]); err != nil {
					return err
				}
				p := newPrinter(cmd, f)
				if p.jsonMode {
					return p.printJSON(map[string]string{"id": args[0], "status": "deleted"})
				}
				fmt.Fprintf(p.w, "deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func newDocValidateCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <doc-id>",
		Short: "Validate a document against its type",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, f, func(s *session) error {
				failed, err := s.svc.Validate(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := newPrinter(cmd, f).report(failed); err != nil {
					return err
				}
				if len(failed) > 0 {
					return &types.ValidationError{Errors: failed}
				}
				return nil
			})
		},
	}
}

func newDocConfirmCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <doc-id>",
		Short: "Validate a document and mark it CONFIRMED",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, f, func(s *session) error {
				p := newPrinter(cmd, f)
				doc, err := s.svc.Confirm(cmd.Context(), args[0])
				if err != nil {
					return reportFailure(p, err)
				}
				if p.jsonMode {
					return p.printJSON(doc)
				}
				fmt.Fprintf(p.w, "%s %s\n", doc.DocumentID, doc.Status)
				return nil
			})
		},
	}
}

func newDocDatasetCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "dataset [doc-id]",
		Short: "Export training pairs of confirmed documents",
		Long: `Dataset prints the raw extraction input next to the corrected content.
Without an id every CONFIRMED document is exported.`,
		Args: rangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, f, func(s *session) error {
				p := newPrinter(cmd, f)
				if len(args) == 1 {
					entry, err := s.svc.Dataset(args[0])
					if err != nil {
						return err
					}
					return p.printJSON(entry)
				}
				entries, err := s.svc.Datasets()
				if err != nil {
					return err
				}
				return p.printJSON(entries)
			})
		},
	}
}

// reportFailure prints the failing fields of a validation error and
// returns err unchanged.
func reportFailure(p *printer, err error) error {
	var verr *types.ValidationError
	if errors.As(err, &verr) {
		if rerr := p.report(verr.Errors); rerr != nil {
			return rerr
		}
	}
	return err
}
