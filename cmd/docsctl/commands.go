package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/kirillkom/docs-manager/internal/core/domain"
	"github.com/kirillkom/docs-manager/internal/core/filing"
	"github.com/kirillkom/docs-manager/internal/core/ports"
)

type textReader interface {
	Read(ctx context.Context, path, mimeType string) (string, domain.ClassifiedDocument, bool)
}

type workbookWriter interface {
	Write(ctx context.Context, w io.Writer) (int, error)
}

type services struct {
	text     textReader
	policy   filing.Policy
	importer ports.DocumentImporter
	library  ports.DocumentLibrary
	exporter workbookWriter
}

type openFunc func(ctx context.Context) (*services, func(), error)

func newRootCmd(open openFunc) *cobra.Command {
	root := &cobra.Command{
		Use:          "docsctl",
		Short:        "Classify, file and browse scanned personal documents",
		SilenceUsage: true,
	}
	root.AddCommand(
		newClassifyCmd(open),
		newImportCmd(open),
		newListCmd(open),
		newRenameCmd(open),
		newDeleteCmd(open),
		newExportCmd(open),
	)
	return root
}

// withServices opens the application for one command and closes it after.
func withServices(cmd *cobra.Command, open openFunc, run func(ctx context.Context, svc *services) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}
	return run(ctx, svc)
}

func newClassifyCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <file>",
		Short: "Recognize a scan and print its classification and filing target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, open, func(ctx context.Context, svc *services) error {
				mimeType, err := detectMimeType(args[0])
				if err != nil {
					return err
				}
				text, classified, recognized := svc.text.Read(ctx, args[0], mimeType)
				target := svc.policy.ComputeTarget(classified, time.Now().UnixMilli(), mimeType)
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"mime_type":       mimeType,
					"recognized":      recognized,
					"normalized_text": text,
					"classified":      classified,
					"target":          target,
				})
			})
		},
	}
}

func newImportCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "File a scan or PDF into the documents tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, open, func(ctx context.Context, svc *services) error {
				mimeType, err := detectMimeType(args[0])
				if err != nil {
					return err
				}
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open %s: %w", args[0], err)
				}
				defer f.Close()

				doc, err := svc.importer.Import(ctx, filepath.Base(args[0]), mimeType, f)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), doc)
			})
		},
	}
}

func newListCmd(open openFunc) *cobra.Command {
	var query, tag string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List filed documents, latest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			libraryTag, ok := domain.ParseLibraryTag(tag)
			if !ok {
				return fmt.Errorf("unknown tag %q: use all, id, bills or others", tag)
			}
			return withServices(cmd, open, func(ctx context.Context, svc *services) error {
				docs, err := svc.library.List(ctx, domain.LibraryFilter{Query: query, Tag: libraryTag})
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TYPE\tPATH\tSIZE\tMODIFIED")
				for _, doc := range docs {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", doc.Type, doc.Path, doc.Size, doc.ModifiedAt.Local().Format(time.DateTime))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVarP(&query, "q", "q", "", "match file or folder name")
	cmd.Flags().StringVar(&tag, "tag", "all", "all, id, bills or others")
	return cmd
}

func newRenameCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <path> <new-name>",
		Short: "Rename a filed document inside its folder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, open, func(ctx context.Context, svc *services) error {
				doc, err := svc.library.Rename(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), doc.Path)
				return nil
			})
		},
	}
}

func newDeleteCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <path>...",
		Short: "Delete filed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, open, func(ctx context.Context, svc *services) error {
				if err := svc.library.Delete(ctx, args); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d document(s)\n", len(args))
				return nil
			})
		},
	}
}

func newExportCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "export <out.xlsx>",
		Short: "Write the document catalog to an XLSX workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, open, func(ctx context.Context, svc *services) error {
				f, err := os.Create(args[0])
				if err != nil {
					return fmt.Errorf("create %s: %w", args[0], err)
				}
				rows, err := svc.exporter.Write(ctx, f)
				if closeErr := f.Close(); err == nil {
					err = closeErr
				}
				if err != nil {
					_ = os.Remove(args[0])
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d document(s) to %s\n", rows, args[0])
				return nil
			})
		},
	}
}

func detectMimeType(path string) (string, error) {
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("detect type of %s: %w", path, err)
	}
	return mime.String(), nil
}

func printJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
