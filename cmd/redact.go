package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/pagemark/internal/editor"
	"github.com/fakeyudi/pagemark/internal/engine/pdfium"
)

// stdioSinks satisfies the editor's outward surfaces for headless
// commands: statuses go to stdout, errors to stderr, controls are
// ignored and confirmations answer yes.
type stdioSinks struct{}

func (stdioSinks) Enable(...string)    {}
func (stdioSinks) Disable(...string)   {}
func (stdioSinks) Status(text string)  { fmt.Println(text) }
func (stdioSinks) Banner(string)       {}
func (stdioSinks) Error(msg string)    { fmt.Fprintln(os.Stderr, msg) }
func (stdioSinks) Confirm(string) bool { return true }

var (
	redactTerm string
	redactOut  string
)

var redactCmd = &cobra.Command{
	Use:   "redact <file>",
	Short: "Black out every occurrence of a text string",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if redactTerm == "" {
			return fmt.Errorf("--text is required")
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("file not found: %s", path)
			}
			return err
		}

		eng, err := pdfium.New()
		if err != nil {
			return err
		}
		defer eng.Close()

		ed := editor.New(editor.Config{
			Engine:     eng,
			Rasterizer: eng,
			Extractor:  eng,
			Controls:   stdioSinks{},
			Status:     stdioSinks{},
			Dialogs:    stdioSinks{},
			UndoBound:  cfg.UndoBound,
			ThumbWidth: cfg.ThumbnailWidth,
		})

		ctx := context.Background()
		if _, err := ed.Open(ctx, data, filepath.Base(path)); err != nil {
			return err
		}

		n, err := ed.SearchRedact(ctx, redactTerm)
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Printf("No occurrences of %q found; nothing written\n", redactTerm)
			return nil
		}
		if err := ed.ApplyRedactions(ctx); err != nil {
			return err
		}

		out := redactOut
		if out == "" {
			out = filepath.Join(cfg.OutputDir, redactedName(path))
		}
		bytes, _, err := ed.ActiveBytes()
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, bytes, 0o644); err != nil {
			return err
		}
		fmt.Printf("Redacted %d occurrence(s) of %q → %s\n", n, redactTerm, out)
		return nil
	},
}

// redactedName derives the default output filename:
// contract.pdf → contract-redacted.pdf
func redactedName(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "-redacted" + ext
}

func init() {
	redactCmd.Flags().StringVar(&redactTerm, "text", "", "text to search for and redact (required)")
	redactCmd.Flags().StringVarP(&redactOut, "output", "o", "", "output file (default: <name>-redacted.pdf in the output dir)")
	rootCmd.AddCommand(redactCmd)
}
