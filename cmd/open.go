package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/pagemark/internal/editor"
	"github.com/fakeyudi/pagemark/internal/engine/pdfium"
	"github.com/fakeyudi/pagemark/internal/recent"
	"github.com/fakeyudi/pagemark/internal/tui"
	"github.com/fakeyudi/pagemark/internal/watch"
)

var (
	plainOutput bool
	openZoom    float64
)

var openCmd = &cobra.Command{
	Use:   "open <file>...",
	Short: "Open PDF documents in the workspace",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			if _, err := os.Stat(path); err != nil {
				if os.IsNotExist(err) {
					return fmt.Errorf("file not found: %s", path)
				}
				return err
			}
		}

		eng, err := pdfium.New()
		if err != nil {
			return err
		}
		defer eng.Close()

		sinks := tui.NewSinks()
		ed := editor.New(editor.Config{
			Engine:     eng,
			Rasterizer: eng,
			Extractor:  eng,
			Controls:   sinks,
			Status:     sinks,
			Dialogs:    sinks,
			UndoBound:  cfg.UndoBound,
			ThumbWidth: cfg.ThumbnailWidth,
		})

		watcher, err := watch.New(watch.DefaultDebounce)
		if err != nil {
			return err
		}
		store, err := recent.NewStore(cfg.RecentFilesCap)
		if err != nil {
			return err
		}

		ctx := context.Background()
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if _, err := ed.Open(ctx, data, filepath.Base(path)); err != nil {
				return fmt.Errorf("opening %s: %w", path, err)
			}
			if _, err := store.Add(path); err != nil {
				// A broken recent list must not keep documents from opening.
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			}
			if err := watcher.Add(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			}
		}

		zoom := cfg.DefaultZoom
		if cmd.Flags().Changed("zoom") {
			zoom = openZoom
		}
		ed.SetZoom(zoom)

		if plainOutput || !term.IsTerminal(os.Stdout.Fd()) {
			printWorkspace(ed)
			return nil
		}

		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go watcher.Run(watchCtx)

		return tui.Run(ed, sinks, watcher)
	},
}

// printWorkspace writes a plain-text summary of every open document to
// stdout.
func printWorkspace(ed *editor.Editor) {
	for _, s := range ed.Workspace().Sessions() {
		fmt.Printf("## %s\n", s.Name)
		fmt.Printf("  Pages:  %d\n", s.PageCount())
		for n := 1; n <= s.PageCount(); n++ {
			d := s.PageSize(n)
			fmt.Printf("  Page %d: %.0f × %.0f pt\n", n, d.W, d.H)
		}
		fmt.Println()
	}
}

func init() {
	openCmd.Flags().BoolVar(&plainOutput, "plain", false, "print a document summary instead of starting the viewer")
	openCmd.Flags().Float64Var(&openZoom, "zoom", 1.0, "initial zoom factor, clamped to [0.25, 4.0]")
	rootCmd.AddCommand(openCmd)
}
