package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/pagemark/internal/engine/pdfium"
)

var infoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Print page and form metadata for a PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
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

		ctx := context.Background()
		doc, err := eng.Load(ctx, data)
		if err != nil {
			return err
		}
		defer doc.Close()

		fmt.Printf("File:   %s\n", path)
		fmt.Printf("Pages:  %d\n", doc.PageCount())
		for n := 1; n <= doc.PageCount(); n++ {
			w, h, err := doc.PageSize(n)
			if err != nil {
				return err
			}
			rot, err := doc.Rotation(n)
			if err != nil {
				return err
			}
			line := fmt.Sprintf("Page %d: %.0f × %.0f pt", n, w, h)
			if rot != 0 {
				line += fmt.Sprintf(", rotated %d°", rot)
			}
			fmt.Println(line)
		}

		fields, err := doc.FieldNames()
		if err != nil {
			return err
		}
		fmt.Printf("Form fields: %d\n", len(fields))
		for _, name := range fields {
			fmt.Printf("  %s\n", name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
