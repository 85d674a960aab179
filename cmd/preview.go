package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/sells-group/marketarea-cli/internal/importer"
	"github.com/sells-group/marketarea-cli/internal/workbook"
)

var previewSheet string

var previewCmd = &cobra.Command{
	Use:   "preview <file>",
	Short: "Parse a spreadsheet and print the normalized market areas as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("preview"); err != nil {
			return err
		}

		coord := importer.New(nil, nil,
			importer.WithSheetOptions(sheetOptions(cfg.Import)),
			importer.WithWorkbookOptions(workbook.Options{SheetName: previewSheet}),
		)
		p, err := coord.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	},
}

func init() {
	previewCmd.Flags().StringVar(&previewSheet, "sheet", "", "worksheet name (default first sheet)")
	rootCmd.AddCommand(previewCmd)
}
