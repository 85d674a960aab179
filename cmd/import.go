package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/marketarea-cli/internal/importer"
	"github.com/sells-group/marketarea-cli/internal/model"
)

var (
	importProject   string
	importYes       bool
	importGeoJSON   string
	importShapefile string
	importSheet     string
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import market areas from a spreadsheet into a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		project, err := projectID(importProject)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "import")
		if err != nil {
			return err
		}
		defer env.Close()

		var confirmer importer.Confirmer = importer.ApproveAll
		if !importYes {
			confirmer = promptConfirmer(cmd.InOrStdin(), cmd.OutOrStdout())
		}

		result, err := env.Coordinator.Run(ctx, args[0], project, confirmer)
		if result != nil {
			printResult(cmd.OutOrStdout(), result)
		}
		if eris.Is(err, importer.ErrCancelled) {
			fmt.Fprintln(cmd.OutOrStdout(), "import cancelled")
			return nil
		}
		if err != nil {
			return err
		}

		if err := exportCanvas(env); err != nil {
			return err
		}

		zap.L().Info("import complete",
			zap.String("file", args[0]),
			zap.String("project", project),
			zap.Int("imported", result.ImportedCount),
			zap.Int("errors", len(result.Errors)),
		)
		return nil
	},
}

// promptConfirmer lists the previewed drafts and asks for a y/N answer.
func promptConfirmer(in io.Reader, out io.Writer) importer.Confirmer {
	return importer.ConfirmFunc(func(ctx context.Context, p *importer.Preview) ([]*model.MarketAreaDraft, error) {
		fmt.Fprintf(out, "%s (%s format): %d market areas\n", p.Source, p.Format, len(p.Drafts))
		for i, d := range p.Drafts {
			fmt.Fprintf(out, "  %2d. %-30s %-10s %d entries\n", i+1, d.Name, d.Type, entryCount(d))
		}
		for _, w := range p.Warnings {
			fmt.Fprintf(out, "  warning: column %d (%s): %s\n", w.Column, w.Name, w.Message)
		}
		fmt.Fprint(out, "Import these market areas? [y/N] ")

		answer, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, eris.Wrap(err, "read confirmation")
		}
		if ctx.Err() != nil {
			return nil, importer.ErrCancelled
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return p.Drafts, nil
		default:
			return nil, importer.ErrCancelled
		}
	})
}

func entryCount(d *model.MarketAreaDraft) int {
	switch d.Type {
	case model.TypeRadius:
		return len(d.RadiusPoints())
	case model.TypeDriveTime:
		return len(d.DriveTimePoints())
	default:
		return len(d.Locations())
	}
}

func printResult(w io.Writer, r *model.BatchResult) {
	fmt.Fprintf(w, "%s: imported %d market areas\n", r.Outcome(), r.ImportedCount)
	for _, id := range r.CreatedIDs {
		fmt.Fprintf(w, "  created %s\n", id)
	}
	for _, msg := range r.Messages() {
		fmt.Fprintf(w, "  error: %s\n", msg)
	}
}

// exportCanvas writes the drawn features to the --geojson and --shapefile
// destinations when set.
func exportCanvas(env *importEnv) error {
	if importGeoJSON != "" {
		f, err := os.Create(importGeoJSON)
		if err != nil {
			return eris.Wrap(err, "create geojson")
		}
		if err := env.Canvas.WriteGeoJSON(f); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return eris.Wrap(err, "close geojson")
		}
		zap.L().Info("wrote geojson", zap.String("path", importGeoJSON))
	}
	if importShapefile != "" {
		n, err := env.Canvas.WriteShapefile(importShapefile)
		if err != nil {
			return err
		}
		zap.L().Info("wrote shapefile", zap.String("path", importShapefile), zap.Int("shapes", n))
	}
	return nil
}

func init() {
	importCmd.Flags().StringVar(&importProject, "project", "", "project ID (default from config)")
	importCmd.Flags().BoolVarP(&importYes, "yes", "y", false, "skip the confirmation prompt")
	importCmd.Flags().StringVar(&importGeoJSON, "geojson", "", "write drawn market areas to a GeoJSON file")
	importCmd.Flags().StringVar(&importShapefile, "shapefile", "", "write drawn market areas to a shapefile (.shp)")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "worksheet name (default first sheet)")
	rootCmd.AddCommand(importCmd)
}
