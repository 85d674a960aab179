package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/marketarea-cli/internal/model"
	"github.com/sells-group/marketarea-cli/internal/sheet"
	"github.com/sells-group/marketarea-cli/internal/store"
	"github.com/sells-group/marketarea-cli/internal/workbook"
)

var (
	templateOut     string
	templateExample bool
	templateProject string
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Write a market-area definition template workbook",
	Long:  "Writes the column-per-market-area template. With --project the saved market areas of that project are filled in; with --example a sample of each definition style is included.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("template"); err != nil {
			return err
		}

		var drafts []*model.MarketAreaDraft
		switch {
		case templateProject != "":
			if err := cfg.Validate("migrate"); err != nil {
				return err
			}
			st, err := store.Open(ctx, cfg.Store)
			if err != nil {
				return eris.Wrap(err, "open store")
			}
			defer st.Close() //nolint:errcheck

			saved, err := st.ListMarketAreas(ctx, templateProject)
			if err != nil {
				return eris.Wrap(err, "list market areas")
			}
			for i := range saved {
				drafts = append(drafts, &saved[i].Draft)
			}
		case templateExample:
			drafts = exampleDrafts(sheetOptions(cfg.Import))
		}

		f, err := os.Create(templateOut)
		if err != nil {
			return eris.Wrap(err, "create template")
		}
		if err := workbook.WriteXLSX(f, "Market Areas", sheet.TemplateRows(drafts)); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return eris.Wrap(err, "close template")
		}

		zap.L().Info("wrote template",
			zap.String("path", templateOut),
			zap.Int("market_areas", len(drafts)),
		)
		return nil
	},
}

// exampleDrafts returns one sample of each definition style, centered on the
// configured default location.
func exampleDrafts(opts sheet.Options) []*model.MarketAreaDraft {
	zips := model.NewLocationDraft("Sample ZIP Codes", model.TypeZip, []model.LocationDescriptor{
		{ID: "92602", Name: "92602", State: opts.DefaultState},
		{ID: "92618", Name: "92618", State: opts.DefaultState},
	})
	zips.ShortName = "ZIPs"

	county := model.NewLocationDraft("Sample County", model.TypeCounty, []model.LocationDescriptor{
		{Name: opts.DefaultCounty, State: opts.DefaultState},
	})
	county.ShortName = "County"

	ring := model.NewRadiusDraft("Sample Radius", []model.RadiusPoint{
		{Center: opts.DefaultCenter, Radii: []float64{opts.DefaultRadiusMiles}, Units: "miles"},
	})
	ring.ShortName = "Radius"

	drive := model.NewDriveTimeDraft("Sample Drive Time", []model.DriveTimePoint{
		{
			Center:            opts.DefaultCenter,
			TravelTimeMinutes: opts.DefaultDriveMinutes,
			TimeRanges:        []float64{opts.DefaultDriveMinutes},
			Units:             "minutes",
		},
	})
	drive.ShortName = "Drive"

	return []*model.MarketAreaDraft{zips, county, ring, drive}
}

func init() {
	templateCmd.Flags().StringVar(&templateOut, "out", "market_area_template.xlsx", "output workbook path")
	templateCmd.Flags().BoolVar(&templateExample, "example", false, "include sample market areas")
	templateCmd.Flags().StringVar(&templateProject, "project", "", "fill the template with a project's saved market areas")
	rootCmd.AddCommand(templateCmd)
}
