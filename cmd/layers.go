package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/marketarea-cli/internal/featureservice"
)

var layersRemote bool

var layersCmd = &cobra.Command{
	Use:   "layers",
	Short: "List the feature-service layers used for each market-area type",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("layers"); err != nil {
			return err
		}

		layers, err := featureservice.LoadLayers(cfg.FeatureService.LayersFile)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TYPE\tTITLE\tLAYER IDS\tNAME FIELD")
		for _, l := range layers.Sorted() {
			ids := make([]string, len(l.IDs))
			for i, id := range l.IDs {
				ids[i] = fmt.Sprint(id)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", l.Type, l.Title, strings.Join(ids, ","), l.NameField)
		}
		if err := tw.Flush(); err != nil {
			return eris.Wrap(err, "flush layers")
		}

		if !layersRemote {
			return nil
		}

		remote, err := newFeatureClient(cfg.FeatureService).Describe(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "describe feature service")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", cfg.FeatureService.BaseURL)
		for _, info := range remote {
			fmt.Fprintf(cmd.OutOrStdout(), "  %4d  %s\n", info.ID, info.Name)
		}
		return nil
	},
}

func init() {
	layersCmd.Flags().BoolVar(&layersRemote, "remote", false, "also list the layers the service advertises")
	rootCmd.AddCommand(layersCmd)
}
