package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/bfengine/assetpipe/internal/viewer"
)

var assetsCmd = &cobra.Command{
	Use:   "assets",
	Short: "List tracked assets from a running server",
	Long: `Fetches the catalog from a running server and prints one YAML entry
per asset, with the current dirty flag folded in.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := viewer.NewClient(serverURL)
		ctx := cmd.Context()

		assets, err := client.Assets(ctx)
		if err != nil {
			return err
		}
		dirty := map[string]bool{}
		if ids, err := client.DirtyIDs(ctx); err == nil {
			for _, id := range ids {
				dirty[id.String()] = true
			}
		}
		return viewer.PresentAssetsYAML(os.Stdout, assets, dirty)
	},
}

func init() {
	rootCmd.AddCommand(assetsCmd)
}
