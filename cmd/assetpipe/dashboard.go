package main

import (
	"github.com/spf13/cobra"

	"github.com/bfengine/assetpipe/internal/viewer"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Live terminal dashboard of compile activity",
	Long: `Connects to a running server's event stream and renders queue depth,
active compiles, and per-asset state in the terminal. Press r to trigger a
library rescan, q to quit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return viewer.RunDashboard(cmd.Context(), viewer.NewClient(serverURL))
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
