package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bfengine/assetpipe/internal/viewer"
)

var compileAll bool

var compileCmd = &cobra.Command{
	Use:   "compile [identifier...]",
	Short: "Submit assets for compilation on a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := viewer.NewClient(serverURL)
		ctx := cmd.Context()

		var ids []uuid.UUID
		if compileAll {
			if len(args) > 0 {
				return fmt.Errorf("cannot combine --all with explicit identifiers")
			}
			dirty, err := client.DirtyIDs(ctx)
			if err != nil {
				return err
			}
			if len(dirty) == 0 {
				fmt.Println("nothing to compile")
				return nil
			}
			ids = dirty
		} else {
			if len(args) == 0 {
				return fmt.Errorf("no identifiers given (or use --all for the dirty set)")
			}
			for _, arg := range args {
				id, err := uuid.Parse(arg)
				if err != nil {
					return fmt.Errorf("invalid identifier %q: %w", arg, err)
				}
				ids = append(ids, id)
			}
		}

		if err := client.Compile(ctx, ids); err != nil {
			return err
		}
		fmt.Printf("submitted %d asset(s)\n", len(ids))
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Trigger a full library rescan on a running server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := viewer.NewClient(serverURL)
		raw, err := client.Refresh(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(string(raw))
		return nil
	},
}

func init() {
	compileCmd.Flags().BoolVar(&compileAll, "all", false, "compile every dirty asset")
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(refreshCmd)
}
