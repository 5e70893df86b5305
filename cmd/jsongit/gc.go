package main

import (
	"context"

	"github.com/spf13/cobra"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Reclaim unreferenced blobs and trees in the object store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		r, closer, err := openRepository(ctx)
		if err != nil {
			return err
		}
		defer closer()
		return r.GC(ctx)
	},
}

func init() {
	rootCmd.AddCommand(gcCmd)
}
