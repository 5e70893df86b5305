package main

import (
	"context"

	"github.com/spf13/cobra"
)

var fastForwardCmd = &cobra.Command{
	Use:   "fast-forward <source> <dest>",
	Short: "Point dest's reference at source's head without writing a new commit",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		r, closer, err := openRepository(ctx)
		if err != nil {
			return err
		}
		defer closer()
		return r.FastForward(ctx, args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(fastForwardCmd)
}
