package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foldline/jsongit/internal/objstore"
)

var logOrder string

var logCmd = &cobra.Command{
	Use:   "log <key>",
	Short: "Print a key's commit history, one line per commit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		order := objstore.OrderTopological
		if logOrder == "time" {
			order = objstore.OrderTime
		}

		ctx := context.Background()
		r, closer, err := openRepository(ctx)
		if err != nil {
			return err
		}
		defer closer()

		iter, err := r.Log(ctx, args[0], order)
		if err != nil {
			return err
		}
		for iter.Next() {
			commit, err := r.ReadCommit(ctx, iter.ID())
			if err != nil {
				return err
			}
			fmt.Printf("%s  %s  %s\n", commit.ID.Hex()[:12], commit.Committer.When.Format("2006-01-02T15:04:05Z07:00"), commit.Message)
		}
		return iter.Err()
	},
}

func init() {
	logCmd.Flags().StringVar(&logOrder, "order", "topo", "commit order: topo or time")
	rootCmd.AddCommand(logCmd)
}
