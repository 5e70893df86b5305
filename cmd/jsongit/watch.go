package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/foldline/jsongit/internal/config"
)

var watchCmd = &cobra.Command{
	Use:   "watch <key>",
	Short: "Stream a key's head commit every time it advances, until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		r, closer, err := openRepository(ctx)
		if err != nil {
			return err
		}
		defer closer()

		stopConfigWatch, err := config.WatchFile(func() {
			fmt.Fprintln(os.Stderr, "config changed, restart to pick up identity/log changes")
		})
		if err != nil {
			return err
		}
		defer stopConfigWatch()

		commits, err := r.Watch(ctx, args[0])
		if err != nil {
			return err
		}
		for commit := range commits {
			fmt.Printf("%s  %s\n", commit.ID.Hex()[:12], commit.Message)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
