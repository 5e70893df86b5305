package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/foldline/jsongit/internal/repo"
	"github.com/foldline/jsongit/internal/resolve"
)

var mergeInteractive bool

var mergeCmd = &cobra.Command{
	Use:   "merge <source> <dest>",
	Short: "Merge source's lineage into dest",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		sourceKey, destKey := args[0], args[1]

		r, closer, err := openRepository(ctx)
		if err != nil {
			return err
		}
		defer closer()

		result, err := r.Merge(ctx, sourceKey, destKey, repo.MergeOptions{})
		if err != nil {
			return err
		}

		if result.Successful {
			fmt.Printf("%s: %s\n", result.Message, result.DestCommit.Hex())
			return nil
		}

		if result.Conflict == nil || !mergeInteractive {
			return fmt.Errorf("jsongit: %s", result.Message)
		}

		overrides, err := resolve.Run(result.Conflict, result.Ancestor)
		if err != nil {
			if err == huh.ErrUserAborted {
				return fmt.Errorf("jsongit: merge canceled")
			}
			return err
		}

		retried, err := r.Merge(ctx, sourceKey, destKey, repo.MergeOptions{Overrides: overrides})
		if err != nil {
			return err
		}
		retried.ResolvedBy = "interactive"
		if !retried.Successful {
			return fmt.Errorf("jsongit: %s", retried.Message)
		}
		fmt.Printf("%s (resolved interactively): %s\n", retried.Message, retried.DestCommit.Hex())
		return nil
	},
}

func init() {
	mergeCmd.Flags().BoolVar(&mergeInteractive, "interactive", false, "resolve conflicts interactively instead of failing")
	rootCmd.AddCommand(mergeCmd)
}
