package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/foldline/jsongit/internal/diff"
	"github.com/foldline/jsongit/internal/repo"
)

var showDiffAgainst string

var (
	removedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	updatedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

var showCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Show a key's head commit message, or its structural diff against another key with --diff",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		r, closer, err := openRepository(ctx)
		if err != nil {
			return err
		}
		defer closer()

		if showDiffAgainst == "" {
			return showMessage(ctx, r, args[0])
		}
		return showDiff(ctx, r, args[0], showDiffAgainst)
	},
}

func showMessage(ctx context.Context, r *repo.Repository, key string) error {
	head, err := r.Head(ctx, key)
	if err != nil {
		return err
	}
	rendered, err := glamour.Render(fmt.Sprintf("# %s\n\n%s", head.ID.Hex()[:12], head.Message), "dark")
	if err != nil {
		fmt.Println(head.Message)
		return nil
	}
	fmt.Print(rendered)
	return nil
}

func showDiff(ctx context.Context, r *repo.Repository, key, other string) error {
	headA, err := r.Head(ctx, key)
	if err != nil {
		return err
	}
	headB, err := r.Head(ctx, other)
	if err != nil {
		return err
	}
	valueA, err := r.ReadDocument(ctx, headA)
	if err != nil {
		return err
	}
	valueB, err := r.ReadDocument(ctx, headB)
	if err != nil {
		return err
	}

	d := diff.Compute(valueA, valueB)
	if d.IsReplace() {
		fmt.Println(updatedStyle.Render(fmt.Sprintf("%s replaced wholesale", key)))
		return nil
	}
	if d.IsIdentity() {
		fmt.Println("no structural differences")
		return nil
	}

	printDiffLines(d)
	return nil
}

func printDiffLines(d *diff.Diff) {
	keys := make([]string, 0, len(d.Removals)+len(d.Updates)+len(d.Appends))
	for k := range d.Removals {
		keys = append(keys, k)
	}
	for k := range d.Updates {
		keys = append(keys, k)
	}
	for k := range d.Appends {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch {
		case hasKey(d.Removals, k):
			fmt.Println(removedStyle.Render(fmt.Sprintf("- %s", k)))
		case hasKey(d.Appends, k):
			fmt.Println(addedStyle.Render(fmt.Sprintf("+ %s", k)))
		default:
			fmt.Println(updatedStyle.Render(fmt.Sprintf("~ %s", k)))
		}
	}
}

func hasKey[V any](m map[string]V, k string) bool {
	_, ok := m[k]
	return ok
}

func init() {
	showCmd.Flags().StringVar(&showDiffAgainst, "diff", "", "show a structural diff against this key's head instead of the commit message")
	rootCmd.AddCommand(showCmd)
}
