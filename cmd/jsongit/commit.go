package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"

	"github.com/foldline/jsongit/internal/codec"
	"github.com/foldline/jsongit/internal/repo"
)

var (
	commitMessage string
	commitSet     []string
)

var commitCmd = &cobra.Command{
	Use:   "commit <key> <json-file-or-->",
	Short: "Commit a JSON document to a named lineage",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, source := args[0], args[1]

		data, err := readSource(source)
		if err != nil {
			return err
		}

		for _, set := range commitSet {
			data, err = applySet(data, set)
			if err != nil {
				return err
			}
		}

		r, closer, err := openRepository(context.Background())
		if err != nil {
			return err
		}
		defer closer()

		value, err := codec.Default().Decode(data)
		if err != nil {
			return err
		}

		opts := repo.CommitOptions{}
		if commitMessage != "" {
			opts.Message = &commitMessage
		}

		doc, err := r.Commit(context.Background(), key, value, opts)
		if err != nil {
			return err
		}

		fmt.Println(doc.Head().ID.Hex())
		return nil
	},
}

func readSource(source string) ([]byte, error) {
	if source == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(source)
}

// applySet patches data at path with value, where set is "path=value". value
// is parsed as JSON when it looks like one (so --set count=3 or --set
// tags=["a"] both work) and treated as a literal string otherwise.
func applySet(data []byte, set string) ([]byte, error) {
	path, value, ok := strings.Cut(set, "=")
	if !ok {
		return nil, fmt.Errorf("jsongit: --set expects path=value, got %q", set)
	}
	var probe any
	if json.Unmarshal([]byte(value), &probe) == nil {
		return sjson.SetRawBytes(data, path, []byte(value))
	}
	return sjson.SetBytes(data, path, value)
}

func init() {
	commitCmd.Flags().StringVarP(&commitMessage, "message", "m", "", "commit message")
	commitCmd.Flags().StringArrayVar(&commitSet, "set", nil, "patch the source document at path=value before committing (repeatable)")
	rootCmd.AddCommand(commitCmd)
}
