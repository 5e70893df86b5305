package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"gopkg.in/yaml.v3"

	"github.com/foldline/jsongit/internal/codec"
	"github.com/foldline/jsongit/internal/objstore"
	"github.com/foldline/jsongit/internal/repo"
)

var (
	getCommitHex string
	getPath      string
	getFormat    string
)

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the document a key's head (or a specific commit) resolves to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, closer, err := openRepository(context.Background())
		if err != nil {
			return err
		}
		defer closer()

		opts := repo.GetOptions{Key: args[0]}
		if getCommitHex != "" {
			id, err := objstore.ParseID(getCommitHex)
			if err != nil {
				return err
			}
			opts = repo.GetOptions{Commit: &id}
		}

		doc, err := r.Get(context.Background(), opts)
		if err != nil {
			return err
		}

		data, err := codec.Default().Encode(doc.Value())
		if err != nil {
			return err
		}

		if getPath != "" {
			result := gjson.GetBytes(data, getPath)
			if !result.Exists() {
				return fmt.Errorf("jsongit: no value at path %q", getPath)
			}
			data = []byte(result.Raw)
		}

		if getFormat == "yaml" {
			var native any
			if err := json.Unmarshal(data, &native); err != nil {
				return err
			}
			out, err := yaml.Marshal(native)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		}

		fmt.Println(string(pretty.Color(pretty.Pretty(data), nil)))
		return nil
	},
}

func init() {
	getCmd.Flags().StringVar(&getCommitHex, "commit", "", "read the document as of this commit id instead of the key's head")
	getCmd.Flags().StringVar(&getPath, "path", "", "print only the value at this gjson path instead of the whole document")
	getCmd.Flags().StringVar(&getFormat, "format", "json", "output format: json or yaml")
	rootCmd.AddCommand(getCmd)
}
