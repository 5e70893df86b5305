// Command jsongit is the CLI front end for the content-addressed JSON
// version-control engine in internal/repo.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
