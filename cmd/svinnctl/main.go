// Command svinnctl administers a svinn installation: migrations, accounts,
// seed data, test clicks and PDF reports.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
