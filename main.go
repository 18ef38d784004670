// Package main is the entry point for the otus-inject frame generator.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/otus-inject/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
