// Package main provides the entry point for the fixedtree CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/Sumatoshi-tech/fixedtree/cmd/fixedtree/commands"
	"github.com/Sumatoshi-tech/fixedtree/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	err := commands.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
