// Package main writes the JSON schema of tree dumps, generated from the
// rbtree.Dump type.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Sumatoshi-tech/fixedtree/internal/dumpschema"
)

func main() {
	output := flag.String("o", dumpschema.SchemaName, "output file")
	flag.Parse()

	data, err := dumpschema.Generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating schema: %v\n", err)
		os.Exit(1)
	}

	err = os.WriteFile(*output, data, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", *output, err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %s\n", *output)
}
