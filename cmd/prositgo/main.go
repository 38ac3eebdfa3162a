// PrositGo - peptide fragment ion and iRT prediction
package main

import (
	"fmt"
	"os"

	"github.com/ChrisMcGann/PrositGo/cmd/prositgo/cmd"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
