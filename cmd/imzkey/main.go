// ImzKey - imzML mass spectrometry imaging tool
package main

import (
	"fmt"
	"os"

	"github.com/ChrisMcGann/ImzKey/cmd/imzkey/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
