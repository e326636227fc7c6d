package main

import (
	"os"

	"github.com/weft-dev/weft/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
