package main

import (
	"os"

	"github.com/rustyeddy/barfetch/cmd/barfetch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
