package main

import (
	"os"

	"github.com/reconpipe/reconpipe/cmd/reconpipe/commands"
)

func main() {
	if err := commands.NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
