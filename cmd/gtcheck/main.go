package main

import (
	"os"

	"github.com/groundtruth-intake-api/cmd/gtcheck/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
