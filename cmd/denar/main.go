package main

import (
	"os"

	"github.com/denar-dev/denar/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
