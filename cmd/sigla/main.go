package main

import (
	"os"

	"github.com/siglatools/sigla/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
