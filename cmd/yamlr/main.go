package main

import (
	"os"

	"github.com/yamlr/yamlr/cmd/yamlr/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
