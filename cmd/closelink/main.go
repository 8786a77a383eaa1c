package main

import (
	"os"

	"closelink/cmd/closelink/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
