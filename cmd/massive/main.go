package main

import (
	"os"

	"github.com/kzar79/massive-go/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
