package main

import (
	"os"

	"github.com/whaleforce/earnings-signals/cmd/papertrade/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
