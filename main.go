package main

import (
	"os"

	"github.com/spigell/sahara/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
