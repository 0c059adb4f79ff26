package main

import (
	"os"

	"github.com/archlens/archlens/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
