package main

import (
	"os"

	"github.com/newhook/pipereport/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
