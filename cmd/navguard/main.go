package main

import (
	"os"

	"github.com/tkingovr/navguard/cmd/navguard/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
