package main

import (
	"os"

	"github.com/helios-node/helios/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:], os.Stdout, os.Stderr))
}
