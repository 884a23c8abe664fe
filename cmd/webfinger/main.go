package main

import (
	"os"

	"github.com/0dayfall/webfinger/internal/cli"
)

// Set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(cli.Execute(version))
}
