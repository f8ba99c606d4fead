package main

import (
	"os"

	"github.com/sailbuild/sail/internal/cmd"
)

// sailVersion is overridden at build time via -ldflags.
var sailVersion = "dev"

func main() {
	os.Exit(cmd.RunWithArgs(os.Args[1:], sailVersion))
}
