package main

import (
	"os"

	"github.com/ethanasm/mcp-review/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
