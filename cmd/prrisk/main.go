package main

import (
	"os"

	"github.com/dshills/prrisk/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
