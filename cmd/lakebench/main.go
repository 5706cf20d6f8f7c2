// Package main is the lakebench benchmark orchestration CLI.
package main

import (
	"os"

	"github.com/lakebench/lakebench/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
