package main

import (
	"os"

	"github.com/clintjedwards/gofer/internal/cli"
)

func main() {
	err := cli.Execute()
	if err != nil {
		os.Exit(1)
	}
}
