package main

import (
	"fmt"
	"os"

	"github.com/samuelfneumann/goppo/cli"
)

func main() {
	if err := cli.GetRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
