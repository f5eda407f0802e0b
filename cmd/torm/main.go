package main

import (
	"fmt"
	"os"

	"github.com/TechXTT/torm-session/pkg/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "torm: %v\n", err)
		os.Exit(1)
	}
}
