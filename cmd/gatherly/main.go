package main

import (
	"fmt"
	"os"

	"github.com/gatherly/gatherly-go/internal/cli"
)

func main() {
	cfg := cli.LoadConfig()

	app, err := cli.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gatherly: %v\n", err)
		os.Exit(1)
	}

	if err := app.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "gatherly: %v\n", err)
		os.Exit(1)
	}
}
