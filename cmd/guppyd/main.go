package main

import (
	"fmt"
	"os"

	"github.com/guppyfunds/guppy-consumer/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
