package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/marmos91/dittodocs/internal/cmd"
)

func main() {
	if err := fang.Execute(context.Background(), cmd.NewRootCmd()); err != nil {
		os.Exit(1)
	}
}
