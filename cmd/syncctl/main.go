package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/offsync/internal/client/cli"
)

// set with -ldflags "-X main.buildVersion=..."
var buildVersion = "N/A"

func main() {

	root := cli.NewRootCommand(cli.NewApp)
	root.Version = buildVersion

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

}
