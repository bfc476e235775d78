package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:                  "approvalctl",
		EnableShellCompletion: true,
		Usage:                 "Manage approval workflow configuration",
		Commands: []*cli.Command{
			rulesCommand(),
			migrateCommand(),
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		os.Exit(1)
	}
}
