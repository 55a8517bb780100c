package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "zintractl",
		Usage: "maintenance commands for the negotiation and billing service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "load variables from this file before reading the environment",
				Value: ".env",
			},
		},
		Commands: []*cli.Command{
			cmdSweep,
			cmdDrain,
			cmdRefresh,
			cmdExpirePasses,
			cmdProfile,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
