package main

import (
	"log"
	"os"

	"github.com/agent-protocol/ucp-shopper/pkg/cli"
)

func main() {
	app := cli.NewApp()
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
