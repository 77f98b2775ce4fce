package main

import (
	"context"
	"log"
	"os"

	"github.com/fortifile/fortifile/internal/client/cli"
)

func main() {
	app := cli.NewApp(os.Stdout)
	if err := app.Run(context.Background(), os.Args[1:]); err != nil {
		log.Fatalf("%v", err)
	}
}
