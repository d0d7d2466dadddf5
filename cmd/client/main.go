package main

import (
	"context"
	"log"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/client/cli"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/client/config"
)

func main() {
	cfg := config.LoadConfig()

	app, err := cli.NewApp(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(context.Background())
}
