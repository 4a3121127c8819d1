package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/urbanquest/internal/app"
	"github.com/dmitrijs2005/urbanquest/internal/buildinfo"
	"github.com/dmitrijs2005/urbanquest/internal/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Printf("config: %v", err)
		os.Exit(2)
	}

	a, err := app.NewApp(ctx, cfg, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

	a.Run(ctx)

}
