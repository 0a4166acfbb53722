package main

import (
	"context"
	"os"

	"webrtc-mediamtx/internal"
	"webrtc-mediamtx/pkg/log"
)

func main() {
	log.SetupLogger("info")

	app := internal.NewApp()

	if err := app.Setup(os.Args[1:]); err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	if err := app.Run(ctx, cancel); err != nil {
		log.Fatal(err)
	}
}
