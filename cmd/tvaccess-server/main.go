package main

import (
	"log"

	"github.com/grand-thief-cash/tvaccess/internal/api"
	"github.com/grand-thief-cash/tvaccess/internal/application"
	"github.com/grand-thief-cash/tvaccess/internal/config"

	// Route and builder registrations live in package init functions.
	_ "github.com/grand-thief-cash/tvaccess/internal/registry_ext"
)

var (
	Version = "v0.3.0"
)

func main() {
	api.Version = Version

	app := application.GetApp()
	app.SetBizConfig(config.GetBizConfig())

	if err := app.Run(); err != nil {
		log.Fatalf("app exited with error: %v", err)
	}
}
