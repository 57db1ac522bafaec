package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup/internal/config"
	"github.com/kjstillabower/weather-lookup/internal/observability"
)

// CLI is the weatherapp command line.
type CLI struct {
	Root string `help:"Directory holding .env and config/." type:"existingdir" default:"."`

	Serve     ServeCmd     `cmd:"" default:"1" help:"Run the web front end (default)."`
	Search    SearchCmd    `cmd:"" help:"Search a city and optionally open a result."`
	Details   DetailsCmd   `cmd:"" help:"Show current temperature and the 7-day forecast of a location."`
	Favorites FavoritesCmd `cmd:"" help:"List or edit favorite cities."`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("weatherapp"),
		kong.Description("City weather lookup backed by Open-Meteo."),
		kong.UsageOnError(),
	)

	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadFrom(cli.Root)
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	app, err := newApp(cfg, logger, os.Stdout)
	if err != nil {
		logger.Fatal("startup", zap.Error(err))
	}

	runErr := kctx.Run(app)
	app.Close()
	if err := observability.FlushTelemetry(logger); err != nil {
		fmt.Fprintf(os.Stderr, "flush logs: %v\n", err)
	}
	kctx.FatalIfErrorf(runErr)
}
