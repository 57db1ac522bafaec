package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/kjstillabower/weather-lookup/internal/models"
	"github.com/kjstillabower/weather-lookup/internal/nav"
	"github.com/kjstillabower/weather-lookup/internal/screen"
)

// SearchCmd searches the home screen search bar and prints the results. With --pick it
// selects a result and prints its details screen.
type SearchCmd struct {
	Query []string `arg:"" help:"City name."`
	Pick  int      `help:"Open the N-th result (1-based)." placeholder:"N"`
}

func (c *SearchCmd) Run(app *App) error {
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.RequestTimeout)
	defer cancel()

	navigator := nav.NewNavigator(nav.HomeRoute())
	home := screen.NewHome(app.screenDeps(navigator))
	defer home.Close()

	search := home.Search()
	search.SetQuery(strings.Join(c.Query, " "))
	search.Submit(ctx)

	view := search.View()
	if view.Error != "" {
		return errors.New(view.Error)
	}
	if c.Pick == 0 {
		printResults(app.out, view)
		return nil
	}
	if !search.SelectIndex(c.Pick - 1) {
		return fmt.Errorf("no result #%d (%d results)", c.Pick, len(view.Results))
	}
	return renderDetails(ctx, app, navigator, navigator.Current().DetailsParams())
}

func printResults(out io.Writer, view screen.SearchView) {
	if !view.ShowResults {
		fmt.Fprintln(out, "0 results")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for i, r := range view.Results {
		fmt.Fprintf(tw, "%d.\t%s\t%s\n", i+1, r.Title, r.Subtitle)
	}
	tw.Flush()
}

// DetailsCmd prints the details screen of a location.
type DetailsCmd struct {
	Name      string `help:"City name shown as title."`
	Latitude  string `help:"Latitude in decimal degrees." required:""`
	Longitude string `help:"Longitude in decimal degrees." required:""`
}

func (c *DetailsCmd) Run(app *App) error {
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.RequestTimeout)
	defer cancel()

	route := nav.Route{Screen: nav.ScreenDetails, Params: map[string][]string{
		"name":      {c.Name},
		"latitude":  {c.Latitude},
		"longitude": {c.Longitude},
	}}
	return renderDetails(ctx, app, nav.NewNavigator(route), route.DetailsParams())
}

func renderDetails(ctx context.Context, app *App, navigator *nav.Navigator, params nav.DetailsParams) error {
	details := screen.NewDetails(app.screenDeps(navigator), params)
	defer details.Close()
	details.Open(ctx)
	details.Wait()
	printDetails(app.out, details.View())
	return nil
}

func printDetails(out io.Writer, v screen.DetailsView) {
	fmt.Fprintln(out, v.Title)
	if v.Error != "" {
		fmt.Fprintln(out, v.Error)
		return
	}
	if !v.ShowBody {
		return
	}
	fmt.Fprintf(out, "%s  %s %s\n\n", v.CurrentTemp, v.FavoriteIcon, v.FavoriteLabel)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, row := range v.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s %s\n", row.DateLabel, row.Temp, row.Glyph, row.Label)
	}
	tw.Flush()
	if v.Footer != "" {
		fmt.Fprintln(out, v.Footer)
	}
}

// FavoritesCmd groups the favorites subcommands.
type FavoritesCmd struct {
	List   FavoritesListCmd   `cmd:"" default:"1" help:"List favorites, newest first."`
	Add    FavoritesAddCmd    `cmd:"" help:"Add a favorite."`
	Remove FavoritesRemoveCmd `cmd:"" help:"Remove a favorite."`
}

type FavoritesListCmd struct{}

func (c *FavoritesListCmd) Run(app *App) error {
	list := app.favorites.List(context.Background())
	if len(list) == 0 {
		home := screen.NewHome(app.screenDeps(nil))
		fmt.Fprintln(app.out, home.View().Empty)
		return nil
	}
	printFavorites(app.out, list)
	return nil
}

func printFavorites(out io.Writer, list []models.Favorite) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, f := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Name, models.FormatCoordinate(f.Latitude), models.FormatCoordinate(f.Longitude))
	}
	tw.Flush()
}

// FavoriteFlags identify a favorite. Negative coordinates need the --flag=value form.
type FavoriteFlags struct {
	Name      string  `help:"City name." required:""`
	Latitude  float64 `help:"Latitude in decimal degrees." required:""`
	Longitude float64 `help:"Longitude in decimal degrees." required:""`
}

func (f FavoriteFlags) favorite() models.Favorite {
	return models.Favorite{Name: f.Name, Latitude: f.Latitude, Longitude: f.Longitude}
}

type FavoritesAddCmd struct {
	FavoriteFlags
}

func (c *FavoritesAddCmd) Run(app *App) error {
	app.favorites.Add(context.Background(), c.favorite())
	printFavorites(app.out, app.favorites.List(context.Background()))
	return nil
}

type FavoritesRemoveCmd struct {
	FavoriteFlags
}

func (c *FavoritesRemoveCmd) Run(app *App) error {
	app.favorites.Remove(context.Background(), c.favorite())
	printFavorites(app.out, app.favorites.List(context.Background()))
	return nil
}
