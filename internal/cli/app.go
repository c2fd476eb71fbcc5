// Package cli wires the Gatherly SDK into a small command-line client:
// login/logout, event discovery and location lookups against a configured
// backend.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gatherly/gatherly-go/pkg/apix"
	"github.com/gatherly/gatherly-go/pkg/gatherly"
	"github.com/gatherly/gatherly-go/pkg/slogx"
	"github.com/gatherly/gatherly-go/pkg/tokenstore"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// App holds the wired SDK services for one CLI invocation.
type App struct {
	logger *slog.Logger
	client *apix.Client
	out    io.Writer

	auth      *gatherly.AuthService
	events    *gatherly.EventsService
	locations *gatherly.LocationsService
}

// New builds an App from cfg: logger, token store (resolved by
// capability), client and domain services.
func New(cfg Config) (*App, error) {
	if cfg.API.BaseURL == "" {
		return nil, errors.New("GATHERLY_BASE_URL is required")
	}

	logger := slogx.New(slogx.Config{
		App:     "gatherly",
		Version: Version,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	store := tokenstore.ResolveStore(tokenstore.ResolveOptions{
		Dir:          cfg.StoreDir,
		Secret:       []byte(cfg.StoreSecret),
		PreferSQLite: cfg.PreferSQLite,
		Logger:       logger,
	})
	if !store.Secure() {
		logger.Warn("token store is not encrypted at rest; set GATHERLY_STORE_SECRET to enable the sealed file store")
	}

	client := apix.NewClient(cfg.API, store, apix.WithLogger(logger))

	return &App{
		logger:    logger,
		client:    client,
		out:       os.Stdout,
		auth:      gatherly.NewAuthService(client),
		events:    gatherly.NewEventsService(client),
		locations: gatherly.NewLocationsService(client),
	}, nil
}

// Run dispatches a single command. Cancelling via SIGINT/SIGTERM aborts
// whatever request is in flight.
func (a *App) Run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(args) < 1 {
		return a.usage()
	}

	switch args[0] {
	case "login":
		return a.runLogin(ctx, args[1:])
	case "logout":
		return a.auth.Logout(ctx)
	case "profile":
		return a.runProfile(ctx)
	case "events":
		return a.runEvents(ctx, args[1:])
	case "nearby":
		return a.runNearby(ctx, args[1:])
	case "locations":
		return a.runLocations(ctx, args[1:])
	default:
		return a.usage()
	}
}

func (a *App) usage() error {
	fmt.Fprintln(a.out, `usage: gatherly <command> [flags]

commands:
  login      -user <identifier> -pass <password>
  logout
  profile
  events     [-category <c>] [-q <text>]
  nearby     -lat <deg> -lng <deg> [-radius <km>]
  locations  [-city <name>]`)
	return errors.New("unknown or missing command")
}

func (a *App) runLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	user := fs.String("user", "", "email or username")
	pass := fs.String("pass", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" || *pass == "" {
		return errors.New("login requires -user and -pass")
	}

	profile, err := a.auth.Login(ctx, *user, *pass)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "logged in as %s\n", profile.Username)
	return nil
}

func (a *App) runProfile(ctx context.Context) error {
	profile, err := a.auth.Profile(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s <%s>\n", profile.Username, profile.Email)
	return nil
}

func (a *App) runEvents(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	category := fs.String("category", "", "filter by category")
	query := fs.String("q", "", "free-text search")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		events []gatherly.Event
		err    error
	)
	if *query != "" {
		events, err = a.events.Search(ctx, *query, gatherly.EventFilter{Category: *category})
	} else {
		events, err = a.events.List(ctx, gatherly.EventFilter{Category: *category})
	}
	if err != nil {
		return err
	}

	for _, event := range events {
		a.printEvent(event)
	}
	return nil
}

func (a *App) runNearby(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("nearby", flag.ContinueOnError)
	lat := fs.Float64("lat", 0, "latitude")
	lng := fs.Float64("lng", 0, "longitude")
	radius := fs.Float64("radius", 5, "radius in km")
	if err := fs.Parse(args); err != nil {
		return err
	}

	events, err := a.events.Nearby(ctx, *lat, *lng, *radius)
	if err != nil {
		return err
	}
	for _, event := range events {
		a.printEvent(event)
	}
	return nil
}

func (a *App) runLocations(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("locations", flag.ContinueOnError)
	city := fs.String("city", "", "filter by city")
	if err := fs.Parse(args); err != nil {
		return err
	}

	locations, err := a.locations.List(ctx, *city)
	if err != nil {
		return err
	}
	for _, loc := range locations {
		fmt.Fprintf(a.out, "%-24s %s (%.4f, %.4f)\n", loc.Name, loc.City, loc.Latitude, loc.Longitude)
	}
	return nil
}

func (a *App) printEvent(event gatherly.Event) {
	where := ""
	if event.Location != nil {
		where = " @ " + event.Location.Name
	}
	fmt.Fprintf(a.out, "%s  %s%s (%s)\n",
		event.StartsAt.Format("Mon 02 Jan 15:04"), event.Title, where, event.ID)
}
