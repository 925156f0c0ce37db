package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chesed/internal/assignment"
	"chesed/internal/auth"
	"chesed/internal/config"
	"chesed/internal/db"
	"chesed/internal/editrequest"
	"chesed/internal/events"
	"chesed/internal/geocode"
	"chesed/internal/importer"
	"chesed/internal/logger"
	"chesed/internal/session"
	"chesed/internal/stats"
	"chesed/internal/telegram_api"
	"chesed/internal/volunteers"
)

const serviceName = "chesed"

// cliSession is the identity recorded for changes made from the command line.
var cliSession = session.Session{UserID: "cli", DisplayName: "command line", IsAdmin: true}

// app holds everything the commands share.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *db.Store
	broker events.Broker

	sessions     *session.Manager
	auth         *auth.Service
	deliveries   *assignment.Service
	editRequests *editrequest.Service
	volunteers   *volunteers.Service
	stats        *stats.Service
	importer     *importer.Importer
	geocoder     *geocode.Client
}

func newApp(ctx context.Context) (*app, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: could not load .env file, relying on the environment.")
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	lg, err := logger.New(cfg, serviceName)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	store, err := db.Open(ctx, cfg.DatabaseURL, lg.Named("db"))
	if err != nil {
		return nil, err
	}

	var broker events.Broker = events.NewHub(lg.Named("events"))
	if cfg.RedisAddr != "" {
		rb, err := events.NewRedisBroker(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisChannel, lg.Named("events"))
		if err != nil {
			store.Close()
			return nil, err
		}
		broker = rb
	}

	var notifier *telegram_api.Notifier
	if cfg.NotificationsEnabled() {
		bot, err := telegram_api.NewBotClient(cfg.TelegramToken, cfg.IsDev(), lg.Named("telegram"))
		if err != nil {
			lg.Warn("telegram notifications disabled", zap.Error(err))
		} else {
			notifier = telegram_api.NewNotifier(bot, cfg.AdminChatID, cfg.PublicURL, lg.Named("telegram"))
		}
	}

	a := &app{cfg: cfg, logger: lg, store: store, broker: broker}
	a.geocoder = geocode.NewClient(cfg.GeocoderURL, cfg.GeocoderUserAgent, lg.Named("geocode"))
	a.sessions = session.NewManager(cfg.JWTSecret, cfg.TokenTTL)
	a.auth = auth.NewService(store, a.sessions, lg.Named("auth"))
	a.deliveries = assignment.NewService(store, broker, lg.Named("assignment"))
	a.editRequests = editrequest.NewService(store, notifier, broker, lg.Named("edit_requests"))
	a.volunteers = volunteers.NewService(store, lg.Named("volunteers"))
	a.stats = stats.NewService(store, cfg.Location, lg.Named("stats"))

	opts := importer.Options{
		DefaultCity: cfg.DefaultCity,
		Geocode:     cfg.GeocodeOnImport,
		Notifier:    notifier,
		Publisher:   broker,
		Logger:      lg.Named("importer"),
	}
	if cfg.GeocodeOnImport {
		opts.Geocoder = a.geocoder
	}
	a.importer = importer.New(a.deliveries, store, opts)
	return a, nil
}

func (a *app) Close() {
	if err := a.broker.Close(); err != nil {
		a.logger.Warn("close event broker", zap.Error(err))
	}
	a.store.Close()
	a.logger.Sync()
}

// withApp runs fn with a fully wired app that is closed afterwards.
func withApp(fn func(ctx context.Context, a *app, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(ctx, a, args)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Volunteer delivery coordination service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          withApp(runServe),
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the web client",
			Args:  cobra.NoArgs,
			RunE:  withApp(runServe),
		},
		&cobra.Command{
			Use:   "rebuild-index",
			Short: "Rebuild the pending index from the deliveries table",
			Args:  cobra.NoArgs,
			RunE:  withApp(runRebuildIndex),
		},
		&cobra.Command{
			Use:   "import <file>",
			Short: "Import deliveries from a CSV or XLSX file",
			Args:  cobra.ExactArgs(1),
			RunE:  withApp(runImport),
		},
		&cobra.Command{
			Use:   "grant-admin <email>",
			Short: "Give an existing account admin rights",
			Args:  cobra.ExactArgs(1),
			RunE:  withApp(runGrantAdmin),
		},
		&cobra.Command{
			Use:   "export <file.xlsx>",
			Short: "Export all deliveries to an Excel workbook",
			Args:  cobra.ExactArgs(1),
			RunE:  withApp(runExport),
		},
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
