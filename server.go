package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"chesed/internal/api"
	"chesed/internal/geocode"
)

const shutdownTimeout = 15 * time.Second

func (a *app) router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	h := api.NewHandler(api.Dependencies{
		Auth:          a.auth,
		Deliveries:    a.deliveries,
		EditRequests:  a.editRequests,
		Neighborhoods: a.store,
		Volunteers:    a.volunteers,
		Stats:         a.stats,
		Importer:      a.importer,
		Locator:       geocode.Locator{Client: a.geocoder, Store: a.store},
		Broker:        a.broker,
		DefaultCity:   a.cfg.DefaultCity,
		Logger:        a.logger.Named("api"),
	})
	api.SetupRoutes(r, h)

	r.Get("/", http.RedirectHandler("/webapp/", http.StatusMovedPermanently).ServeHTTP)
	r.Get("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	webDir := a.cfg.WebAppDir
	if !filepath.IsAbs(webDir) {
		workDir, _ := os.Getwd()
		webDir = filepath.Join(workDir, webDir)
	}
	FileServer(r, "/webapp", http.Dir(webDir))
	return r
}

func runServe(ctx context.Context, a *app, _ []string) error {
	// Request contexts derive from baseCtx so open event streams end on shutdown.
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()
	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           a.router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancelRequests)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", zap.String("addr", srv.Addr), zap.String("env", a.cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// FileServer serves static files from root under path.
func FileServer(r chi.Router, path string, root http.FileSystem) {
	if strings.ContainsAny(path, "{}*") {
		panic("FileServer does not permit URL parameters")
	}

	if path != "/" && path[len(path)-1] != '/' {
		r.Get(path, http.RedirectHandler(path+"/", http.StatusMovedPermanently).ServeHTTP)
		path += "/"
	}
	path += "*"

	r.Get(path, func(w http.ResponseWriter, r *http.Request) {
		rctx := chi.RouteContext(r.Context())
		pathPrefix := strings.TrimSuffix(rctx.RoutePattern(), "/*")
		fs := http.StripPrefix(pathPrefix, http.FileServer(root))
		fs.ServeHTTP(w, r)
	})
}
