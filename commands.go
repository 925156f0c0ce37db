package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"chesed/internal/models"
	"chesed/internal/reports"
)

func runRebuildIndex(ctx context.Context, a *app, _ []string) error {
	n, err := a.deliveries.RebuildIndex(ctx, cliSession)
	if err != nil {
		return err
	}
	fmt.Printf("Pending index rebuilt: %d entries\n", n)
	return nil
}

func runImport(ctx context.Context, a *app, args []string) error {
	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	res, err := a.importer.ImportFile(ctx, cliSession, filepath.Base(path), f)
	if err != nil {
		return err
	}
	fmt.Printf("Created: %d, failed: %d, neighborhoods: %d, geocoded: %d\n",
		res.Created, res.Failed, res.Neighborhoods, res.Geocoded)
	for _, e := range res.Errors {
		fmt.Printf("  row %d: %s\n", e.Row, e.Reason)
	}
	return nil
}

func runGrantAdmin(ctx context.Context, a *app, args []string) error {
	u, err := a.store.GetUserByEmail(ctx, args[0])
	if err != nil {
		return err
	}
	if err := a.store.GrantAdmin(ctx, u.ID, time.Now()); err != nil {
		return err
	}
	a.logger.Info("admin granted", zap.String("user_id", u.ID), zap.String("email", u.Email.String))
	fmt.Printf("%s is now an admin\n", u.Email.String)
	return nil
}

func runExport(ctx context.Context, a *app, args []string) error {
	deliveries, err := a.deliveries.List(ctx, models.DeliveryFilter{All: true})
	if err != nil {
		return err
	}
	names, err := a.volunteers.Names(ctx)
	if err != nil {
		return err
	}

	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("create %s: %w", args[0], err)
	}
	w := bufio.NewWriter(f)
	if err := reports.WriteDeliveries(w, deliveries, names); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", args[0], err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", args[0], err)
	}
	fmt.Printf("Exported %d deliveries to %s\n", len(deliveries), args[0])
	return nil
}
