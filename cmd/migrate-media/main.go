// Package main moves locally stored media to the remote media host and
// rewrites the records that reference it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/safehome-site/internal/config"
	"github.com/vyrodovalexey/safehome-site/internal/media"
	"github.com/vyrodovalexey/safehome-site/internal/model"
	"github.com/vyrodovalexey/safehome-site/internal/store"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("migrate-media", flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "list records that would be migrated without uploading")
	envFile := fs.String("env", config.DefaultEnvFile, "optional .env file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()

	cfg, err := config.LoadFile(*envFile)
	if err != nil {
		logger.Error("failed to load configuration", zap.Error(err))
		return 1
	}
	if !cfg.HasCloudinary() {
		logger.Error("remote media host is not configured",
			zap.String("variable", config.EnvCloudinaryURL),
		)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	records, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		logger.Error("failed to open record store", zap.Error(err))
		return 1
	}
	defer func() {
		if err := records.Close(); err != nil {
			logger.Warn("failed to close record store", zap.Error(err))
		}
	}()

	remote, err := media.NewCloudinaryStorage(cfg.Cloudinary())
	if err != nil {
		logger.Error("failed to create remote storage", zap.Error(err))
		return 1
	}
	local, err := media.NewDiskStorage(cfg.UploadDir)
	if err != nil {
		logger.Error("failed to open upload directory", zap.Error(err))
		return 1
	}

	m := &migrator{
		store:  records,
		remote: remote,
		local:  local,
		dryRun: *dryRun,
		logger: logger,
	}
	report, err := m.Run(ctx)
	if err != nil {
		logger.Error("migration aborted", zap.Error(err))
		return 1
	}

	logger.Info("migration finished",
		zap.Bool("dry_run", *dryRun),
		zap.Int("candidates", report.Candidates),
		zap.Int("migrated", report.Migrated),
		zap.Int("failed", report.Failed),
	)
	if report.Failed > 0 {
		return 1
	}
	return 0
}

// report counts the records seen by a migration run.
type report struct {
	Candidates int
	Migrated   int
	Failed     int
}

// migrator uploads media that has no remote handle yet.
type migrator struct {
	store  store.Store
	remote media.Storage
	local  *media.DiskStorage
	dryRun bool
	logger *zap.Logger
}

// Run walks every collection with media. A failed item is logged and
// skipped; only store listing errors abort the run.
func (m *migrator) Run(ctx context.Context) (report, error) {
	var rep report
	for _, c := range model.Collections {
		schema, _ := model.SchemaFor(c)
		if !schema.HasMedia() {
			continue
		}

		recs, err := m.store.List(ctx, c)
		if err != nil {
			return rep, fmt.Errorf("listing %s: %w", c, err)
		}

		for _, rec := range recs {
			if !needsMigration(schema, rec) {
				continue
			}
			rep.Candidates++

			log := m.logger.With(
				zap.String("collection", string(c)),
				zap.String("id", rec.ID),
				zap.String("url", rec.Get(schema.MediaKey)),
			)
			if m.dryRun {
				log.Info("would migrate")
				continue
			}

			if err := m.migrate(ctx, schema, rec); err != nil {
				if ctx.Err() != nil {
					return rep, ctx.Err()
				}
				rep.Failed++
				log.Warn("failed to migrate", zap.Error(err))
				continue
			}
			rep.Migrated++
			log.Info("migrated")
		}
	}
	return rep, nil
}

func needsMigration(schema model.Schema, rec model.Record) bool {
	return rec.Get(schema.MediaKey) != "" && rec.Get(schema.HandleKey) == ""
}

func (m *migrator) migrate(ctx context.Context, schema model.Schema, rec model.Record) error {
	current := rec.Get(schema.MediaKey)

	obj, err := m.upload(ctx, current)
	if err != nil {
		return err
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = media.TypeByExtension(current)
	}
	kind := media.Classify(contentType, obj.Format)

	patch := model.Fields{
		schema.MediaKey:  obj.URL,
		schema.HandleKey: obj.Handle,
	}
	if schema.KindKey != "" {
		patch[schema.KindKey] = string(kind)
	}

	if _, err := m.store.Update(ctx, schema.Collection, rec.ID, patch); err != nil {
		ref := media.Ref{URL: obj.URL, Handle: obj.Handle, Kind: kind}
		if relErr := m.remote.Release(ctx, ref); relErr != nil {
			m.logger.Warn("failed to release uploaded media", zap.String("handle", obj.Handle), zap.Error(relErr))
		}
		return fmt.Errorf("updating record: %w", err)
	}
	return nil
}

// upload sends a local file, or hands an external URL to the remote host.
func (m *migrator) upload(ctx context.Context, rawURL string) (media.Object, error) {
	if !strings.HasPrefix(rawURL, media.DefaultURLPrefix) {
		return m.remote.PutURL(ctx, rawURL, media.TypeByExtension(rawURL))
	}

	path, ok := m.local.LocalPath(rawURL)
	if !ok {
		return media.Object{}, errors.New("invalid local media path")
	}

	f, err := os.Open(path)
	if err != nil {
		return media.Object{}, fmt.Errorf("opening local media: %w", err)
	}
	defer f.Close()

	return m.remote.Put(ctx, media.Upload{
		Name:        filepath.Base(path),
		ContentType: media.TypeByExtension(path),
		Body:        f,
	})
}
