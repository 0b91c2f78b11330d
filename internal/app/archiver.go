package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/samvad-hq/samvad-page-archiver/internal/archiver"
	"github.com/samvad-hq/samvad-page-archiver/internal/config"
	"github.com/samvad-hq/samvad-page-archiver/internal/logger"
	"github.com/samvad-hq/samvad-page-archiver/internal/storage"
	"github.com/samvad-hq/samvad-page-archiver/pkg/httpclient"
	"github.com/samvad-hq/samvad-page-archiver/pkg/publishers"
	"github.com/samvad-hq/samvad-page-archiver/pkg/sources"
	"github.com/samvad-hq/samvad-page-archiver/pkg/spn"
)

// statusClient is the slice of *spn.Client the runtime uses.
type statusClient interface {
	archiver.CaptureClient
	UserStatus(ctx context.Context) (spn.UserStatus, error)
	SystemStatus(ctx context.Context) (spn.SystemStatus, error)
}

// passRunner runs one capture pass; *archiver.Service satisfies it.
type passRunner interface {
	Run(ctx context.Context, srcs []sources.Source, maxInFlight int) (archiver.Result, error)
}

// Archiver represents the page archiver runtime. It owns the archive loop,
// gating each pass on the service health and the account's free capture slots.
type Archiver struct {
	cfg             *config.Config
	sourceReg       *sources.Registry
	fanout          *publishers.Fanout
	client          statusClient
	service         passRunner
	archiveInterval time.Duration
	maxInFlight     int
	log             logger.Logger
	store           storage.Store
}

// NewArchiver builds an archiver runtime from config files.
func NewArchiver(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (*Archiver, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := cfg.RequireCredentials(); err != nil {
		return nil, err
	}

	zl := zap.NewNop()
	if sugar != nil {
		zl = sugar.Desugar()
	}
	log := logger.ZapLogger{L: zl}

	sourceReg, err := sources.LoadRegistry(cfg.SourcesFile)
	if err != nil {
		return nil, fmt.Errorf("load sources registry: %w", err)
	}
	sourceList := sourceReg.All()
	sourceIDs := make([]string, 0, len(sourceList))
	for _, s := range sourceList {
		sourceIDs = append(sourceIDs, s.ID)
	}
	log.InfoObj("sources registry loaded", "sources_meta", map[string]any{
		"count": len(sourceIDs),
		"ids":   sourceIDs,
	})

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabledPublishers := publisherReg.Enabled()
	if len(enabledPublishers) == 0 {
		return nil, fmt.Errorf("no publishers configured")
	}

	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabledPublishers, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	fanout := publishers.NewFanout(pubClients)
	publisherSummaries := make([]map[string]string, 0, len(enabledPublishers))
	for _, pubCfg := range enabledPublishers {
		publisherSummaries = append(publisherSummaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(publisherSummaries),
		"publishers": publisherSummaries,
	})

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		CaptureTTL:      cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"capture_ttl_seconds":      int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	client, err := NewSPNClient(cfg, zl)
	if err != nil {
		_ = fanout.Close()
		_ = store.Close()
		return nil, err
	}

	service := archiver.NewService(
		sources.DefaultFetcherRegistry(nil),
		client,
		fanout,
		store,
		log,
		archiver.Options{PollInterval: cfg.PollInterval, MaxInFlight: cfg.MaxInFlight},
	)

	return &Archiver{
		cfg:             cfg,
		sourceReg:       sourceReg,
		fanout:          fanout,
		client:          client,
		service:         service,
		archiveInterval: cfg.ArchiveInterval,
		maxInFlight:     cfg.MaxInFlight,
		log:             log,
		store:           store,
	}, nil
}

// NewSPNClient builds the capture API client from config, routing transport
// debug output through zl with credentials masked.
func NewSPNClient(cfg *config.Config, zl *zap.Logger) (*spn.Client, error) {
	if zl == nil {
		zl = zap.NewNop()
	}
	transport := httpclient.NewRestyClient(0,
		httpclient.WithLogger(zl.Sugar()),
		httpclient.WithDebug(cfg.HTTPDebug),
	)

	opts := []spn.Option{
		spn.WithHTTPClient(transport),
		spn.WithLogger(zl),
	}
	if cfg.SPNBaseURL != "" {
		opts = append(opts, spn.WithBaseURL(cfg.SPNBaseURL))
	}

	client, err := spn.New(cfg.SPNAccessKey, cfg.SPNSecret, cfg.SPNTimeout, opts...)
	if err != nil {
		return nil, fmt.Errorf("init spn client: %w", err)
	}
	return client, nil
}

// Run starts the archive loop until the context is cancelled.
func (a *Archiver) Run(ctx context.Context) error {
	if a == nil || a.service == nil {
		return fmt.Errorf("archiver is not initialized")
	}
	defer a.close()

	srcs := a.sourceReg.All()
	if len(srcs) == 0 {
		a.log.WarnObj("no sources configured; archiver idle", "sources_file", a.cfg.SourcesFile)
		<-ctx.Done()
		return ctx.Err()
	}

	a.log.InfoObj("archiver loop starting", "archiver_state", map[string]any{
		"sources_count":    len(srcs),
		"publishers_count": a.fanout.Size(),
		"archive_interval": a.archiveInterval.String(),
	})

	if err := a.runOnce(ctx, srcs); err != nil {
		a.log.ErrorObj("initial archive pass failed", "error", err.Error())
	}

	ticker := time.NewTicker(a.archiveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.log.InfoObj("archiver loop exiting", "reason", ctx.Err().Error())
			return nil
		case <-ticker.C:
			if err := a.runOnce(ctx, srcs); err != nil {
				a.log.ErrorObj("scheduled archive pass failed", "error", err.Error())
			}
		}
	}
}

// runOnce performs a single archive pass, skipping it while the service is
// critical or the account has no free capture slots.
func (a *Archiver) runOnce(ctx context.Context, srcs []sources.Source) error {
	start := time.Now()

	sys, err := a.client.SystemStatus(ctx)
	switch {
	case err != nil:
		a.log.WarnObj("system status unavailable; archiving anyway", "system_status_error", err.Error())
	case sys.State == spn.SystemCritical:
		a.log.WarnObj("capture service critical; pass skipped", "system_status", map[string]any{
			"state":       sys.State.String(),
			"description": sys.Description,
		})
		return nil
	case sys.State == spn.SystemIssues:
		a.log.WarnObj("capture service reports issues", "system_status", map[string]any{
			"state":       sys.State.String(),
			"description": sys.Description,
		})
	}

	limit := a.maxInFlight
	user, err := a.client.UserStatus(ctx)
	if err != nil {
		a.log.WarnObj("user status unavailable; using configured limit", "user_status_error", err.Error())
	} else {
		if user.Available == 0 {
			a.log.WarnObj("no capture slots available; pass skipped", "user_status", map[string]any{
				"available":  user.Available,
				"processing": user.Processing,
			})
			return nil
		}
		limit = inFlightLimit(a.maxInFlight, user)
	}

	a.log.InfoObj("archive pass started", "archive_meta", map[string]any{
		"sources_count": len(srcs),
		"max_in_flight": limit,
		"started_at":    start.UTC(),
	})
	res, err := a.service.Run(ctx, srcs, limit)
	a.log.InfoObj("archive pass completed", "archive_meta", map[string]any{
		"sources_count": len(srcs),
		"submitted":     res.Submitted,
		"skipped":       res.Skipped,
		"succeeded":     res.Succeeded,
		"failed":        res.Failed,
		"elapsed_ms":    time.Since(start).Milliseconds(),
	})
	return err
}

// inFlightLimit caps the configured concurrency by the account's free slots.
func inFlightLimit(configured int, user spn.UserStatus) int {
	limit := configured
	if limit > 0 && user.Available < uint(limit) {
		limit = int(user.Available)
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

// close releases publishers and the storage backend, logging any errors encountered.
func (a *Archiver) close() {
	if a == nil {
		return
	}
	if err := a.fanout.Close(); err != nil {
		a.log.ErrorObj("publisher close failed", "error", err.Error())
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.ErrorObj("storage close failed", "error", err.Error())
		}
	}
}
