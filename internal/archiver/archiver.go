package archiver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/samvad-hq/samvad-page-archiver/internal/logger"
	"github.com/samvad-hq/samvad-page-archiver/pkg/publishers"
	"github.com/samvad-hq/samvad-page-archiver/pkg/sources"
	"github.com/samvad-hq/samvad-page-archiver/pkg/spn"
)

// Options tunes a Service.
type Options struct {
	PollInterval time.Duration
	MaxInFlight  int
}

// Service runs capture passes over the configured sources.
type Service struct {
	registry     sources.FetcherRegistry
	client       CaptureClient
	publisher    EventPublisher
	ledger       Ledger
	log          logger.Logger
	pollInterval time.Duration
	maxInFlight  int
}

// NewService wires the archiver with its collaborators. ledger and publisher may be nil.
func NewService(reg sources.FetcherRegistry, client CaptureClient, publisher EventPublisher, ledger Ledger, log logger.Logger, opts Options) *Service {
	if log == nil {
		log = logger.NopLogger{}
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = 1
	}
	return &Service{
		registry:     reg,
		client:       client,
		publisher:    publisher,
		ledger:       ledger,
		log:          log,
		pollInterval: opts.PollInterval,
		maxInFlight:  opts.MaxInFlight,
	}
}

// Result summarizes one capture pass.
type Result struct {
	Submitted int
	Skipped   int
	Succeeded int
	Failed    int
}

// Run executes a capture pass for all sources with at most maxInFlight jobs
// outstanding. A non-positive maxInFlight falls back to the configured limit.
func (s *Service) Run(ctx context.Context, srcs []sources.Source, maxInFlight int) (Result, error) {
	if s == nil || s.registry == nil || s.client == nil {
		return Result{}, fmt.Errorf("archiver service is not initialized")
	}
	if len(srcs) == 0 {
		return Result{}, fmt.Errorf("no sources configured for archiving")
	}
	if maxInFlight <= 0 {
		maxInFlight = s.maxInFlight
	}

	p := &pass{
		svc: s,
		sem: semaphore.NewWeighted(int64(maxInFlight)),
	}
	for _, src := range srcs {
		if err := p.runSource(ctx, src); err != nil {
			p.fail(err)
			s.log.ErrorObj("source pass failed", "source_error", map[string]any{
				"source_id": src.ID,
				"error":     err.Error(),
			})
		}
		if ctx.Err() != nil {
			break
		}
	}
	p.wg.Wait()

	return p.result, errors.Join(p.errs...)
}

// pass holds the shared state of a single Run.
type pass struct {
	svc *Service
	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu     sync.Mutex
	result Result
	errs   []error
}

func (p *pass) fail(err error) {
	p.mu.Lock()
	p.errs = append(p.errs, err)
	p.mu.Unlock()
}

func (p *pass) count(fn func(r *Result)) {
	p.mu.Lock()
	fn(&p.result)
	p.mu.Unlock()
}

func (p *pass) runSource(ctx context.Context, src sources.Source) error {
	s := p.svc
	urls, err := sources.Resolve(ctx, s.registry, src)
	if err != nil {
		return fmt.Errorf("resolve source %s: %w", src.ID, err)
	}

	s.log.InfoObj("source resolved", "source_result", map[string]any{
		"source_id": src.ID,
		"urls":      len(urls),
	})

	delay := src.RequestDelay()
	submitted := false
	for _, target := range urls {
		if s.ledger != nil {
			recent, err := s.ledger.RecentlyCaptured(target)
			if err != nil {
				s.log.WarnObj("ledger lookup failed", "ledger_error", map[string]any{
					"url":   target,
					"error": err.Error(),
				})
			} else if recent {
				p.count(func(r *Result) { r.Skipped++ })
				continue
			}
		}

		if submitted && delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		if err := p.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		submitted = true
		p.count(func(r *Result) { r.Submitted++ })

		p.wg.Add(1)
		go func(target string) {
			defer p.wg.Done()
			defer p.sem.Release(1)

			if err := p.capture(ctx, src, target); err != nil {
				p.fail(err)
			}
		}(target)
	}
	return nil
}

// capture submits target, follows the job to a final status and publishes the outcome.
func (p *pass) capture(ctx context.Context, src sources.Source, target string) error {
	s := p.svc

	resp, err := s.client.RequestCapture(ctx, target, src.CaptureOptions())
	if err != nil {
		p.count(func(r *Result) { r.Failed++ })
		s.log.ErrorObj("capture request failed", "capture_error", map[string]any{
			"source_id": src.ID,
			"url":       target,
			"timeout":   spn.IsTimeout(err),
			"error":     err.Error(),
		})
		return fmt.Errorf("request capture %s: %w", target, err)
	}

	status, err := Watch(ctx, s.client, resp.JobID, s.pollInterval, func(pending spn.CapturePending) {
		s.log.DebugObj("capture pending", "capture_progress", map[string]any{
			"job_id":    resp.JobID,
			"resources": len(pending.Resources),
		})
	})
	if err != nil {
		p.count(func(r *Result) { r.Failed++ })
		return fmt.Errorf("watch capture %s: %w", target, err)
	}

	switch st := status.(type) {
	case spn.CaptureSuccess:
		p.count(func(r *Result) { r.Succeeded++ })
		s.log.InfoObj("capture completed", "capture_result", map[string]any{
			"source_id":   src.ID,
			"url":         target,
			"job_id":      resp.JobID,
			"archive_url": st.ArchiveURL(),
		})
		if s.ledger != nil {
			if err := s.ledger.MarkCaptured(target); err != nil {
				s.log.WarnObj("ledger update failed", "ledger_error", map[string]any{
					"url":   target,
					"error": err.Error(),
				})
			}
		}
	case spn.CaptureError:
		p.count(func(r *Result) { r.Failed++ })
		s.log.WarnObj("capture rejected", "capture_result", map[string]any{
			"source_id":  src.ID,
			"url":        target,
			"job_id":     resp.JobID,
			"status_ext": st.StatusExt,
			"message":    st.Message,
		})
	}

	if s.publisher == nil {
		return nil
	}
	evt := publishers.NewEvent(src.ID, target, resp.JobID, status)
	if _, err := s.publisher.Publish(ctx, evt); err != nil {
		return fmt.Errorf("publish capture %s: %w", target, err)
	}
	return nil
}
