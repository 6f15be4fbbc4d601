// Package heartbeat periodically probes live providers and logs when one
// changes between healthy and unhealthy. It never removes or restarts a
// provider.
package heartbeat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	robfigcron "github.com/robfig/cron/v3"

	"github.com/crystaldolphin/toolhub/internal/schema"
)

// DefaultSchedule probes every 30 seconds.
const DefaultSchedule = "@every 30s"

// HealthChecker probes every live provider once.
type HealthChecker interface {
	CheckHealth(ctx context.Context) []schema.ProviderHealth
}

// Service runs CheckHealth on a cron schedule.
type Service struct {
	checker  HealthChecker
	schedule robfigcron.Schedule
	spec     string
	logger   *slog.Logger

	mu     sync.Mutex
	last   map[string]schema.ProviderHealth
	robfig *robfigcron.Cron
}

// NewService parses spec (standard five-field cron or a descriptor such as
// "@every 1m"). An empty spec means DefaultSchedule.
func NewService(checker HealthChecker, spec string, logger *slog.Logger) (*Service, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	parser := robfigcron.NewParser(
		robfigcron.Minute | robfigcron.Hour | robfigcron.Dom | robfigcron.Month | robfigcron.Dow | robfigcron.Descriptor,
	)
	sched, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: heartbeat schedule %q: %v", schema.ErrInvalidConfig, spec, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		checker:  checker,
		schedule: sched,
		spec:     spec,
		logger:   logger.With("component", "heartbeat"),
		last:     make(map[string]schema.ProviderHealth),
	}, nil
}

// Start runs the probe loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	s.robfig = robfigcron.New()
	s.robfig.Schedule(s.schedule, robfigcron.FuncJob(func() { s.Check(ctx) }))
	s.robfig.Start()
	s.mu.Unlock()

	s.logger.Info("heartbeat: started", "schedule", s.spec)
	<-ctx.Done()

	<-s.robfig.Stop().Done()
	s.logger.Info("heartbeat: stopped")
	return ctx.Err()
}

// Check probes once and records transitions. Providers no longer present
// are forgotten.
func (s *Service) Check(ctx context.Context) []schema.ProviderHealth {
	results := s.checker.CheckHealth(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(results))
	for _, h := range results {
		seen[h.Name] = true
		prev, known := s.last[h.Name]
		switch {
		case !known && !h.Healthy:
			s.logger.Warn("provider unhealthy", "provider", h.Name, "err", h.Error)
		case known && prev.Healthy && !h.Healthy:
			s.logger.Warn("provider became unhealthy", "provider", h.Name, "err", h.Error)
		case known && !prev.Healthy && h.Healthy:
			s.logger.Info("provider recovered", "provider", h.Name, "latency", h.Latency)
		default:
			s.logger.Debug("provider probed", "provider", h.Name, "healthy", h.Healthy, "latency", h.Latency)
		}
		s.last[h.Name] = h
	}
	for name := range s.last {
		if !seen[name] {
			delete(s.last, name)
		}
	}
	return results
}

// Last returns the most recent result for each provider.
func (s *Service) Last() map[string]schema.ProviderHealth {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]schema.ProviderHealth, len(s.last))
	for k, v := range s.last {
		out[k] = v
	}
	return out
}
