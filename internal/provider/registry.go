package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("prdforge/provider")

const (
	// DefaultDeadline is the §4.6 per-request deadline.
	DefaultDeadline = 30 * time.Second
	maxAttempts      = 3
	baseBackoff      = 200 * time.Millisecond
)

// Registry is a thread-safe, priority-ordered provider chain with health
// tracking and call execution per §4.6.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     Clock
	metrics *Metrics
	log     *slog.Logger
}

type entry struct {
	provider Provider
	health   *health
}

// NewRegistry constructs an empty Registry. metrics and log may be nil, in
// which case calls are unobserved/unlogged.
func NewRegistry(metrics *Metrics, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		entries: make(map[string]*entry),
		now:     time.Now,
		metrics: metrics,
		log:     log,
	}
}

// Register adds a provider to the chain.
func (r *Registry) Register(p Provider) error {
	if p == nil || p.Name() == "" {
		return fmt.Errorf("provider and provider name are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[p.Name()]; exists {
		return fmt.Errorf("provider %q already registered", p.Name())
	}
	r.entries[p.Name()] = &entry{provider: p, health: newHealth(r.now())}
	return nil
}

// candidates returns providers satisfying maxPrivacy, IsAvailable(), and
// health, sorted by descending priority, ascending lastSuccessAt (LRU) as
// the tie-break to distribute load.
func (r *Registry) candidates(maxPrivacy PrivacyLevel) []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	out := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		if !e.provider.MaxPrivacyLevel().satisfies(maxPrivacy) {
			continue
		}
		if !e.provider.IsAvailable() || !e.health.isHealthy(now) {
			continue
		}
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool {
		pi, pj := out[i].provider.Priority(), out[j].provider.Priority()
		if pi != pj {
			return pi > pj
		}
		_, _, lastI := out[i].health.snapshot()
		_, _, lastJ := out[j].health.snapshot()
		return lastI.Before(lastJ)
	})
	return out
}

// selectChain returns the ordered fallback chain for one call: the preferred
// provider first (if available), then the remaining candidates in priority
// order, skipping any that IsAvailable()==false after an explicit-but-absent
// preference (logged as a warning).
func (r *Registry) selectChain(preferred string, maxPrivacy PrivacyLevel) ([]*entry, error) {
	cands := r.candidates(maxPrivacy)
	if len(cands) == 0 {
		return nil, ErrNoCandidate
	}
	if preferred == "" {
		return cands, nil
	}

	for i, e := range cands {
		if e.provider.Name() == preferred {
			chain := make([]*entry, 0, len(cands))
			chain = append(chain, e)
			chain = append(chain, cands[:i]...)
			chain = append(chain, cands[i+1:]...)
			return chain, nil
		}
	}

	r.log.Warn("preferred provider unavailable, falling back to priority order", "preferred", preferred)
	return cands, nil
}

// call is the shape of the operation threaded through executeChain so
// Generate and AnalyzeImage share one retry/fallback implementation.
type call func(ctx context.Context, p Provider) error

func (r *Registry) executeChain(ctx context.Context, preferred string, maxPrivacy PrivacyLevel, op call) error {
	chain, err := r.selectChain(preferred, maxPrivacy)
	if err != nil {
		return err
	}

	ctx, span := tracer.Start(ctx, "provider.execute")
	defer span.End()

	var lastErr error
	for i, e := range chain {
		if i > 0 && r.metrics != nil {
			r.metrics.Fallbacks.Inc()
		}
		span.SetAttributes(attribute.String("provider.name", e.provider.Name()))

		// The first candidate gets the full backoff budget; a candidate
		// reached only because its predecessor failed gets a single retry.
		attemptsLeft := maxAttempts
		if i > 0 {
			attemptsLeft = 1
		}
		for attemptsLeft > 0 {
			deadlineCtx, cancel := context.WithTimeout(ctx, DefaultDeadline)
			start := r.now()
			callErr := op(deadlineCtx, e.provider)
			elapsed := r.now().Sub(start)
			cancel()

			r.observe(e, callErr, elapsed)

			if callErr == nil {
				return nil
			}
			lastErr = callErr
			attemptsLeft--
			if !IsTransient(callErr) || attemptsLeft == 0 {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(baseBackoff << (maxAttempts - attemptsLeft - 1)):
			}
		}
		// Definitive (or retry-exhausted) failure: one more try on the next
		// candidate, handled by the outer loop continuing.
	}

	span.SetStatus(codes.Error, "provider chain exhausted")
	return fmt.Errorf("provider chain exhausted: %w", lastErr)
}

func (r *Registry) observe(e *entry, callErr error, elapsed time.Duration) {
	now := r.now()
	outcome := "success"
	if callErr != nil {
		outcome = "failure"
		e.health.recordFailure(now)
	} else {
		e.health.recordSuccess(now, elapsed)
	}
	if r.metrics != nil {
		r.metrics.CallsTotal.WithLabelValues(e.provider.Name(), outcome).Inc()
		r.metrics.CallDuration.WithLabelValues(e.provider.Name()).Observe(elapsed.Seconds())
		healthy := 0.0
		if e.health.isHealthy(now) {
			healthy = 1.0
		}
		r.metrics.Healthy.WithLabelValues(e.provider.Name()).Set(healthy)
	}
}

// Generate runs a GenerateRequest through the fallback chain.
func (r *Registry) Generate(ctx context.Context, preferred string, maxPrivacy PrivacyLevel, req GenerateRequest) (*GenerateResponse, error) {
	var resp *GenerateResponse
	err := r.executeChain(ctx, preferred, maxPrivacy, func(ctx context.Context, p Provider) error {
		r, err := p.Generate(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	return resp, err
}

// AnalyzeImage runs an AnalyzeImageRequest through the fallback chain.
func (r *Registry) AnalyzeImage(ctx context.Context, preferred string, maxPrivacy PrivacyLevel, req AnalyzeImageRequest) (*AnalyzeImageResponse, error) {
	var resp *AnalyzeImageResponse
	err := r.executeChain(ctx, preferred, maxPrivacy, func(ctx context.Context, p Provider) error {
		r, err := p.AnalyzeImage(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	return resp, err
}

// Status reports current health for observability surfaces (health checks,
// admin endpoints).
type Status struct {
	Name            string
	Priority        int
	Healthy         bool
	FailureCount    int
	AvgResponseTime time.Duration
	LastSuccessAt   time.Time
}

// Statuses returns the current health snapshot for every registered provider.
func (r *Registry) Statuses() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	out := make([]Status, 0, len(r.entries))
	for _, e := range r.entries {
		failureCount, avg, lastSuccess := e.health.snapshot()
		out = append(out, Status{
			Name:            e.provider.Name(),
			Priority:        e.provider.Priority(),
			Healthy:         e.health.isHealthy(now),
			FailureCount:    failureCount,
			AvgResponseTime: avg,
			LastSuccessAt:   lastSuccess,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
