package upstream

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/modelgate/modelgate/logger"
)

// Config describes one upstream endpoint for a vendor.
type Config struct {
	Name     string            `json:"name"`
	Provider string            `json:"provider"`
	BaseURL  string            `json:"base_url"`
	KeyID    string            `json:"key_id"`
	Priority int               `json:"priority"`
	Enabled  bool              `json:"enabled"`
	Models   []string          `json:"models,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
}

// SupportsModel reports whether the upstream serves the model. An empty
// model list means every model of the vendor.
func (c *Config) SupportsModel(model string) bool {
	if len(c.Models) == 0 {
		return true
	}
	for _, m := range c.Models {
		if strings.EqualFold(m, model) {
			return true
		}
	}
	return false
}

// Upstream pairs an endpoint's configuration with its live statistics.
type Upstream struct {
	Config Config
	Stats  *Stats
}

// Strategy names accepted by Select.
const (
	StrategyPriority    = "priority"
	StrategyRoundRobin  = "round_robin"
	StrategyRandom      = "random"
	StrategyHealthBased = "health_based"
)

// ProbeFunc checks whether an upstream is reachable and its credential
// usable. Wired by the caller, typically to an auth validation probe.
type ProbeFunc func(ctx context.Context, u *Upstream) bool

// Registry holds the configured upstreams and picks one per request.
type Registry struct {
	mu        sync.RWMutex
	upstreams map[string]*Upstream
	probe     ProbeFunc
}

func NewRegistry(probe ProbeFunc) *Registry {
	return &Registry{
		upstreams: make(map[string]*Upstream),
		probe:     probe,
	}
}

// Add registers an upstream under its configured name.
func (r *Registry) Add(cfg Config) *Upstream {
	u := &Upstream{Config: cfg, Stats: NewStats()}
	r.mu.Lock()
	r.upstreams[cfg.Name] = u
	r.mu.Unlock()
	return u
}

func (r *Registry) Get(name string) (*Upstream, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.upstreams[name]
	return u, ok
}

// List returns every registered upstream, enabled or not.
func (r *Registry) List() []*Upstream {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Upstream, 0, len(r.upstreams))
	for _, u := range r.upstreams {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Config.Name < out[j].Config.Name })
	return out
}

// candidates returns the enabled upstreams serving the model, sorted by
// ascending priority value.
func (r *Registry) candidates(model string) []*Upstream {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Upstream
	for _, u := range r.upstreams {
		if u.Config.Enabled && u.Config.SupportsModel(model) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Config.Priority != out[j].Config.Priority {
			return out[i].Config.Priority < out[j].Config.Priority
		}
		return out[i].Config.Name < out[j].Config.Name
	})
	return out
}

// Select picks an upstream for the model. Unknown strategies fall back to
// priority order. Returns nil when no enabled upstream serves the model.
func (r *Registry) Select(model, strategy string) *Upstream {
	candidates := r.candidates(model)
	if len(candidates) == 0 {
		return nil
	}

	switch strategy {
	case StrategyRoundRobin:
		least := candidates[0]
		for _, u := range candidates[1:] {
			if u.Stats.TotalRequests() < least.Stats.TotalRequests() {
				least = u
			}
		}
		return least

	case StrategyRandom:
		return candidates[rand.Intn(len(candidates))]

	case StrategyHealthBased:
		var healthy []*Upstream
		for _, u := range candidates {
			if u.Stats.Status() == StatusHealthy {
				healthy = append(healthy, u)
			}
		}
		if len(healthy) == 0 {
			return candidates[0]
		}
		best := healthy[0]
		for _, u := range healthy[1:] {
			if u.Stats.SuccessRate() > best.Stats.SuccessRate() {
				best = u
			}
		}
		return best

	default:
		return candidates[0]
	}
}

// HealthCheck probes every enabled upstream, marking unreachable ones
// offline. Returns the per-upstream outcome.
func (r *Registry) HealthCheck(ctx context.Context) map[string]bool {
	results := make(map[string]bool)
	for _, u := range r.List() {
		if !u.Config.Enabled || r.probe == nil {
			continue
		}
		ok := r.probe(ctx, u)
		results[u.Config.Name] = ok
		if !ok {
			u.Stats.MarkOffline()
			logger.Log.Warn("upstream failed health check",
				zap.String("upstream", u.Config.Name),
				zap.String("provider", u.Config.Provider))
		}
	}
	return results
}

// Overall summarizes the registry for reporting.
type Overall struct {
	TotalUpstreams   int                 `json:"total_upstreams"`
	EnabledUpstreams int                 `json:"enabled_upstreams"`
	Upstreams        map[string]Snapshot `json:"upstreams"`
}

func (r *Registry) OverallStats() Overall {
	out := Overall{Upstreams: make(map[string]Snapshot)}
	for _, u := range r.List() {
		out.TotalUpstreams++
		if u.Config.Enabled {
			out.EnabledUpstreams++
		}
		out.Upstreams[u.Config.Name] = u.Stats.Snapshot()
	}
	return out
}
