package upstream

import (
	"context"
	"testing"
	"time"
)

func testRegistry(probe ProbeFunc) *Registry {
	r := NewRegistry(probe)
	r.Add(Config{Name: "gemini-0", Provider: "gemini", Priority: 1, Enabled: true})
	r.Add(Config{Name: "gemini-1", Provider: "gemini", Priority: 2, Enabled: true})
	r.Add(Config{Name: "claude-0", Provider: "claude", Priority: 1, Enabled: true,
		Models: []string{"claude-3-opus"}})
	r.Add(Config{Name: "disabled-0", Provider: "gemini", Priority: 0, Enabled: false})
	return r
}

func TestConfigSupportsModel(t *testing.T) {
	open := Config{}
	if !open.SupportsModel("anything") {
		t.Fatal("empty model list must accept every model")
	}
	scoped := Config{Models: []string{"gemini-pro"}}
	if !scoped.SupportsModel("Gemini-Pro") {
		t.Fatal("model match must be case-insensitive")
	}
	if scoped.SupportsModel("gpt-4") {
		t.Fatal("unlisted model must be rejected")
	}
}

func TestRegistrySelectPriority(t *testing.T) {
	r := testRegistry(nil)

	u := r.Select("gemini-pro", StrategyPriority)
	if u == nil || u.Config.Name != "gemini-0" {
		t.Fatalf("priority pick = %+v, want gemini-0", u)
	}

	// Unknown strategies fall back to priority.
	u = r.Select("gemini-pro", "bogus")
	if u == nil || u.Config.Name != "gemini-0" {
		t.Fatalf("fallback pick = %+v, want gemini-0", u)
	}

	if u := r.Select("claude-3-opus", StrategyPriority); u == nil || u.Config.Name != "claude-0" {
		t.Fatalf("model-scoped pick = %+v, want claude-0", u)
	}
}

func TestRegistrySelectNoCandidates(t *testing.T) {
	r := NewRegistry(nil)
	r.Add(Config{Name: "off", Provider: "gemini", Enabled: false})
	if u := r.Select("gemini-pro", StrategyPriority); u != nil {
		t.Fatalf("disabled upstream selected: %+v", u)
	}
}

func TestRegistrySelectRoundRobin(t *testing.T) {
	r := testRegistry(nil)

	first := r.Select("gemini-pro", StrategyRoundRobin)
	first.Stats.Record(true, 0, time.Millisecond)

	second := r.Select("gemini-pro", StrategyRoundRobin)
	if second.Config.Name == first.Config.Name {
		t.Fatalf("round robin picked %s twice in a row", first.Config.Name)
	}
}

func TestRegistrySelectHealthBased(t *testing.T) {
	r := testRegistry(nil)

	g0, _ := r.Get("gemini-0")
	g1, _ := r.Get("gemini-1")
	for i := 0; i < 10; i++ {
		g0.Stats.Record(false, 0, time.Millisecond)
		g1.Stats.Record(true, 0, time.Millisecond)
	}

	u := r.Select("gemini-pro", StrategyHealthBased)
	if u.Config.Name != "gemini-1" {
		t.Fatalf("health pick = %s, want gemini-1", u.Config.Name)
	}

	// With no healthy candidate the best-priority one still serves.
	for i := 0; i < 40; i++ {
		g1.Stats.Record(false, 0, time.Millisecond)
	}
	u = r.Select("gemini-pro", StrategyHealthBased)
	if u == nil || u.Config.Name != "gemini-0" {
		t.Fatalf("degraded pick = %+v, want gemini-0", u)
	}
}

func TestRegistryHealthCheck(t *testing.T) {
	probed := map[string]bool{}
	r := testRegistry(func(ctx context.Context, u *Upstream) bool {
		probed[u.Config.Name] = true
		return u.Config.Provider != "claude"
	})

	results := r.HealthCheck(context.Background())
	if probed["disabled-0"] {
		t.Fatal("disabled upstream must not be probed")
	}
	if !results["gemini-0"] || !results["gemini-1"] || results["claude-0"] {
		t.Fatalf("results = %v", results)
	}

	claude, _ := r.Get("claude-0")
	if claude.Stats.Status() != StatusOffline {
		t.Fatalf("failed upstream status = %s, want offline", claude.Stats.Status())
	}
}

func TestRegistryOverallStats(t *testing.T) {
	r := testRegistry(nil)
	u, _ := r.Get("gemini-0")
	u.Stats.Record(true, 42, time.Millisecond)

	overall := r.OverallStats()
	if overall.TotalUpstreams != 4 || overall.EnabledUpstreams != 3 {
		t.Fatalf("overall = %+v", overall)
	}
	if overall.Upstreams["gemini-0"].TotalTokens != 42 {
		t.Fatalf("snapshot = %+v", overall.Upstreams["gemini-0"])
	}
}
