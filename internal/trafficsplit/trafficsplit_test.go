package trafficsplit

import (
	"errors"
	"sync"
	"testing"

	"github.com/hollowverse/releasemanager/internal/directory"
	"github.com/hollowverse/releasemanager/internal/environments"
	"github.com/hollowverse/releasemanager/internal/rollout"
)

const (
	googlebot = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
	chrome    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

type mapDirectory map[string]string

func (m mapDirectory) Lookup(name string) (string, bool) {
	url, ok := m[name]
	return url, ok
}

// fixedSelector always picks name and counts calls.
type fixedSelector struct {
	mu    sync.Mutex
	name  string
	calls int
}

func (f *fixedSelector) Pick() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.name
}

func testTable() *environments.WeightTable {
	return environments.MustWeightTable(
		environments.Weight{Name: "master", Weight: 0.75},
		environments.Weight{Name: "beta", Weight: 0.25},
	)
}

func testDirectory() mapDirectory {
	return mapDirectory{
		"master": "master.example.com",
		"beta":   "beta.example.com",
	}
}

func newResolver(t *testing.T, sel rollout.Selector, dir Directory, opts ...Option) *Resolver {
	t.Helper()
	r, err := New(testTable(), sel, dir, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return r
}

func TestNew_RequiresDefault(t *testing.T) {
	_, err := New(testTable(), &fixedSelector{name: "beta"}, mapDirectory{"beta": "b"})
	if !errors.Is(err, directory.ErrDefaultUnresolvable) {
		t.Errorf("Expected ErrDefaultUnresolvable, got %v", err)
	}
}

func TestResolve_BotsGetDefault(t *testing.T) {
	sel := &fixedSelector{name: "beta"}
	r := newResolver(t, sel, testDirectory())

	for i := 0; i < 100; i++ {
		for _, requested := range []string{"", "beta", "nonExistent"} {
			res, outcome := r.ResolveWithOutcome(requested, googlebot)
			if res.Name != "master" || res.URL != "master.example.com" {
				t.Fatalf("Expected bot to get master, got %+v (requested %q)", res, requested)
			}
			if outcome != OutcomeBot {
				t.Fatalf("Expected outcome %s, got %s", OutcomeBot, outcome)
			}
		}
	}
	if sel.calls != 0 {
		t.Errorf("Expected selector not to be used for bots, got %d calls", sel.calls)
	}
}

func TestResolve_CustomBotClassifier(t *testing.T) {
	r := newResolver(t, &fixedSelector{name: "beta"}, testDirectory(),
		WithBotClassifier(func(ua string) bool { return ua == "probe" }))

	if res := r.Resolve("beta", "probe"); res.Name != "master" {
		t.Errorf("Expected probe to get master, got %s", res.Name)
	}
	if res := r.Resolve("beta", googlebot); res.Name != "beta" {
		t.Errorf("Expected custom classifier to ignore googlebot, got %s", res.Name)
	}
}

func TestResolve_RequestedPassThrough(t *testing.T) {
	sel := &fixedSelector{name: "master"}
	r := newResolver(t, sel, testDirectory())

	for i := 0; i < 100; i++ {
		res := r.Resolve("beta", chrome)
		if res.Name != "beta" || res.URL != "beta.example.com" {
			t.Fatalf("Expected beta, got %+v", res)
		}
	}
	if sel.calls != 0 {
		t.Errorf("Expected selector not to be used for a pinned session, got %d calls", sel.calls)
	}
}

func TestResolve_UnknownRequestedPicksFresh(t *testing.T) {
	r := newResolver(t, rollout.NewWeightedSelector(testTable()), testDirectory())

	for i := 0; i < 200; i++ {
		res, outcome := r.ResolveWithOutcome("nonExistent", chrome)
		if res.Name != "master" && res.Name != "beta" {
			t.Fatalf("Expected master or beta, got %s", res.Name)
		}
		if outcome != OutcomeAssigned {
			t.Fatalf("Expected outcome %s, got %s", OutcomeAssigned, outcome)
		}
	}
}

func TestResolve_NoUserAgent(t *testing.T) {
	r := newResolver(t, &fixedSelector{name: "beta"}, testDirectory())

	if res := r.Resolve("", ""); res.Name != "beta" {
		t.Errorf("Expected weighted pick for empty user agent, got %s", res.Name)
	}
}

func TestResolve_DirectoryMissFallsBackToDefault(t *testing.T) {
	dir := mapDirectory{"master": "master.example.com"}
	r := newResolver(t, &fixedSelector{name: "beta"}, dir)

	res, outcome := r.ResolveWithOutcome("beta", chrome)
	if res.Name != "master" || res.URL != "master.example.com" {
		t.Errorf("Expected fallback to master, got %+v", res)
	}
	if outcome != OutcomeFallback {
		t.Errorf("Expected outcome %s, got %s", OutcomeFallback, outcome)
	}

	res = r.Resolve("", chrome)
	if res.Name != "master" {
		t.Errorf("Expected fresh pick of missing beta to fall back to master, got %s", res.Name)
	}
}

func TestResolve_Distribution(t *testing.T) {
	r := newResolver(t, rollout.NewWeightedSelector(testTable()), testDirectory())

	const trials = 1000
	master := 0
	for i := 0; i < trials; i++ {
		if r.Resolve("", chrome).Name == "master" {
			master++
		}
	}

	share := float64(master) / trials
	if share < 0.70 || share > 0.80 {
		t.Errorf("Expected master share in [0.70, 0.80], got %.3f", share)
	}
}

func TestIsBot(t *testing.T) {
	if !IsBot(googlebot) {
		t.Error("Expected Googlebot to be classified as a bot")
	}
	if IsBot(chrome) {
		t.Error("Expected Chrome not to be classified as a bot")
	}
}
