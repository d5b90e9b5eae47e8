package page

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/kalambet/bizpulse/internal/analysis"
	"github.com/kalambet/bizpulse/internal/cache"
	"github.com/kalambet/bizpulse/internal/completion"
	"github.com/kalambet/bizpulse/internal/composer"
	"github.com/kalambet/bizpulse/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- Fakes ---

type fakeCompleter struct {
	mu    sync.Mutex
	calls []string // last message content of each call
	reply func(call int) (string, error)

	// block, if set, is received from before replying.
	block chan struct{}
	// started, if set, is closed when the first call begins.
	started chan struct{}
	once    sync.Once
}

func (f *fakeCompleter) Complete(ctx context.Context, msgs []completion.Message) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, msgs[len(msgs)-1].Content)
	n := len(f.calls)
	f.mu.Unlock()

	if f.started != nil {
		f.once.Do(func() { close(f.started) })
	}
	if f.block != nil {
		<-f.block
	}
	if f.reply == nil {
		return "analysis", nil
	}
	return f.reply(n)
}

func (f *fakeCompleter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type exporterFunc func(ctx context.Context, kind analysis.Kind, business, text string) ([]byte, error)

func (f exporterFunc) Export(ctx context.Context, kind analysis.Kind, business, text string) ([]byte, error) {
	return f(ctx, kind, business, text)
}

type harness struct {
	ctrl   *Controller
	fc     *fakeCompleter
	store  *storage.Store
	cache  *cache.Cache
	states []State
}

func newHarness(t *testing.T, kindName string, fc *fakeCompleter) *harness {
	t.Helper()
	kind, ok := analysis.Lookup(kindName)
	if !ok {
		t.Fatalf("unknown kind %q", kindName)
	}
	st, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	comp, err := composer.New()
	if err != nil {
		t.Fatalf("composer.New: %v", err)
	}

	h := &harness{fc: fc, store: st, cache: cache.New(st)}
	var mu sync.Mutex
	h.ctrl = New(kind, Deps{
		Composer:  comp,
		Completer: fc,
		Cache:     h.cache,
		Observer: func(s Snapshot) {
			mu.Lock()
			h.states = append(h.states, s.State)
			mu.Unlock()
		},
	})
	return h
}

// --- Tests ---

func TestFirstAnalysisFetchesAndCaches(t *testing.T) {
	fc := &fakeCompleter{reply: func(int) (string, error) {
		return "Social Impact\n1. Community Benefits", nil
	}}
	h := newHarness(t, analysis.FeaturePriority, fc)

	if s := h.ctrl.Snapshot(); s.State != Idle {
		t.Fatalf("initial state = %v, want idle", s.State)
	}

	s := h.ctrl.OnInputCommitted(context.Background(), "Acme Robotics")

	if s.State != Ready {
		t.Errorf("state = %v, want ready", s.State)
	}
	if s.Text != "Social Impact\n1. Community Benefits" {
		t.Errorf("text = %q", s.Text)
	}
	if s.LastAnalyzed != "Acme Robotics" {
		t.Errorf("last analyzed = %q, want %q", s.LastAnalyzed, "Acme Robotics")
	}
	if fc.count() != 1 {
		t.Errorf("completion calls = %d, want 1", fc.count())
	}
	if want := []State{Loading, Ready}; !equalStates(h.states, want) {
		t.Errorf("transitions = %v, want %v", h.states, want)
	}

	got, err := h.store.Get("featureAnalysis_Acme Robotics")
	if err != nil {
		t.Fatalf("cache record: %v", err)
	}
	if got != s.Text {
		t.Errorf("cached = %q, want %q", got, s.Text)
	}
}

func TestCachedInputMakesNoCall(t *testing.T) {
	fc := &fakeCompleter{}
	h := newHarness(t, analysis.FeaturePriority, fc)
	h.cache.Store("featureAnalysis", "Acme Robotics", "from cache")

	s := h.ctrl.OnInputCommitted(context.Background(), "Acme Robotics")

	if s.State != Cached {
		t.Errorf("state = %v, want cached", s.State)
	}
	if s.Text != "from cache" {
		t.Errorf("text = %q, want %q", s.Text, "from cache")
	}
	if s.LastAnalyzed != "Acme Robotics" {
		t.Errorf("last analyzed = %q", s.LastAnalyzed)
	}
	if fc.count() != 0 {
		t.Errorf("completion calls = %d, want 0", fc.count())
	}
}

func TestRecommitIsIdempotent(t *testing.T) {
	fc := &fakeCompleter{}
	h := newHarness(t, analysis.FeedbackCollection, fc)
	ctx := context.Background()

	h.ctrl.OnInputCommitted(ctx, "Acme Robotics")
	s := h.ctrl.OnInputCommitted(ctx, "Acme Robotics")

	if fc.count() != 1 {
		t.Errorf("completion calls = %d, want 1", fc.count())
	}
	if s.State != Cached {
		t.Errorf("state = %v, want cached", s.State)
	}
}

func TestBlankInput(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\t"} {
		fc := &fakeCompleter{}
		h := newHarness(t, analysis.JourneyMapping, fc)

		s := h.ctrl.OnInputCommitted(context.Background(), in)
		if s.State != Idle {
			t.Errorf("input %q: state = %v, want idle", in, s.State)
		}
		if s = h.ctrl.Submit(context.Background()); s.State != Idle {
			t.Errorf("input %q: submit state = %v, want idle", in, s.State)
		}
		if fc.count() != 0 {
			t.Errorf("input %q: completion calls = %d, want 0", in, fc.count())
		}
	}
}

func TestFailureShowsStaticMessage(t *testing.T) {
	fc := &fakeCompleter{reply: func(int) (string, error) {
		return "", &completion.RequestError{StatusCode: 503, Status: "503 Service Unavailable"}
	}}
	h := newHarness(t, analysis.FeaturePriority, fc)

	s := h.ctrl.OnInputCommitted(context.Background(), "Acme Robotics")

	if s.State != Failed {
		t.Fatalf("state = %v, want failed", s.State)
	}
	if s.Error != "Failed to get analysis. Please try again." {
		t.Errorf("error = %q", s.Error)
	}
	if s.Hint != RetryHint {
		t.Errorf("hint = %q", s.Hint)
	}
	if s.Text != "" {
		t.Errorf("text = %q, want empty", s.Text)
	}
	if strings.Contains(s.Error, "503") {
		t.Errorf("error leaks status: %q", s.Error)
	}
	if _, err := h.store.Get("featureAnalysis_Acme Robotics"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("cache record after failure: err = %v, want ErrNotFound", err)
	}
}

func TestMarketFailureWording(t *testing.T) {
	fc := &fakeCompleter{reply: func(int) (string, error) { return "", errors.New("boom") }}
	h := newHarness(t, analysis.MarketAssessment, fc)

	s := h.ctrl.OnInputCommitted(context.Background(), "Acme Robotics")
	if s.Error != "Failed to get assessment. Please try again." {
		t.Errorf("error = %q", s.Error)
	}
}

func TestFailedInputNotRetriedAutomatically(t *testing.T) {
	fc := &fakeCompleter{reply: func(n int) (string, error) {
		if n == 1 {
			return "", errors.New("boom")
		}
		return "second try", nil
	}}
	h := newHarness(t, analysis.FeaturePriority, fc)
	ctx := context.Background()

	h.ctrl.OnInputCommitted(ctx, "Acme Robotics")
	s := h.ctrl.OnInputCommitted(ctx, "Acme Robotics")
	if fc.count() != 1 {
		t.Fatalf("completion calls after recommit = %d, want 1", fc.count())
	}
	if s.State != Failed {
		t.Errorf("state = %v, want failed", s.State)
	}

	s = h.ctrl.Submit(ctx)
	if fc.count() != 2 {
		t.Fatalf("completion calls after submit = %d, want 2", fc.count())
	}
	if s.State != Ready || s.Text != "second try" {
		t.Errorf("after submit = (%v, %q), want (ready, %q)", s.State, s.Text, "second try")
	}
}

func TestMountRetriesFailedInput(t *testing.T) {
	fc := &fakeCompleter{reply: func(n int) (string, error) {
		if n == 1 {
			return "", errors.New("503 Service Unavailable")
		}
		return "second try", nil
	}}
	h := newHarness(t, analysis.FeaturePriority, fc)
	ctx := context.Background()

	if s := h.ctrl.Mount(ctx, "Acme Robotics"); s.State != Failed {
		t.Fatalf("first mount state = %v, want failed", s.State)
	}
	s := h.ctrl.Mount(ctx, "Acme Robotics")
	if fc.count() != 2 {
		t.Fatalf("completion calls after remount = %d, want 2", fc.count())
	}
	if s.State != Ready || s.Text != "second try" {
		t.Errorf("after remount = (%v, %q), want (ready, %q)", s.State, s.Text, "second try")
	}

	// Once cached, remounting is served without a call.
	if s := h.ctrl.Mount(ctx, "Acme Robotics"); s.State != Cached {
		t.Errorf("third mount state = %v, want cached", s.State)
	}
	if fc.count() != 2 {
		t.Errorf("completion calls = %d, want 2", fc.count())
	}
}

func TestMountRefetchesMissingRecord(t *testing.T) {
	fc := &fakeCompleter{}
	h := newHarness(t, analysis.JourneyMapping, fc)
	ctx := context.Background()

	h.ctrl.Mount(ctx, "Acme Robotics")
	if err := h.store.Delete("journeyMapping_Acme Robotics"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	s := h.ctrl.Mount(ctx, "Acme Robotics")
	if fc.count() != 2 {
		t.Errorf("completion calls = %d, want 2", fc.count())
	}
	if s.State != Ready {
		t.Errorf("state = %v, want ready", s.State)
	}
}

func TestMountWhileLoadingMakesNoCall(t *testing.T) {
	fc := &fakeCompleter{block: make(chan struct{}), started: make(chan struct{})}
	h := newHarness(t, analysis.FeaturePriority, fc)
	ctx := context.Background()

	done := make(chan Snapshot)
	go func() { done <- h.ctrl.Mount(ctx, "Acme Robotics") }()
	<-fc.started

	s := h.ctrl.Mount(ctx, "Acme Robotics")
	if s.State != Loading {
		t.Errorf("mount while loading: state = %v, want loading", s.State)
	}
	if s.LastAnalyzed != "Acme Robotics" {
		t.Errorf("last analyzed = %q, want it kept while loading", s.LastAnalyzed)
	}

	close(fc.block)
	if s := <-done; s.State != Ready {
		t.Errorf("first mount state = %v, want ready", s.State)
	}
	if fc.count() != 1 {
		t.Errorf("completion calls = %d, want 1", fc.count())
	}
}

func TestSubmitServesCacheForSameInput(t *testing.T) {
	fc := &fakeCompleter{}
	h := newHarness(t, analysis.FeaturePriority, fc)
	ctx := context.Background()

	h.ctrl.OnInputCommitted(ctx, "Acme Robotics")
	s := h.ctrl.Submit(ctx)

	if fc.count() != 1 {
		t.Errorf("completion calls = %d, want 1", fc.count())
	}
	if s.State != Cached {
		t.Errorf("state = %v, want cached", s.State)
	}
}

func TestSubmitUsesLiveInput(t *testing.T) {
	fc := &fakeCompleter{}
	h := newHarness(t, analysis.FeaturePriority, fc)
	ctx := context.Background()

	h.ctrl.OnInputCommitted(ctx, "Acme Robotics")
	h.ctrl.SetInput("Globex Shipping")
	if fc.count() != 1 {
		t.Fatalf("SetInput triggered a call: calls = %d", fc.count())
	}

	s := h.ctrl.Submit(ctx)
	if fc.count() != 2 {
		t.Errorf("completion calls = %d, want 2", fc.count())
	}
	if s.DisplayedInput != "Globex Shipping" || s.LastAnalyzed != "Globex Shipping" {
		t.Errorf("after submit = %+v", s)
	}
}

func TestInputChangeFetchesNewInput(t *testing.T) {
	fc := &fakeCompleter{}
	h := newHarness(t, analysis.FeaturePriority, fc)
	ctx := context.Background()

	h.ctrl.OnInputCommitted(ctx, "Acme Robotics")
	h.ctrl.OnInputCommitted(ctx, "Globex Shipping")

	if fc.count() != 2 {
		t.Fatalf("completion calls = %d, want 2", fc.count())
	}
	for _, in := range []string{"Acme Robotics", "Globex Shipping"} {
		if _, ok, _ := h.cache.Lookup("featureAnalysis", in); !ok {
			t.Errorf("no cache record for %q", in)
		}
	}
}

func TestLoadingRejectsSecondFetch(t *testing.T) {
	fc := &fakeCompleter{block: make(chan struct{}), started: make(chan struct{})}
	h := newHarness(t, analysis.FeaturePriority, fc)
	ctx := context.Background()

	done := make(chan Snapshot)
	go func() { done <- h.ctrl.OnInputCommitted(ctx, "Acme Robotics") }()
	<-fc.started

	if s := h.ctrl.Submit(ctx); s.State != Loading {
		t.Errorf("submit while loading: state = %v, want loading", s.State)
	}
	if s := h.ctrl.OnInputCommitted(ctx, "Globex Shipping"); s.State != Loading {
		t.Errorf("commit while loading: state = %v, want loading", s.State)
	}

	close(fc.block)
	<-done

	if fc.count() != 1 {
		t.Errorf("completion calls = %d, want 1", fc.count())
	}
}

func TestStaleResultLandsUnderCapturedInput(t *testing.T) {
	fc := &fakeCompleter{block: make(chan struct{}), started: make(chan struct{})}
	fc.reply = func(int) (string, error) { return "acme result", nil }
	h := newHarness(t, analysis.FeaturePriority, fc)
	ctx := context.Background()

	done := make(chan Snapshot)
	go func() { done <- h.ctrl.OnInputCommitted(ctx, "Acme Robotics") }()
	<-fc.started

	h.ctrl.OnInputCommitted(ctx, "Globex Shipping")
	close(fc.block)
	s := <-done

	if s.Input != "Globex Shipping" {
		t.Errorf("live input = %q, want %q", s.Input, "Globex Shipping")
	}
	if s.DisplayedInput != "Acme Robotics" || s.Text != "acme result" {
		t.Errorf("displayed = (%q, %q), want acme result", s.DisplayedInput, s.Text)
	}
	if got, _ := h.store.Get("featureAnalysis_Acme Robotics"); got != "acme result" {
		t.Errorf("acme record = %q", got)
	}
	if _, err := h.store.Get("featureAnalysis_Globex Shipping"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("globex record: err = %v, want ErrNotFound", err)
	}

	// The report names the business the shown text was generated for.
	var business string
	_, err := h.ctrl.Export(ctx, exporterFunc(func(_ context.Context, _ analysis.Kind, b, _ string) ([]byte, error) {
		business = b
		return []byte("%PDF"), nil
	}))
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if business != "Acme Robotics" {
		t.Errorf("exported business = %q, want %q", business, "Acme Robotics")
	}
}

func TestJourneyMappingStripsMarkdown(t *testing.T) {
	fc := &fakeCompleter{reply: func(int) (string, error) {
		return "**Awareness** _stage_ `code` ~gone~", nil
	}}
	h := newHarness(t, analysis.JourneyMapping, fc)

	s := h.ctrl.OnInputCommitted(context.Background(), "Acme Robotics")
	if s.Text != "Awareness stage code gone" {
		t.Errorf("text = %q", s.Text)
	}
	if got, _ := h.store.Get("journeyMapping_Acme Robotics"); got != s.Text {
		t.Errorf("cached = %q, want cleaned text", got)
	}
}

func TestPromptCarriesInputVerbatim(t *testing.T) {
	fc := &fakeCompleter{}
	h := newHarness(t, analysis.MarketAssessment, fc)

	in := `Acme "Robotics" & <Sons>`
	h.ctrl.OnInputCommitted(context.Background(), in)

	if fc.count() != 1 || !strings.Contains(fc.calls[0], in) {
		t.Errorf("prompt = %q, want it to contain %q", fc.calls, in)
	}
}

func TestExport(t *testing.T) {
	fc := &fakeCompleter{reply: func(int) (string, error) { return "body", nil }}
	h := newHarness(t, analysis.FeaturePriority, fc)
	ctx := context.Background()

	var gotBusiness, gotText string
	exp := exporterFunc(func(_ context.Context, _ analysis.Kind, business, text string) ([]byte, error) {
		gotBusiness, gotText = business, text
		return []byte("%PDF"), nil
	})

	if _, err := h.ctrl.Export(ctx, exp); !errors.Is(err, ErrNothingDisplayed) {
		t.Errorf("export before analysis: err = %v, want ErrNothingDisplayed", err)
	}

	h.ctrl.OnInputCommitted(ctx, "Acme Robotics")
	b, err := h.ctrl.Export(ctx, exp)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if string(b) != "%PDF" {
		t.Errorf("bytes = %q", b)
	}
	if gotBusiness != "Acme Robotics" || gotText != "body" {
		t.Errorf("exported (%q, %q)", gotBusiness, gotText)
	}
}

func TestExportFailureKeepsState(t *testing.T) {
	fc := &fakeCompleter{}
	h := newHarness(t, analysis.FeaturePriority, fc)
	ctx := context.Background()
	h.ctrl.OnInputCommitted(ctx, "Acme Robotics")

	boom := errors.New("render failed")
	exp := exporterFunc(func(context.Context, analysis.Kind, string, string) ([]byte, error) {
		return nil, boom
	})
	if _, err := h.ctrl.Export(ctx, exp); !errors.Is(err, boom) {
		t.Fatalf("Export err = %v, want %v", err, boom)
	}

	s := h.ctrl.Snapshot()
	if s.State != Ready {
		t.Errorf("state = %v, want ready", s.State)
	}
	if s.Error != ExportFailedMessage {
		t.Errorf("error = %q, want %q", s.Error, ExportFailedMessage)
	}
	if s.Text == "" {
		t.Error("export failure cleared the displayed text")
	}
}

func TestStateText(t *testing.T) {
	for _, st := range []State{Idle, Cached, Loading, Ready, Failed} {
		b, _ := st.MarshalText()
		var back State
		if err := back.UnmarshalText(b); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", b, err)
		}
		if back != st {
			t.Errorf("round trip %v = %v", st, back)
		}
	}
	var s State
	if err := s.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("UnmarshalText(bogus) = nil, want error")
	}
}

func equalStates(got, want []State) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
