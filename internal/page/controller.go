// Package page implements the per-kind page controller: it decides when the
// business input needs a fresh completion, serves cached results otherwise,
// and exports whatever is currently displayed.
package page

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/kalambet/bizpulse/internal/analysis"
	"github.com/kalambet/bizpulse/internal/completion"
	"github.com/kalambet/bizpulse/internal/inputstore"
)

const (
	// RetryHint accompanies every failure message.
	RetryHint = "Please try refreshing the page or contact support if the problem persists."
	// ExportFailedMessage is shown when rendering the PDF fails.
	ExportFailedMessage = "Failed to generate PDF. Please try again."
)

// ErrNothingDisplayed is returned by Export when the page shows no result.
var ErrNothingDisplayed = errors.New("no analysis displayed")

// Completer sends one chat-completion request. Implemented by completion.Client.
type Completer interface {
	Complete(ctx context.Context, msgs []completion.Message) (string, error)
}

// Composer builds the prompt messages for a kind. Implemented by composer.Composer.
type Composer interface {
	Compose(kind, business string) ([]completion.Message, error)
}

// Cache stores generated text per namespace and input. Implemented by cache.Cache.
type Cache interface {
	Lookup(namespace, input string) (string, bool, error)
	Store(namespace, input, text string) error
}

// Exporter renders a displayed result to PDF bytes.
type Exporter interface {
	Export(ctx context.Context, kind analysis.Kind, business, text string) ([]byte, error)
}

// Deps groups the collaborators of a Controller.
type Deps struct {
	Composer  Composer
	Completer Completer
	Cache     Cache
	Logger    *slog.Logger
	// Observer, if set, receives a snapshot after every state change.
	Observer func(Snapshot)
}

// Controller drives one analysis page. Its methods are safe for concurrent
// use; the lock is not held across the completion call.
type Controller struct {
	kind     analysis.Kind
	composer Composer
	complete Completer
	cache    Cache
	logger   *slog.Logger
	observe  func(Snapshot)

	mu   sync.Mutex
	snap Snapshot
}

// New creates an idle Controller for kind.
func New(kind analysis.Kind, deps Deps) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		kind:     kind,
		composer: deps.Composer,
		complete: deps.Completer,
		cache:    deps.Cache,
		logger:   logger.With("kind", kind.Name),
		observe:  deps.Observer,
		snap:     Snapshot{Kind: kind.Name, State: Idle},
	}
}

// Kind returns the analysis kind this controller serves.
func (c *Controller) Kind() analysis.Kind {
	return c.kind
}

// Snapshot returns the current page state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// SetInput records the live input without reacting to it, as when the
// user edits the input but has not committed it yet.
func (c *Controller) SetInput(input string) {
	c.mu.Lock()
	c.snap.Input = input
	c.mu.Unlock()
}

// Mount opens the page afresh with input, as a reload would: the memory of
// the last analyzed input is dropped so a failed or purged analysis is
// requested again. A request already in flight is never duplicated.
func (c *Controller) Mount(ctx context.Context, input string) Snapshot {
	c.mu.Lock()
	if c.snap.State != Loading {
		c.snap.LastAnalyzed = ""
	}
	c.mu.Unlock()
	return c.OnInputCommitted(ctx, input)
}

// OnInputCommitted reacts to a new business input. A cached result is shown
// at once. Otherwise a single completion is issued for input, unless one is
// already in flight or input was already analyzed. The call returns once any
// completion it started has resolved.
func (c *Controller) OnInputCommitted(ctx context.Context, input string) Snapshot {
	c.mu.Lock()
	c.snap.Input = input

	if inputstore.IsBlank(input) {
		c.clearDisplayLocked()
		if c.snap.State != Loading {
			c.snap.State = Idle
			c.snap.Error, c.snap.Hint = "", ""
		}
		return c.commitLocked()
	}

	if text, ok := c.lookup(input); ok {
		c.showLocked(input, text)
		c.snap.LastAnalyzed = input
		if c.snap.State != Loading {
			c.snap.State = Cached
		}
		return c.commitLocked()
	}

	if c.snap.State == Loading || input == c.snap.LastAnalyzed {
		c.clearDisplayLocked()
		if c.snap.State == Ready || c.snap.State == Cached {
			c.snap.State = Idle
		}
		return c.commitLocked()
	}

	c.snap.LastAnalyzed = input
	return c.fetchLocked(ctx, input)
}

// Submit re-requests the analysis for the current input. A cached result for
// the last analyzed input is served without a call. Blank input and an
// in-flight request make it a no-op.
func (c *Controller) Submit(ctx context.Context) Snapshot {
	c.mu.Lock()
	input := c.snap.Input

	if inputstore.IsBlank(input) || c.snap.State == Loading {
		s := c.snap
		c.mu.Unlock()
		return s
	}

	if input == c.snap.LastAnalyzed {
		if text, ok := c.lookup(input); ok {
			c.showLocked(input, text)
			c.snap.State = Cached
			return c.commitLocked()
		}
	}

	c.snap.LastAnalyzed = input
	return c.fetchLocked(ctx, input)
}

// Export renders the displayed result. Failures set the page error message
// but leave the state untouched.
func (c *Controller) Export(ctx context.Context, exp Exporter) ([]byte, error) {
	c.mu.Lock()
	snap := c.snap
	c.mu.Unlock()

	if !snap.HasDisplay() {
		return nil, ErrNothingDisplayed
	}

	b, err := exp.Export(ctx, c.kind, snap.DisplayedInput, snap.Text)
	if err != nil {
		c.logger.Error("export failed", "error", err)
		c.mu.Lock()
		c.snap.Error = ExportFailedMessage
		c.snap.Hint = ""
		c.commitLocked()
		return nil, err
	}
	return b, nil
}

// fetchLocked is entered with c.mu held and returns with it released.
func (c *Controller) fetchLocked(ctx context.Context, input string) Snapshot {
	id := uuid.New().String()
	c.snap.State = Loading
	c.snap.FetchID = id
	c.snap.Error, c.snap.Hint = "", ""
	c.commitLocked()

	log := c.logger.With("fetch_id", id)
	log.Debug("requesting analysis")

	text, err := c.request(ctx, input)

	c.mu.Lock()
	if err != nil {
		log.Error("analysis request failed", "error", err)
		c.clearDisplayLocked()
		c.snap.State = Failed
		c.snap.Error = c.kind.FailureMessage
		c.snap.Hint = RetryHint
		return c.commitLocked()
	}

	// Results land under the input they were requested for, even if the
	// live input has moved on since.
	if err := c.cache.Store(c.kind.Namespace, input, text); err != nil {
		log.Error("caching analysis failed", "error", err)
	}
	c.showLocked(input, text)
	c.snap.State = Ready
	return c.commitLocked()
}

func (c *Controller) request(ctx context.Context, input string) (string, error) {
	msgs, err := c.composer.Compose(c.kind.Name, input)
	if err != nil {
		return "", err
	}
	raw, err := c.complete.Complete(ctx, msgs)
	if err != nil {
		return "", err
	}
	return c.kind.Clean(raw), nil
}

func (c *Controller) lookup(input string) (string, bool) {
	text, ok, err := c.cache.Lookup(c.kind.Namespace, input)
	if err != nil {
		c.logger.Error("cache lookup failed", "error", err)
		return "", false
	}
	return text, ok
}

func (c *Controller) showLocked(input, text string) {
	c.snap.DisplayedInput = input
	c.snap.Text = text
	c.snap.Error, c.snap.Hint = "", ""
}

func (c *Controller) clearDisplayLocked() {
	c.snap.DisplayedInput = ""
	c.snap.Text = ""
}

// commitLocked releases c.mu and notifies the observer.
func (c *Controller) commitLocked() Snapshot {
	s := c.snap
	c.mu.Unlock()
	if c.observe != nil {
		c.observe(s)
	}
	return s
}
