// Package coord runs a soundprints session: the feed model loop, optional
// route playback, and the bridge that turns feed notifications into UI
// messages.
package coord

import (
	"context"
	"errors"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/soundprints/internal/feed"
	"github.com/abelbrown/soundprints/internal/filter"
	"github.com/abelbrown/soundprints/internal/logging"
	"github.com/abelbrown/soundprints/internal/otel"
	"github.com/abelbrown/soundprints/internal/route"
	"github.com/abelbrown/soundprints/internal/sound"
	"github.com/abelbrown/soundprints/internal/ui"
)

// resolveTimeout bounds a playback URL lookup.
const resolveTimeout = 30 * time.Second

// Sender receives UI messages. *tea.Program implements it.
type Sender interface {
	Send(msg tea.Msg)
}

// feedModel is the part of *feed.Model the coordinator drives.
type feedModel interface {
	Run(ctx context.Context) error
	Started() <-chan struct{}
	Subscribe(obs feed.Observer) (cancel func())
	SetState(s feed.State)
	UpdateViewport(v feed.Viewport)
	FilterChanged()
	FetchNextPage() error
	SubmitItem(path string) error
}

// filterState is the part of *filter.State the coordinator uses.
type filterState interface {
	Current() filter.Selection
	Set(sel filter.Selection) error
	Subscribe(fn func(filter.Selection)) (cancel func())
}

// uploadRecorder keeps a local history of finished uploads.
type uploadRecorder interface {
	RecordUpload(item sound.Item) error
}

// resolver looks up playback URLs.
type resolver interface {
	Resolve(ctx context.Context, item sound.Item) (sound.ResourceRef, error)
}

// Options holds the optional parts of a session.
type Options struct {
	Route    *route.Route   // replayed into the feed when set
	Uploads  uploadRecorder // nil skips the history
	Resolver resolver       // nil disables playback
	Events   *otel.Logger
}

// Coordinator manages the goroutines of one session.
// Uses context cancellation as the ONLY stop mechanism.
type Coordinator struct {
	feed    feedModel
	filters filterState
	opts    Options

	// queue buffers feed notifications so observer callbacks, which run on
	// the feed loop, never wait for the UI.
	mu     sync.Mutex
	queue  []tea.Msg
	wakeup chan struct{}

	ctx     context.Context
	g       *errgroup.Group
	cancels []func()
}

// New creates a Coordinator for model and filters.
func New(model feedModel, filters filterState, opts Options) *Coordinator {
	return &Coordinator{
		feed:    model,
		filters: filters,
		opts:    opts,
		wakeup:  make(chan struct{}, 1),
		ctx:     context.Background(),
	}
}

// Start runs the session and returns once the feed loop is accepting
// calls. Call with a cancellable context; program may be nil (tests,
// headless runs).
func (c *Coordinator) Start(ctx context.Context, program Sender) {
	g, gctx := errgroup.WithContext(ctx)
	c.g = g
	c.ctx = gctx

	c.cancels = append(c.cancels,
		c.feed.Subscribe(feed.ObserverFuncs{
			Replaced:     func(items []sound.Item) { c.enqueue(ui.FeedReplaced{Items: items}) },
			Appended:     func(items []sound.Item) { c.enqueue(ui.FeedAppended{Items: items}) },
			ItemInserted: func(item sound.Item, index int) { c.enqueue(ui.ItemInserted{Item: item, Index: index}) },
			UploadFailed: func(err error) { c.enqueue(ui.UploadFailed{Err: err}) },
			FetchFailed:  func(err error) { c.enqueue(ui.FetchFailed{Err: err}) },
		}),
		c.filters.Subscribe(func(filter.Selection) { c.feed.FilterChanged() }),
	)

	c.opts.Events.Info(otel.KindStartup, "coord", "session started")

	g.Go(func() error {
		return c.feed.Run(gctx)
	})
	g.Go(func() error {
		c.pump(gctx, program)
		return nil
	})
	if c.opts.Route != nil {
		g.Go(func() error {
			return c.opts.Route.Play(gctx, c.feed.UpdateViewport)
		})
	}

	// Synchronous feed calls fail until the loop is up.
	select {
	case <-c.feed.Started():
	case <-gctx.Done():
	}
}

// Wait blocks until every session goroutine exits and returns the first
// failure. Call after canceling the context passed to Start.
func (c *Coordinator) Wait() error {
	if c.g == nil {
		return nil
	}
	err := c.g.Wait()
	for _, cancel := range c.cancels {
		cancel()
	}
	c.cancels = nil
	c.opts.Events.Info(otel.KindShutdown, "coord", "session stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *Coordinator) enqueue(msg tea.Msg) {
	c.mu.Lock()
	c.queue = append(c.queue, msg)
	c.mu.Unlock()

	select {
	case c.wakeup <- struct{}{}:
	default:
	}
}

func (c *Coordinator) drain() []tea.Msg {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.queue
	c.queue = nil
	return msgs
}

// pump forwards queued notifications to program in order.
func (c *Coordinator) pump(ctx context.Context, program Sender) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.wakeup:
		}
		for _, msg := range c.drain() {
			if ctx.Err() != nil {
				return
			}
			c.record(msg)
			// handle nil program gracefully for testing
			if program != nil {
				program.Send(msg)
			}
		}
	}
}

// record stores finished uploads in the local history.
func (c *Coordinator) record(msg tea.Msg) {
	inserted, ok := msg.(ui.ItemInserted)
	if !ok || c.opts.Uploads == nil {
		return
	}
	if err := c.opts.Uploads.RecordUpload(inserted.Item); err != nil {
		logging.Warn("Failed to record upload", "item", inserted.Item.ID, "error", err)
	}
}

// ReportViewport hands a viewport to the feed. It may block briefly, so the
// UI calls it from a throttle or a command, never from Update.
func (c *Coordinator) ReportViewport(v feed.Viewport) {
	c.feed.UpdateViewport(v)
}

// SetState returns a command switching the feed between focused and
// browsing.
func (c *Coordinator) SetState(s feed.State) tea.Cmd {
	return func() tea.Msg {
		c.feed.SetState(s)
		return nil
	}
}

// FetchNextPage returns a command asking the feed for the next page.
func (c *Coordinator) FetchNextPage() tea.Cmd {
	return func() tea.Msg {
		return ui.PageRequested{Err: c.feed.FetchNextPage()}
	}
}

// SetFilter returns a command storing a new filter selection. The feed
// invalidates through the filter subscription.
func (c *Coordinator) SetFilter(sel filter.Selection) tea.Cmd {
	return func() tea.Msg {
		err := c.filters.Set(sel)
		return ui.FilterApplied{Selection: c.filters.Current(), Err: err}
	}
}

// Submit returns a command uploading the recording at path.
func (c *Coordinator) Submit(path string) tea.Cmd {
	return func() tea.Msg {
		return ui.UploadSubmitted{Path: path, Err: c.feed.SubmitItem(path)}
	}
}

// Resolve returns a command looking up the playback URL of item.
func (c *Coordinator) Resolve(item sound.Item) tea.Cmd {
	if c.opts.Resolver == nil {
		return nil
	}
	base := c.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(base, resolveTimeout)
		defer cancel()

		start := time.Now()
		ref, err := c.opts.Resolver.Resolve(ctx, item)
		ev := otel.Event{Level: otel.LevelInfo, Kind: otel.KindResolve, Comp: "coord", ItemID: item.ID, Dur: time.Since(start)}
		if err != nil {
			ev.Level = otel.LevelWarn
			ev.Err = err.Error()
		}
		c.opts.Events.Emit(ev)
		return ui.PlaybackResolved{ItemID: item.ID, Ref: ref, Err: err}
	}
}
