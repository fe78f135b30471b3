package coord

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/soundprints/internal/feed"
	"github.com/abelbrown/soundprints/internal/filter"
	"github.com/abelbrown/soundprints/internal/route"
	"github.com/abelbrown/soundprints/internal/sound"
	"github.com/abelbrown/soundprints/internal/store"
	"github.com/abelbrown/soundprints/internal/ui"
)

// mockFeed implements feedModel for testing.
type mockFeed struct {
	mu        sync.Mutex
	observers []feed.Observer
	viewports []feed.Viewport
	states    []feed.State
	submitted []string

	runErr        error
	pageErr       error
	submitErr     error
	filterChanges atomic.Int32
	gate          chan struct{} // when set, Run waits on it before starting
	running       chan struct{}
	unsubscribed  atomic.Int32
}

func newMockFeed() *mockFeed {
	return &mockFeed{running: make(chan struct{})}
}

func (m *mockFeed) Run(ctx context.Context) error {
	if m.gate != nil {
		<-m.gate
	}
	close(m.running)
	if m.runErr != nil {
		return m.runErr
	}
	<-ctx.Done()
	return nil
}

func (m *mockFeed) Started() <-chan struct{} {
	return m.running
}

func (m *mockFeed) Subscribe(obs feed.Observer) func() {
	m.mu.Lock()
	m.observers = append(m.observers, obs)
	m.mu.Unlock()
	return func() { m.unsubscribed.Add(1) }
}

func (m *mockFeed) SetState(s feed.State) {
	m.mu.Lock()
	m.states = append(m.states, s)
	m.mu.Unlock()
}

func (m *mockFeed) UpdateViewport(v feed.Viewport) {
	m.mu.Lock()
	m.viewports = append(m.viewports, v)
	m.mu.Unlock()
}

func (m *mockFeed) FilterChanged() {
	m.filterChanges.Add(1)
}

func (m *mockFeed) FetchNextPage() error {
	return m.pageErr
}

func (m *mockFeed) SubmitItem(path string) error {
	m.mu.Lock()
	m.submitted = append(m.submitted, path)
	m.mu.Unlock()
	return m.submitErr
}

// observer returns the single subscribed observer.
func (m *mockFeed) observer(t *testing.T) feed.Observer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.observers) != 1 {
		t.Fatalf("expected 1 observer, got %d", len(m.observers))
	}
	return m.observers[0]
}

func (m *mockFeed) getViewports() []feed.Viewport {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]feed.Viewport, len(m.viewports))
	copy(out, m.viewports)
	return out
}

// mockSender collects messages like a tea.Program would receive them.
type mockSender struct {
	msgs chan tea.Msg
}

func newMockSender() *mockSender {
	return &mockSender{msgs: make(chan tea.Msg, 64)}
}

func (s *mockSender) Send(msg tea.Msg) {
	s.msgs <- msg
}

func (s *mockSender) next(t *testing.T) tea.Msg {
	t.Helper()
	select {
	case msg := <-s.msgs:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a message")
		return nil
	}
}

type mockResolver struct {
	ref   sound.ResourceRef
	err   error
	calls atomic.Int32
}

func (r *mockResolver) Resolve(ctx context.Context, item sound.Item) (sound.ResourceRef, error) {
	r.calls.Add(1)
	return r.ref, r.err
}

func startSession(t *testing.T, m *mockFeed, filters filterState, opts Options, sender Sender) (*Coordinator, context.CancelFunc) {
	t.Helper()
	c := New(m, filters, opts)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx, sender)
	select {
	case <-m.running:
	case <-time.After(2 * time.Second):
		t.Fatal("feed never started")
	}
	return c, cancel
}

func TestCoordinatorForwardsNotificationsInOrder(t *testing.T) {
	m := newMockFeed()
	sender := newMockSender()
	c, cancel := startSession(t, m, filter.NewState(nil), Options{}, sender)
	defer func() {
		cancel()
		c.Wait()
	}()

	obs := m.observer(t)
	obs.OnReplaced([]sound.Item{{ID: "a"}})
	obs.OnAppended([]sound.Item{{ID: "b"}})
	obs.OnFetchFailed(errors.New("offline"))
	obs.OnUploadFailed(feed.ErrNoActiveViewport)
	obs.OnItemInserted(sound.Item{ID: "u"}, feed.NoIndex)

	if msg, ok := sender.next(t).(ui.FeedReplaced); !ok || msg.Items[0].ID != "a" {
		t.Errorf("expected FeedReplaced first, got %#v", msg)
	}
	if msg, ok := sender.next(t).(ui.FeedAppended); !ok || msg.Items[0].ID != "b" {
		t.Errorf("expected FeedAppended second, got %#v", msg)
	}
	if _, ok := sender.next(t).(ui.FetchFailed); !ok {
		t.Error("expected FetchFailed third")
	}
	if msg, ok := sender.next(t).(ui.UploadFailed); !ok || !errors.Is(msg.Err, feed.ErrNoActiveViewport) {
		t.Errorf("expected UploadFailed fourth, got %#v", msg)
	}
	if msg, ok := sender.next(t).(ui.ItemInserted); !ok || msg.Index != feed.NoIndex {
		t.Errorf("expected ItemInserted with NoIndex, got %#v", msg)
	}
}

func TestCoordinatorStartWaitsForFeedLoop(t *testing.T) {
	m := newMockFeed()
	m.gate = make(chan struct{})
	c := New(m, filter.NewState(nil), Options{})
	ctx, cancel := context.WithCancel(context.Background())

	returned := make(chan struct{})
	go func() {
		c.Start(ctx, nil)
		close(returned)
	}()

	select {
	case <-returned:
		t.Fatal("Start returned before the feed loop started")
	case <-time.After(50 * time.Millisecond):
	}

	close(m.gate)
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Start never returned")
	}
	cancel()
	if err := c.Wait(); err != nil {
		t.Errorf("Wait: %v", err)
	}
}

func TestCoordinatorObserverDoesNotBlock(t *testing.T) {
	m := newMockFeed()
	// A sender that never drains must not stall the feed loop.
	blocked := &mockSender{msgs: make(chan tea.Msg)}
	c, cancel := startSession(t, m, filter.NewState(nil), Options{}, blocked)

	obs := m.observer(t)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			obs.OnAppended(nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("observer callbacks blocked on the UI")
	}

	// Unblock the pump so Wait can return.
	go func() {
		for range blocked.msgs {
		}
	}()
	cancel()
	if err := c.Wait(); err != nil {
		t.Errorf("Wait: %v", err)
	}
}

func TestCoordinatorHandlesNilProgram(t *testing.T) {
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer s.Close()

	m := newMockFeed()
	c, cancel := startSession(t, m, filter.NewState(nil), Options{Uploads: s}, nil)

	// Execute with nil program - should not panic, uploads still recorded
	m.observer(t).OnItemInserted(sound.Item{ID: "up-1", Name: "Rain", Category: sound.CategoryNormal, CreatedAt: time.Now()}, 0)

	deadline := time.Now().Add(2 * time.Second)
	for {
		uploads, err := s.RecentUploads(10)
		if err != nil {
			t.Fatalf("RecentUploads: %v", err)
		}
		if len(uploads) == 1 {
			if uploads[0].ID != "up-1" {
				t.Errorf("recorded %q, want up-1", uploads[0].ID)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("upload was never recorded")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := c.Wait(); err != nil {
		t.Errorf("Wait: %v", err)
	}
}

func TestCoordinatorFilterChangeInvalidatesFeed(t *testing.T) {
	m := newMockFeed()
	filters := filter.NewState(nil)
	c, cancel := startSession(t, m, filters, Options{}, nil)

	msg := c.SetFilter(filter.Selection{Category: sound.CategoryPremium, Recency: filter.RecencyLastDay})()
	applied, ok := msg.(ui.FilterApplied)
	if !ok {
		t.Fatalf("expected FilterApplied, got %#v", msg)
	}
	if applied.Err != nil || applied.Selection.Category != sound.CategoryPremium {
		t.Errorf("applied = %#v", applied)
	}
	if got := m.filterChanges.Load(); got != 1 {
		t.Errorf("expected 1 FilterChanged, got %d", got)
	}

	// An invalid selection is rejected and reports the unchanged filter.
	msg = c.SetFilter(filter.Selection{Category: "gold", Recency: filter.RecencyAllTime})()
	applied = msg.(ui.FilterApplied)
	if applied.Err == nil {
		t.Error("expected an error for an unknown category")
	}
	if applied.Selection.Category != sound.CategoryPremium {
		t.Errorf("selection should be unchanged, got %s", applied.Selection.Category)
	}
	if got := m.filterChanges.Load(); got != 1 {
		t.Errorf("rejected filter should not invalidate, got %d", got)
	}

	cancel()
	c.Wait()

	// After Wait the subscription is gone.
	filters.SetCategory(sound.CategoryNormal)
	if got := m.filterChanges.Load(); got != 1 {
		t.Errorf("change after Wait reached the feed: %d", got)
	}
	if got := m.unsubscribed.Load(); got != 1 {
		t.Errorf("observer should be removed once, got %d", got)
	}
}

func TestCoordinatorPlaysRoute(t *testing.T) {
	r, err := route.Parse([]byte(`
waypoints:
  - lat: 60.1699
    lon: 24.9384
    radius: 500
    dwell: 1ms
  - lat: 60.1712
    lon: 24.9410
    dwell: 1ms
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	m := newMockFeed()
	c, cancel := startSession(t, m, filter.NewState(nil), Options{Route: r}, nil)
	defer func() {
		cancel()
		c.Wait()
	}()

	deadline := time.Now().Add(2 * time.Second)
	for len(m.getViewports()) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected 2 viewports, got %d", len(m.getViewports()))
		}
		time.Sleep(5 * time.Millisecond)
	}
	vps := m.getViewports()
	if vps[0].Radius != 500 || vps[1].Location.Lat != 60.1712 {
		t.Errorf("viewports = %+v", vps)
	}
}

func TestCoordinatorWaitReturnsRunError(t *testing.T) {
	m := newMockFeed()
	m.runErr = errors.New("model exploded")
	c := New(m, filter.NewState(nil), Options{})
	c.Start(context.Background(), nil)

	if err := c.Wait(); err == nil || err.Error() != "model exploded" {
		t.Errorf("Wait = %v, want model exploded", err)
	}
}

func TestCoordinatorWaitWithoutStart(t *testing.T) {
	c := New(newMockFeed(), filter.NewState(nil), Options{})
	if err := c.Wait(); err != nil {
		t.Errorf("Wait before Start = %v", err)
	}
}

func TestCoordinatorCommands(t *testing.T) {
	m := newMockFeed()
	m.pageErr = feed.ErrNoActiveViewport
	c := New(m, filter.NewState(nil), Options{})

	if msg := c.SetState(feed.StateBrowsing)(); msg != nil {
		t.Errorf("SetState should produce no message, got %#v", msg)
	}
	if len(m.states) != 1 || m.states[0] != feed.StateBrowsing {
		t.Errorf("states = %v", m.states)
	}

	page := c.FetchNextPage()().(ui.PageRequested)
	if !errors.Is(page.Err, feed.ErrNoActiveViewport) {
		t.Errorf("PageRequested.Err = %v", page.Err)
	}

	sub := c.Submit("/tmp/rain.m4a")().(ui.UploadSubmitted)
	if sub.Err != nil || sub.Path != "/tmp/rain.m4a" {
		t.Errorf("UploadSubmitted = %#v", sub)
	}
	if len(m.submitted) != 1 {
		t.Errorf("submitted = %v", m.submitted)
	}

	c.ReportViewport(feed.Viewport{Radius: 100})
	if len(m.getViewports()) != 1 {
		t.Error("ReportViewport should reach the feed")
	}
}

func TestCoordinatorResolve(t *testing.T) {
	m := newMockFeed()

	if cmd := New(m, filter.NewState(nil), Options{}).Resolve(sound.Item{ID: "a"}); cmd != nil {
		t.Error("Resolve without a resolver should be nil")
	}

	res := &mockResolver{ref: sound.ResourceRef{URL: "https://cdn.example/a", ExpiresAt: time.Now().Add(time.Minute)}}
	c := New(m, filter.NewState(nil), Options{Resolver: res})

	msg := c.Resolve(sound.Item{ID: "a"})().(ui.PlaybackResolved)
	if msg.Err != nil || msg.ItemID != "a" || msg.Ref.URL != res.ref.URL {
		t.Errorf("PlaybackResolved = %#v", msg)
	}

	res.err = errors.New("expired token")
	msg = c.Resolve(sound.Item{ID: "a"})().(ui.PlaybackResolved)
	if msg.Err == nil {
		t.Error("expected resolver error to be reported")
	}
	if res.calls.Load() != 2 {
		t.Errorf("calls = %d", res.calls.Load())
	}
}
