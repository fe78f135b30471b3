package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/abelbrown/soundprints/internal/feed"
	"github.com/abelbrown/soundprints/internal/filter"
	"github.com/abelbrown/soundprints/internal/otel"
	"github.com/abelbrown/soundprints/internal/sound"
	"github.com/abelbrown/soundprints/internal/throttle"
)

// timePanStep is how far one pan moves the time window.
const timePanStep = time.Hour

// AppConfig wires the App to the feed.
// IMPORTANT: App does NOT hold the feed model. Blocking calls into it are
// returned as tea.Cmds, and results come back as messages.
type AppConfig struct {
	Mode              feed.Mode
	Origin            sound.Location
	Radius            float64       // meters
	Window            time.Duration // time mode viewport width; 0 is unbounded
	PanStep           float64       // meters per pan in location mode
	PrefetchThreshold int           // rows from the end that trigger the next page
	Filter            filter.Selection

	SetState       func(feed.State) tea.Cmd
	ReportViewport func(feed.Viewport) // may block briefly; never called on the UI goroutine
	FetchNextPage  func() tea.Cmd
	SetFilter      func(filter.Selection) tea.Cmd
	Submit         func(path string) tea.Cmd
	Resolve        func(sound.Item) tea.Cmd

	Throttle *throttle.Throttle // coalesces pans; nil reports every pan
	Events   *otel.RingBuffer
	Now      func() time.Time
}

// App is the root Bubble Tea model.
type App struct {
	cfg     AppConfig
	keys    keyMap
	help    help.Model
	spinner spinner.Model
	input   textinput.Model

	items  []sound.Item
	cursor int
	fresh  map[string]bool

	state  feed.State
	filter filter.Selection
	origin sound.Location
	until  time.Time // time mode anchor; zero follows the clock

	loadingPage bool
	exhausted   bool // the last page came back empty
	uploading   int
	prompting   bool
	showHelp    bool
	showDebug   bool

	err    error
	notice string
	width  int
	height int
	ready  bool
}

// NewApp creates an App. The feed fetches its first page as soon as the
// first viewport is reported, so the App starts out loading.
func NewApp(cfg AppConfig) App {
	if cfg.PanStep <= 0 {
		cfg.PanStep = 50
	}
	if cfg.PrefetchThreshold <= 0 {
		cfg.PrefetchThreshold = 5
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Filter == (filter.Selection{}) {
		cfg.Filter = filter.Default()
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = StatusBarKey

	ti := textinput.New()
	ti.Placeholder = "path to recording"
	ti.CharLimit = 512
	ti.Width = 60

	return App{
		cfg:         cfg,
		keys:        defaultKeyMap(),
		help:        help.New(),
		spinner:     s,
		input:       ti,
		fresh:       make(map[string]bool),
		filter:      cfg.Filter,
		origin:      cfg.Origin,
		loadingPage: true,
	}
}

// Init starts the spinner.
func (a App) Init() tea.Cmd {
	return a.spinner.Tick
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if a.prompting {
			return a.handlePromptKey(msg)
		}
		return a.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		a.ready = true
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case FeedReplaced:
		a.loadingPage = false
		a.exhausted = false
		a.items = msg.Items
		a.clampCursor()
		return a, nil

	case FeedAppended:
		a.loadingPage = false
		if len(msg.Items) == 0 {
			a.exhausted = true
			return a, nil
		}
		a.exhausted = false
		a.items = append(a.items, msg.Items...)
		return a, nil

	case ItemInserted:
		a.uploadDone()
		a.fresh[msg.Item.ID] = true
		if msg.Index == feed.NoIndex {
			a.notice = fmt.Sprintf("Uploaded %q (hidden by the %s filter)", displayName(msg.Item), a.filter.Category)
			return a, nil
		}
		a.insertAt(msg.Item, msg.Index)
		a.notice = fmt.Sprintf("Uploaded %q", displayName(msg.Item))
		return a, nil

	case UploadFailed:
		a.uploadDone()
		a.err = fmt.Errorf("upload failed: %w", msg.Err)
		return a, nil

	case FetchFailed:
		a.loadingPage = false
		a.err = fmt.Errorf("loading sounds: %w", msg.Err)
		return a, nil

	case UploadSubmitted:
		if msg.Err != nil {
			a.err = msg.Err
			return a, nil
		}
		a.uploading++
		a.notice = "Uploading " + msg.Path
		return a, nil

	case PageRequested:
		if msg.Err != nil {
			a.loadingPage = false
			a.err = msg.Err
		}
		return a, nil

	case FilterApplied:
		a.filter = msg.Selection
		if msg.Err != nil {
			a.err = msg.Err
		}
		return a, nil

	case PlaybackResolved:
		if msg.Err != nil {
			a.err = fmt.Errorf("playback: %w", msg.Err)
			return a, nil
		}
		a.notice = fmt.Sprintf("▶ %s (link expires %s)", msg.Ref.URL,
			humanize.RelTime(msg.Ref.ExpiresAt, a.cfg.Now(), "ago", "from now"))
		return a, nil
	}

	return a, nil
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Clear any existing error on key press
	a.err = nil

	switch {
	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit

	case key.Matches(msg, a.keys.Down):
		if a.cursor < len(a.items)-1 {
			a.cursor++
		}
		return a, a.maybePrefetch()

	case key.Matches(msg, a.keys.Up):
		if a.cursor > 0 {
			a.cursor--
		}
		return a, nil

	case key.Matches(msg, a.keys.Top):
		a.cursor = 0
		return a, nil

	case key.Matches(msg, a.keys.Bottom):
		if len(a.items) > 0 {
			a.cursor = len(a.items) - 1
		}
		return a, a.maybePrefetch()

	case key.Matches(msg, a.keys.NextPage):
		return a, a.requestPage()

	case key.Matches(msg, a.keys.Mode):
		next := feed.StateBrowsing
		if a.state == feed.StateBrowsing {
			next = feed.StateFocused
		}
		return a, a.setState(next)

	case key.Matches(msg, a.keys.North):
		return a.pan(1, 0)
	case key.Matches(msg, a.keys.South):
		return a.pan(-1, 0)
	case key.Matches(msg, a.keys.West):
		return a.pan(0, -1)
	case key.Matches(msg, a.keys.East):
		return a.pan(0, 1)

	case key.Matches(msg, a.keys.Category):
		next := a.filter
		if next.Category == sound.CategoryPremium {
			next.Category = sound.CategoryNormal
		} else {
			next.Category = sound.CategoryPremium
		}
		return a, a.applyFilter(next)

	case key.Matches(msg, a.keys.Recency):
		next := a.filter
		if next.Recency == filter.RecencyLastDay {
			next.Recency = filter.RecencyAllTime
		} else {
			next.Recency = filter.RecencyLastDay
		}
		return a, a.applyFilter(next)

	case key.Matches(msg, a.keys.Play):
		if a.cfg.Resolve != nil && a.cursor < len(a.items) {
			return a, a.cfg.Resolve(a.items[a.cursor])
		}
		return a, nil

	case key.Matches(msg, a.keys.Upload):
		a.prompting = true
		a.input.SetValue("")
		return a, a.input.Focus()

	case key.Matches(msg, a.keys.Help):
		a.showHelp = !a.showHelp
		a.help.ShowAll = a.showHelp
		return a, nil

	case key.Matches(msg, a.keys.Debug):
		a.showDebug = !a.showDebug
		return a, nil
	}

	return a, nil
}

// handlePromptKey feeds keys to the upload prompt.
func (a App) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		a.prompting = false
		a.input.Blur()
		return a, nil
	case tea.KeyCtrlC:
		return a, tea.Quit
	case tea.KeyEnter:
		path := strings.TrimSpace(a.input.Value())
		a.prompting = false
		a.input.Blur()
		if path == "" || a.cfg.Submit == nil {
			return a, nil
		}
		return a, a.cfg.Submit(path)
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// pan moves the viewport one step. In time mode north/south move the window
// later/earlier and east/west do nothing. A pan while focused switches to
// browsing, like dragging a map.
func (a App) pan(north, east float64) (tea.Model, tea.Cmd) {
	var vp feed.Viewport
	if a.cfg.Mode == feed.ModeTime {
		if north == 0 {
			return a, nil
		}
		anchor := a.until
		if anchor.IsZero() {
			anchor = a.cfg.Now()
		}
		a.until = anchor.Add(time.Duration(north) * timePanStep)
		vp = a.viewport()
	} else {
		a.origin = a.origin.Offset(north*a.cfg.PanStep, east*a.cfg.PanStep)
		vp = a.viewport()
	}

	cmds := []tea.Cmd{a.report(vp)}
	if a.state == feed.StateFocused {
		cmds = append(cmds, a.setState(feed.StateBrowsing))
	}
	return a, tea.Batch(cmds...)
}

// viewport builds the viewport for the current origin or time window.
func (a App) viewport() feed.Viewport {
	if a.cfg.Mode == feed.ModeTime {
		vp := feed.Viewport{Until: a.until}
		if a.cfg.Window > 0 && !a.until.IsZero() {
			vp.Since = a.until.Add(-a.cfg.Window)
		}
		return vp
	}
	return feed.Viewport{Location: a.origin, Radius: a.cfg.Radius}
}

// report hands vp to the feed, through the throttle when there is one.
func (a App) report(vp feed.Viewport) tea.Cmd {
	if a.cfg.ReportViewport == nil {
		return nil
	}
	report := a.cfg.ReportViewport
	if a.cfg.Throttle != nil {
		a.cfg.Throttle.Run(func() { report(vp) })
		return nil
	}
	return func() tea.Msg {
		report(vp)
		return nil
	}
}

// setState records the new state locally and tells the feed.
func (a *App) setState(s feed.State) tea.Cmd {
	a.state = s
	if a.cfg.SetState == nil {
		return nil
	}
	return a.cfg.SetState(s)
}

func (a *App) applyFilter(sel filter.Selection) tea.Cmd {
	if a.cfg.SetFilter == nil {
		a.filter = sel
		return nil
	}
	return a.cfg.SetFilter(sel)
}

// maybePrefetch asks for the next page when the cursor nears the end.
func (a *App) maybePrefetch() tea.Cmd {
	if a.exhausted || len(a.items) == 0 {
		return nil
	}
	if len(a.items)-1-a.cursor >= a.cfg.PrefetchThreshold {
		return nil
	}
	return a.requestPage()
}

func (a *App) requestPage() tea.Cmd {
	if a.loadingPage || a.cfg.FetchNextPage == nil {
		return nil
	}
	a.loadingPage = true
	return a.cfg.FetchNextPage()
}

func (a *App) uploadDone() {
	if a.uploading > 0 {
		a.uploading--
	}
}

// insertAt places item at index, dropping any older copy of it.
func (a *App) insertAt(item sound.Item, index int) {
	kept := make([]sound.Item, 0, len(a.items)+1)
	for _, it := range a.items {
		if it.ID != item.ID {
			kept = append(kept, it)
		}
	}
	if index > len(kept) {
		index = len(kept)
	}
	kept = append(kept, sound.Item{})
	copy(kept[index+1:], kept[index:])
	kept[index] = item
	a.items = kept
	if index <= a.cursor && len(a.items) > 1 {
		a.cursor++
	}
	a.clampCursor()
}

func (a *App) clampCursor() {
	if a.cursor >= len(a.items) {
		a.cursor = len(a.items) - 1
	}
	if a.cursor < 0 {
		a.cursor = 0
	}
}

// View renders the current state of the App.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	if a.showDebug {
		overlay := debugOverlay(a.cfg.Events, a.width, a.height-1, a.cfg.Now())
		return overlay + "\n" + debugStatusBar(a.width)
	}

	var b strings.Builder
	b.WriteString(a.renderHeader())
	b.WriteString("\n")

	// header, message line, status bar, and help take the rest
	reserved := 3
	helpView := ""
	if a.showHelp {
		helpView = a.help.View(a.keys)
		reserved += strings.Count(helpView, "\n") + 1
	}

	var origin *sound.Location
	if a.cfg.Mode == feed.ModeLocation {
		o := a.origin
		origin = &o
	}
	b.WriteString(RenderStream(StreamView{
		Items:  a.items,
		Cursor: a.cursor,
		Width:  a.width,
		Height: a.height - reserved,
		Origin: origin,
		Fresh:  a.fresh,
		Now:    a.cfg.Now(),
	}))

	switch {
	case a.prompting:
		b.WriteString(PromptStyle.Render("Upload: ") + a.input.View())
	case a.err != nil:
		b.WriteString(ErrorStyle.Render("Error: " + a.err.Error()))
	case a.notice != "":
		b.WriteString(NoticeStyle.Render(a.notice))
	}
	b.WriteString("\n")

	if helpView != "" {
		b.WriteString(helpView)
		b.WriteString("\n")
	}

	loading := ""
	switch {
	case a.uploading > 0:
		loading = a.spinner.View() + " uploading"
	case a.loadingPage:
		loading = a.spinner.View() + " loading"
	}
	b.WriteString(RenderStatusBar(a.cursor, len(a.items), a.width, loading,
		a.help.ShortHelpView(a.keys.ShortHelp())))

	return b.String()
}

func (a App) renderHeader() string {
	var where string
	if a.cfg.Mode == feed.ModeTime {
		if a.until.IsZero() {
			where = "up to now"
		} else {
			where = "up to " + humanize.RelTime(a.until, a.cfg.Now(), "ago", "from now")
		}
	} else {
		where = fmt.Sprintf("%s within %s", a.origin, sound.FormatDistance(a.cfg.Radius))
	}
	recency := "all time"
	if a.filter.OnlyLastDay() {
		recency = "last day"
	}
	text := fmt.Sprintf("%s · %s · %s · %s · %s", a.cfg.Mode, a.state, a.filter.Category, recency, where)
	return Header.Render("SOUNDPRINTS") + HeaderText.Render(text)
}

func displayName(it sound.Item) string {
	if it.Name == "" {
		return it.ID
	}
	return it.Name
}

// Cursor returns the current cursor position (for testing).
func (a App) Cursor() int {
	return a.cursor
}

// Items returns the items the list is showing (for testing).
func (a App) Items() []sound.Item {
	return a.items
}

// State returns the focused/browsing state the App last requested.
func (a App) State() feed.State {
	return a.state
}
