// Package app is the root Bubble Tea model of the sync demo client. It
// drives the sync core and renders the frames it delivers.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/realtime-sync/syncdemo/internal/client"
	"github.com/realtime-sync/syncdemo/internal/livesync"
	"github.com/realtime-sync/syncdemo/internal/theme"
	"github.com/realtime-sync/syncdemo/internal/views/chat"
	"github.com/realtime-sync/syncdemo/internal/views/dashboard"
	"github.com/realtime-sync/syncdemo/internal/views/debug"
	"github.com/realtime-sync/syncdemo/internal/views/help"
	"github.com/realtime-sync/syncdemo/internal/views/jobs"
	"github.com/realtime-sync/syncdemo/internal/views/logs"
	"github.com/realtime-sync/syncdemo/internal/views/status"
)

const (
	frameBuffer     = 256
	refreshInterval = 500 * time.Millisecond
)

// Syncer is the part of livesync.Controller the client drives.
type Syncer interface {
	WatchJob(ctx context.Context, jobID string, fetcher livesync.StatusFetcher, interval time.Duration, obs livesync.Observer) (livesync.Handle, error)
	StreamLogs(ctx context.Context, url string, obs livesync.Observer) (livesync.Handle, error)
	StreamMetrics(ctx context.Context, url string, obs livesync.Observer) (livesync.Handle, error)
	JoinChat(ctx context.Context, url, clientID string, obs livesync.Observer) (livesync.Handle, error)
	Send(key livesync.Key, text string) error
	Unsubscribe(h livesync.Handle) error
	Active() []livesync.ActiveChannel
}

// API is the demo server's request/response surface.
type API interface {
	livesync.StatusFetcher
	BaseURL() string
	CreateJob(ctx context.Context, items []string) (*client.JobCreated, error)
	Dashboard(ctx context.Context) (*client.Dashboard, error)
	LogStreamURL() string
	MetricStreamURL() string
	ChatURL(clientID string) string
}

// Tab identifies the main view.
type Tab int

const (
	TabJobs Tab = iota
	TabLogs
	TabChat
	TabDashboard
	tabCount
)

var tabNames = [...]string{"Jobs", "Logs", "Chat", "Dashboard"}

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDebug
	OverlayHelp
)

// Options configures the client.
type Options struct {
	ClientID     string
	PollInterval time.Duration
	JobItems     []string
}

type subscribedMsg struct {
	key    livesync.Key
	gen    uint64
	handle livesync.Handle
	err    error
}

type jobCreatedMsg struct {
	id  string
	err error
}

type unsubscribedMsg struct {
	key livesync.Key
	err error
}

type dashboardMsg struct {
	data *client.Dashboard
	took time.Duration
	err  error
}

type sendErrMsg struct {
	err error
}

type refreshMsg struct{}

// Model is the root Bubble Tea model.
type Model struct {
	sync   Syncer
	api    API
	bridge *Bridge
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options

	keys   KeyMap
	width  int
	height int

	tab       Tab
	overlay   Overlay
	handles   map[livesync.Key]livesync.Handle
	pending   map[livesync.Key]uint64 // key -> generation of the subscribe in flight
	gen       uint64
	animating bool

	statusBar status.Model
	jobs      jobs.Model
	logs      logs.Model
	chat      chat.Model
	dashboard dashboard.Model
	debug     debug.Model
}

// New creates the root model.
func New(s Syncer, api API, opts Options) Model {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if len(opts.JobItems) == 0 {
		opts.JobItems = []string{"item1", "item2", "item3"}
	}
	ctx, cancel := context.WithCancel(context.Background())
	base := ""
	if api != nil {
		base = api.BaseURL()
	}
	return Model{
		sync:      s,
		api:       api,
		bridge:    NewBridge(frameBuffer),
		ctx:       ctx,
		cancel:    cancel,
		opts:      opts,
		keys:      DefaultKeyMap(),
		handles:   make(map[livesync.Key]livesync.Handle),
		pending:   make(map[livesync.Key]uint64),
		statusBar: status.New(base),
		jobs:      jobs.New(),
		logs:      logs.New(),
		chat:      chat.New(opts.ClientID),
		dashboard: dashboard.New(),
		debug:     debug.New(),
	}
}

// Init starts reading frames and refreshing the status bar.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.bridge.Next(), refresh())
}

func refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg { return refreshMsg{} })
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.jobs.Width = msg.Width
		m.logs.Width = msg.Width
		m.chat.Width = msg.Width
		m.dashboard.Width = msg.Width
		body := max(msg.Height-9, 5)
		m.logs.Height = body
		m.chat.Height = body - 2
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case FrameMsg:
		m.applyFrame(msg.Frame)
		anim := m.animate()
		return m, tea.Batch(m.bridge.Next(), anim)

	case jobs.TickMsg:
		if m.jobs.Step() {
			return m, jobs.Tick()
		}
		m.animating = false
		return m, nil

	case refreshMsg:
		if m.sync != nil {
			m.statusBar.SetActive(m.sync.Active())
		}
		return m, refresh()

	case subscribedMsg:
		if m.pending[msg.key] != msg.gen {
			// Stopped or ended before the subscribe returned.
			if msg.err != nil {
				return m, nil
			}
			m.debug.Add(string(msg.key), "app", "releasing stale subscription")
			return m, m.release(msg.key, msg.handle)
		}
		delete(m.pending, msg.key)
		if msg.err != nil {
			m.debug.Add(string(msg.key), "app", "subscribe failed: "+msg.err.Error())
			m.subscriptionEnded(msg.key, livesync.Lifecycle{State: livesync.StateFailed, Err: msg.err})
			return m, nil
		}
		m.handles[msg.key] = msg.handle
		m.debug.Add(string(msg.key), "app", "subscribed")
		return m, nil

	case jobCreatedMsg:
		if msg.err != nil {
			m.debug.Add("job", "app", "create job failed: "+msg.err.Error())
			return m, nil
		}
		m.jobs.Track(msg.id)
		id, api, interval, s, obs := msg.id, m.api, m.opts.PollInterval, m.sync, m.bridge.Observe
		cmd := m.subscribe(livesync.JobKey(id), func(ctx context.Context) (livesync.Handle, error) {
			return s.WatchJob(ctx, id, api, interval, obs)
		})
		return m, cmd

	case unsubscribedMsg:
		if msg.err != nil {
			m.debug.Add(string(msg.key), "app", "unsubscribe failed: "+msg.err.Error())
		}
		return m, nil

	case dashboardMsg:
		if msg.err != nil {
			m.dashboard.Loading = false
			m.dashboard.Err = msg.err
			return m, nil
		}
		m.dashboard.SetDashboard(msg.data, msg.took)
		return m, nil

	case sendErrMsg:
		m.debug.Add(string(livesync.ChatKey(m.opts.ClientID)), "app", "send failed: "+msg.err.Error())
		return m, nil
	}

	return m, nil
}

// animate starts the progress animation unless it is already running.
func (m *Model) animate() tea.Cmd {
	if m.animating || !m.jobs.Animating() {
		return nil
	}
	m.animating = true
	return jobs.Tick()
}

func (m *Model) applyFrame(f livesync.Frame) {
	switch p := f.Payload.(type) {
	case livesync.StatusUpdate:
		if id, ok := jobID(f.Key); ok {
			m.jobs.Apply(id, p)
		}
	case livesync.LogRecord:
		m.logs.Add(p)
	case livesync.ChatEvent:
		m.chat.Add(p)
	case livesync.MetricSample:
		m.dashboard.SetMetric(p)
	case livesync.Diagnostic:
		m.statusBar.Warnings++
		m.debug.Add(string(f.Key), string(p.Code), p.Err.Error())
	case livesync.Lifecycle:
		msg := p.State.String()
		if p.Err != nil {
			msg += ": " + p.Err.Error()
		}
		m.debug.Add(string(f.Key), "life", msg)
		delete(m.handles, f.Key)
		delete(m.pending, f.Key)
		m.subscriptionEnded(f.Key, p)
	}
}

// subscriptionEnded updates the view owning key after its channel ended
// or could not be opened.
func (m *Model) subscriptionEnded(k livesync.Key, lc livesync.Lifecycle) {
	switch {
	case k == livesync.LogsKey:
		m.logs.End(lc)
	case k == livesync.MetricsKey:
		m.dashboard.Streaming = false
	case strings.HasPrefix(string(k), "chat:"):
		m.chat.Joined = false
		if lc.Err != nil {
			m.chat.Add(livesync.ChatEvent{Text: "chat unavailable: " + lc.Err.Error(), ReceivedAt: time.Now(), System: true})
		}
	default:
		if id, ok := jobID(k); ok {
			m.jobs.End(id, lc)
		}
	}
}

func jobID(k livesync.Key) (string, bool) {
	return strings.CutPrefix(string(k), "job:")
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.chat.Focused() {
		return m.handleInput(msg)
	}

	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Debug) && m.overlay == OverlayDebug,
			key.Matches(msg, m.keys.Help) && m.overlay == OverlayHelp:
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Up) && m.overlay == OverlayDebug:
			m.debug.ScrollUp(1)
		case key.Matches(msg, m.keys.Down) && m.overlay == OverlayDebug:
			m.debug.ScrollDown(1)
		case key.Matches(msg, m.keys.Quit):
			return m.quit()
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Tab):
		m.tab = (m.tab + 1) % tabCount
	case key.Matches(msg, m.keys.Jobs):
		m.tab = TabJobs
	case key.Matches(msg, m.keys.Logs):
		m.tab = TabLogs
	case key.Matches(msg, m.keys.Chat):
		m.tab = TabChat
	case key.Matches(msg, m.keys.Dashboard):
		m.tab = TabDashboard

	case key.Matches(msg, m.keys.Up):
		switch m.tab {
		case TabJobs:
			m.jobs.Prev()
		case TabLogs:
			m.logs.ScrollUp(1)
		}
	case key.Matches(msg, m.keys.Down):
		switch m.tab {
		case TabJobs:
			m.jobs.Next()
		case TabLogs:
			m.logs.ScrollDown(1)
		}

	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
	case key.Matches(msg, m.keys.Help):
		m.overlay = OverlayHelp

	case key.Matches(msg, m.keys.NewJob):
		m.tab = TabJobs
		return m, m.startJob()

	case key.Matches(msg, m.keys.LogStream):
		m.tab = TabLogs
		if m.busy(livesync.LogsKey) {
			return m, nil
		}
		m.logs.Started()
		s, url, obs := m.sync, m.api.LogStreamURL(), m.bridge.Observe
		cmd := m.subscribe(livesync.LogsKey, func(ctx context.Context) (livesync.Handle, error) {
			return s.StreamLogs(ctx, url, obs)
		})
		return m, cmd

	case key.Matches(msg, m.keys.Metrics):
		m.tab = TabDashboard
		if m.busy(livesync.MetricsKey) {
			return m, nil
		}
		m.dashboard.Streaming = true
		s, url, obs := m.sync, m.api.MetricStreamURL(), m.bridge.Observe
		cmd := m.subscribe(livesync.MetricsKey, func(ctx context.Context) (livesync.Handle, error) {
			return s.StreamMetrics(ctx, url, obs)
		})
		return m, cmd

	case key.Matches(msg, m.keys.Join):
		m.tab = TabChat
		k := livesync.ChatKey(m.opts.ClientID)
		if m.busy(k) {
			return m, nil
		}
		m.chat.Joined = true
		s, url, id, obs := m.sync, m.api.ChatURL(m.opts.ClientID), m.opts.ClientID, m.bridge.Observe
		cmd := m.subscribe(k, func(ctx context.Context) (livesync.Handle, error) {
			return s.JoinChat(ctx, url, id, obs)
		})
		return m, cmd

	case key.Matches(msg, m.keys.Compose):
		if m.tab == TabChat {
			cmd := m.chat.Focus()
			return m, cmd
		}

	case key.Matches(msg, m.keys.Refresh):
		m.tab = TabDashboard
		m.dashboard.Loading = true
		return m, m.loadDashboard()

	case key.Matches(msg, m.keys.Stop):
		cmd := m.stopCurrent()
		return m, cmd
	}

	return m, nil
}

func (m Model) handleInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m.quit()
	case key.Matches(msg, m.keys.Escape):
		m.chat.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Send):
		text := m.chat.Take()
		if text == "" {
			return m, nil
		}
		k := livesync.ChatKey(m.opts.ClientID)
		s := m.sync
		return m, func() tea.Msg {
			if err := s.Send(k, text); err != nil {
				return sendErrMsg{err: err}
			}
			return nil
		}
	}
	var cmd tea.Cmd
	m.chat, cmd = m.chat.Update(msg)
	return m, cmd
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.Close()
	return m, tea.Quit
}

// Close cancels pending requests and releases observers blocked on the
// program. Call it once the program has exited.
func (m Model) Close() {
	m.cancel()
	m.bridge.Close()
}

// busy reports whether k has a subscription open or on its way.
func (m Model) busy(k livesync.Key) bool {
	if _, ok := m.handles[k]; ok {
		return true
	}
	_, ok := m.pending[k]
	return ok
}

// subscribe marks k pending and opens the subscription off the event loop;
// opening a channel does network I/O. Only the reply matching the latest
// generation for k is kept.
func (m *Model) subscribe(k livesync.Key, open func(ctx context.Context) (livesync.Handle, error)) tea.Cmd {
	m.gen++
	gen, ctx := m.gen, m.ctx
	m.pending[k] = gen
	return func() tea.Msg {
		h, err := open(ctx)
		return subscribedMsg{key: k, gen: gen, handle: h, err: err}
	}
}

// release unsubscribes h off the event loop.
func (m Model) release(k livesync.Key, h livesync.Handle) tea.Cmd {
	s := m.sync
	return func() tea.Msg {
		return unsubscribedMsg{key: k, err: s.Unsubscribe(h)}
	}
}

func (m Model) startJob() tea.Cmd {
	ctx, api, items := m.ctx, m.api, m.opts.JobItems
	return func() tea.Msg {
		created, err := api.CreateJob(ctx, items)
		if err != nil {
			return jobCreatedMsg{err: fmt.Errorf("create job: %w", err)}
		}
		return jobCreatedMsg{id: created.JobID}
	}
}

func (m Model) loadDashboard() tea.Cmd {
	ctx, api := m.ctx, m.api
	return func() tea.Msg {
		start := time.Now()
		d, err := api.Dashboard(ctx)
		return dashboardMsg{data: d, took: time.Since(start), err: err}
	}
}

// stopCurrent unsubscribes the channel shown on the current tab. The call
// runs off the event loop because it waits for in-flight deliveries, which
// need the loop to keep reading frames.
func (m *Model) stopCurrent() tea.Cmd {
	var k livesync.Key
	switch m.tab {
	case TabJobs:
		id, ok := m.jobs.Selected()
		if !ok {
			return nil
		}
		k = livesync.JobKey(id)
	case TabLogs:
		k = livesync.LogsKey
	case TabChat:
		k = livesync.ChatKey(m.opts.ClientID)
	case TabDashboard:
		k = livesync.MetricsKey
	}
	if _, ok := m.pending[k]; ok {
		// The handle is released when the subscribe returns.
		delete(m.pending, k)
		m.subscriptionEnded(k, livesync.Lifecycle{State: livesync.StateClosed})
		return nil
	}
	h, ok := m.handles[k]
	if !ok {
		return nil
	}
	delete(m.handles, k)
	m.subscriptionEnded(k, livesync.Lifecycle{State: livesync.StateClosed})
	return m.release(k, h)
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var body string
	switch m.overlay {
	case OverlayDebug:
		body = m.debug.View(m.width, m.height-4)
	case OverlayHelp:
		body = help.Render(m.keys.All(), m.width)
	default:
		body = m.renderTab()
	}

	sections := []string{
		m.statusBar.View(),
		m.renderTabs(),
		body,
		theme.StyleDimmed.Render("  tab:switch  n:job  s:logs  m:metrics  c:chat  r:dashboard  x:stop  d:debug  ?:help  q:quit"),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderTabs() string {
	parts := make([]string, 0, len(tabNames))
	for i, name := range tabNames {
		style := theme.StyleTab
		if Tab(i) == m.tab {
			style = theme.StyleActiveTab
		}
		parts = append(parts, style.Render(fmt.Sprintf("%d %s", i+1, name)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) renderTab() string {
	switch m.tab {
	case TabLogs:
		return m.logs.View()
	case TabChat:
		return m.chat.View()
	case TabDashboard:
		return m.dashboard.View()
	default:
		return m.jobs.View()
	}
}
