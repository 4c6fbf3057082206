package dashboard

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/ffdash/internal/alerts"
	"codeberg.org/mutker/ffdash/internal/channel"
	"codeberg.org/mutker/ffdash/internal/errors"
	"codeberg.org/mutker/ffdash/internal/history"
	"codeberg.org/mutker/ffdash/internal/latency"
	"codeberg.org/mutker/ffdash/internal/license"
	"codeberg.org/mutker/ffdash/internal/logger"
	"codeberg.org/mutker/ffdash/internal/session"
	"codeberg.org/mutker/ffdash/internal/telemetry"
)

// Deps are the collaborators driven by the dashboard loop. Source,
// Dispatcher and Recorder are required.
type Deps struct {
	Source     Source
	Settings   SettingsStore
	Dispatcher *alerts.Dispatcher
	Recorder   *session.Recorder
	History    *history.Buffer
	Probe      Probe
	License    license.Authorizer
}

type Option func(*Dashboard)

func WithLogger(log logger.Logger) Option {
	return func(d *Dashboard) {
		d.log = log
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Dashboard) {
		d.now = now
	}
}

// WithDemo marks the dashboard as running on synthetic data. Notifications
// are suppressed.
func WithDemo(demo bool) Option {
	return func(d *Dashboard) {
		d.demo = demo
	}
}

type commandKind int

const (
	cmdToggleRecording commandKind = iota
	cmdSetFPSSmoothing
	cmdUpdateSettings
)

type command struct {
	kind     commandKind
	enabled  bool
	settings alerts.Settings
	reply    chan result
}

type result struct {
	summary session.Summary
	saved   bool
	err     error
}

// Dashboard owns the single event loop that applies every snapshot to
// history, alerts and the session recorder in arrival order.
type Dashboard struct {
	deps     Deps
	log      logger.Logger
	now      func() time.Time
	demo     bool
	commands chan command

	// Loop-owned.
	probeCancel context.CancelFunc

	mu          sync.RWMutex
	connected   bool
	latest      telemetry.Snapshot
	state       alerts.State
	settings    alerts.Settings
	lastSession *session.Summary
	counters    Counters
}

func New(deps Deps, opts ...Option) *Dashboard {
	d := &Dashboard{
		deps:     deps,
		log:      logger.Default().With("dashboard"),
		now:      time.Now,
		commands: make(chan command),
		settings: alerts.DefaultSettings(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.deps.History == nil {
		d.deps.History = history.New()
	}
	if d.deps.License == nil {
		d.deps.License = license.Static(false)
	}
	d.deps.Dispatcher.Suppress(d.demo)

	return d
}

// Run loads the alert settings, starts the source and processes events and
// commands until ctx is canceled or the source stops.
func (d *Dashboard) Run(ctx context.Context) error {
	d.loadSettings(ctx)

	srcDone := make(chan error, 1)
	go func() {
		srcDone <- d.deps.Source.Run(ctx)
	}()

	defer d.stopProbe()

	events := d.deps.Source.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return <-srcDone
			}
			d.handleEvent(ctx, ev)

		case cmd := <-d.commands:
			cmd.reply <- d.handleCommand(ctx, cmd)

		case <-ctx.Done():
			// Drain so the source can observe cancellation and close.
			for range events {
			}
			return <-srcDone
		}
	}
}

// ToggleRecording starts a manual session, or stops the running one. A
// stopped session long enough to keep is returned with true.
func (d *Dashboard) ToggleRecording(ctx context.Context) (session.Summary, bool, error) {
	res, err := d.do(ctx, command{kind: cmdToggleRecording})
	if err != nil {
		return session.Summary{}, false, err
	}
	return res.summary, res.saved, res.err
}

// SetFPSSmoothing forwards the request to the source. The new value shows up
// in later snapshots.
func (d *Dashboard) SetFPSSmoothing(ctx context.Context, enabled bool) error {
	res, err := d.do(ctx, command{kind: cmdSetFPSSmoothing, enabled: enabled})
	if err != nil {
		return err
	}
	return res.err
}

// UpdateAlertSettings validates, persists and applies new alert settings.
func (d *Dashboard) UpdateAlertSettings(ctx context.Context, settings alerts.Settings) error {
	res, err := d.do(ctx, command{kind: cmdUpdateSettings, settings: settings})
	if err != nil {
		return err
	}
	return res.err
}

// Status returns a copy of the current dashboard state.
func (d *Dashboard) Status() Status {
	d.mu.RLock()
	st := Status{
		Connected: d.connected,
		Latest:    d.latest,
		Alerts:    d.state,
		Settings:  d.settings,
		GameName:  d.latest.Game,
		Demo:      d.demo,
		Counters:  d.counters,
		LatencyMS: latency.NoMeasurement,
	}
	if d.lastSession != nil {
		last := *d.lastSession
		st.LastSession = &last
	}
	d.mu.RUnlock()

	st.History = d.deps.History.Points()
	st.Recording = d.deps.Recorder.Status()
	st.Pro = d.deps.License.IsPro()
	if d.deps.Probe != nil && st.Connected {
		st.LatencyMS, _ = d.deps.Probe.Last()
	}

	return st
}

func (d *Dashboard) do(ctx context.Context, cmd command) (result, error) {
	cmd.reply = make(chan result, 1)

	select {
	case d.commands <- cmd:
	case <-ctx.Done():
		return result{}, errors.New().Wrap(ErrNotRunning, ctx.Err())
	}

	select {
	case res := <-cmd.reply:
		return res, nil
	case <-ctx.Done():
		return result{}, errors.New().Wrap(ErrNotRunning, ctx.Err())
	}
}

func (d *Dashboard) loadSettings(ctx context.Context) {
	if d.deps.Settings == nil {
		return
	}

	settings, err := d.deps.Settings.LoadAlertSettings(ctx)
	if err != nil {
		d.log.ErrorWithCode(errors.New().Wrap(ErrLoadSettings, err)).
			Msg("Using default alert settings")
		settings = alerts.DefaultSettings()
	}

	d.mu.Lock()
	d.settings = settings
	d.mu.Unlock()
}

func (d *Dashboard) handleEvent(ctx context.Context, ev channel.Event) {
	switch ev.Type {
	case channel.EventConnected:
		d.onConnected(ctx)
	case channel.EventDisconnected:
		d.onDisconnected()
	case channel.EventSnapshot:
		d.onSnapshot(ctx, ev)
	}
}

func (d *Dashboard) onConnected(ctx context.Context) {
	d.mu.Lock()
	d.connected = true
	d.mu.Unlock()

	d.startProbe(ctx)
	d.log.Debug().Msg("Source connected")
}

// onDisconnected publishes the zeroed snapshot once per disconnect. History
// and the recorder are left untouched.
func (d *Dashboard) onDisconnected() {
	d.mu.Lock()
	if !d.connected {
		d.mu.Unlock()
		return
	}
	d.connected = false
	d.counters.Disconnects++
	zero := telemetry.Disconnected(d.latest)
	settings := d.settings
	d.mu.Unlock()

	d.stopProbe()

	state := alerts.Evaluate(zero, settings)
	d.deps.Dispatcher.Dispatch(state, zero, settings)

	d.mu.Lock()
	d.latest = zero
	d.state = state
	d.mu.Unlock()
}

func (d *Dashboard) onSnapshot(ctx context.Context, ev channel.Event) {
	s, err := telemetry.Normalize(ev.Payload)
	if err != nil {
		d.mu.Lock()
		d.counters.Dropped++
		d.mu.Unlock()

		d.log.Warn().Err(err).Msg("Dropping malformed snapshot")
		return
	}

	at := ev.At
	if at.IsZero() {
		at = d.now()
	}

	d.deps.History.Push(history.Point{
		Timestamp: at.UnixMilli(),
		CPUTemp:   s.CPU.Temp,
		GPUTemp:   s.PrimaryGPU().Temperature,
	})

	d.mu.RLock()
	settings := d.settings
	d.mu.RUnlock()

	state := alerts.Evaluate(s, settings)
	_, notified := d.deps.Dispatcher.Dispatch(state, s, settings)

	summary, recorded := d.deps.Recorder.Observe(ctx, s)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.latest = s
	d.state = state
	d.counters.Snapshots++
	if notified {
		d.counters.Notifications++
	}
	if recorded {
		d.lastSession = &summary
		d.counters.Sessions++
	}
}

func (d *Dashboard) handleCommand(ctx context.Context, cmd command) result {
	switch cmd.kind {
	case cmdToggleRecording:
		d.mu.RLock()
		game := d.latest.Game
		d.mu.RUnlock()

		summary, ok := d.deps.Recorder.Toggle(ctx, game)
		if ok {
			d.mu.Lock()
			d.lastSession = &summary
			d.counters.Sessions++
			d.mu.Unlock()
		}
		return result{summary: summary, saved: ok}

	case cmdSetFPSSmoothing:
		if err := d.deps.Source.SetFPSSmoothing(ctx, cmd.enabled); err != nil {
			return result{err: errors.New().Wrap(ErrFPSSmoothing, err)}
		}
		return result{}

	case cmdUpdateSettings:
		return result{err: d.applySettings(ctx, cmd.settings)}
	}

	return result{}
}

func (d *Dashboard) applySettings(ctx context.Context, settings alerts.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	if d.deps.Settings != nil {
		if err := d.deps.Settings.SaveAlertSettings(ctx, settings); err != nil {
			return errors.New().Wrap(ErrSaveSettings, err)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.settings = settings
	d.state = alerts.Evaluate(d.latest, settings)

	d.log.Info().
		Bool("enabled", settings.Enabled).
		Float64("cpu_limit", settings.CPUTempLimit).
		Float64("gpu_limit", settings.GPUTempLimit).
		Int("fps_limit", settings.FPSLowLimit).
		Msg("Alert settings updated")

	return nil
}

func (d *Dashboard) startProbe(ctx context.Context) {
	if d.deps.Probe == nil || d.probeCancel != nil {
		return
	}

	probeCtx, cancel := context.WithCancel(ctx)
	d.probeCancel = cancel
	go d.deps.Probe.Run(probeCtx)
}

func (d *Dashboard) stopProbe() {
	if d.probeCancel == nil {
		return
	}
	d.probeCancel()
	d.probeCancel = nil
	d.deps.Probe.Reset()
}
