package alerts

import (
	"sync"
	"time"

	"codeberg.org/mutker/ffdash/internal/logger"
	"codeberg.org/mutker/ffdash/internal/telemetry"
)

// DefaultMinSpacing is the minimum time between two notifications of any kind.
const DefaultMinSpacing = 1500 * time.Millisecond

// Kind identifies an alert.
type Kind string

const (
	KindFPS Kind = "fps"
	KindCPU Kind = "cpu"
	KindGPU Kind = "gpu"
)

// priority lists kinds from most to least urgent.
var priority = []Kind{KindFPS, KindCPU, KindGPU}

// Notification is what a Notifier receives when an alert fires.
type Notification struct {
	Kind    Kind
	Value   float64
	Limit   float64
	Sound   bool
	Vibrate bool
	At      time.Time
}

// Notifier delivers alert notifications to the user.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Dispatcher turns alert states into notifications. It fires at most one
// notification per call, picking the most urgent kind that has not been
// announced yet, and enforces a single minimum spacing shared by all kinds.
type Dispatcher struct {
	notifier   Notifier
	now        func() time.Time
	minSpacing time.Duration
	log        logger.Logger

	mu         sync.Mutex
	suppressed bool
	lastFired  time.Time
	announced  map[Kind]time.Time
}

type DispatcherOption func(*Dispatcher)

// WithClock overrides the time source.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// WithMinSpacing overrides DefaultMinSpacing. Non-positive values are ignored.
func WithMinSpacing(spacing time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if spacing > 0 {
			d.minSpacing = spacing
		}
	}
}

func WithLogger(log logger.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.log = log
	}
}

func NewDispatcher(notifier Notifier, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		notifier:   notifier,
		now:        time.Now,
		minSpacing: DefaultMinSpacing,
		log:        logger.Default().With("alerts"),
		announced:  make(map[Kind]time.Time),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Suppress toggles demo mode: alert states are still computed by callers but
// nothing is delivered.
func (d *Dispatcher) Suppress(suppressed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.suppressed = suppressed
}

// Dispatch delivers a notification for state if one is due. It returns the
// notification and true when one fired.
func (d *Dispatcher) Dispatch(state State, s telemetry.Snapshot, settings Settings) (Notification, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()

	for _, k := range priority {
		if !state.Active(k) {
			delete(d.announced, k)
		}
	}

	if d.suppressed || !state.Any() {
		return Notification{}, false
	}

	kind, ok := d.due(state, settings, now)
	if !ok {
		return Notification{}, false
	}

	if !d.lastFired.IsZero() && now.Sub(d.lastFired) < d.minSpacing {
		d.log.Debug().
			Str("kind", string(kind)).
			Dur("since_last", now.Sub(d.lastFired)).
			Msg("Alert held back by cooldown")
		return Notification{}, false
	}

	n := Notification{
		Kind:    kind,
		Sound:   settings.Sound,
		Vibrate: settings.Vibrate,
		At:      now,
	}
	switch kind {
	case KindFPS:
		n.Value, n.Limit = float64(s.FPS), float64(settings.FPSLowLimit)
	case KindCPU:
		n.Value, n.Limit = s.CPU.Temp, settings.CPUTempLimit
	case KindGPU:
		n.Value, n.Limit = s.PrimaryGPU().Temperature, settings.GPUTempLimit
	}

	d.lastFired = now
	d.announced[kind] = now

	if d.notifier != nil {
		d.notifier.Notify(n)
	}

	return n, true
}

// due returns the most urgent active kind that still needs announcing.
func (d *Dispatcher) due(state State, settings Settings, now time.Time) (Kind, bool) {
	repeat := time.Duration(settings.CooldownSeconds) * time.Second

	for _, k := range priority {
		if !state.Active(k) {
			continue
		}
		at, seen := d.announced[k]
		if !seen {
			return k, true
		}
		if repeat > 0 && now.Sub(at) >= repeat {
			return k, true
		}
	}

	return "", false
}
