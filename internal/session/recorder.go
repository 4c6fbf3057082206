package session

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/ffdash/internal/errors"
	"codeberg.org/mutker/ffdash/internal/logger"
	"codeberg.org/mutker/ffdash/internal/telemetry"
)

// Recorder follows game detection in the snapshot stream and records one
// session per detected game.
type Recorder struct {
	store Store
	now   func() time.Time
	log   logger.Logger

	mu       sync.Mutex
	state    State
	manual   bool
	gameName string
	samples  []Sample

	// dismissed is the game a user stopped recording for; it is not
	// auto-recorded again until detection moves off it.
	dismissed string
}

type Option func(*Recorder)

func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

func WithLogger(log logger.Logger) Option {
	return func(r *Recorder) {
		r.log = log
	}
}

// NewRecorder returns an idle Recorder saving summaries to store. A nil store
// keeps summaries in memory only.
func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{
		store: store,
		now:   time.Now,
		log:   logger.Default().With("session"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Observe feeds one snapshot to the recorder. When the snapshot ends a
// session with enough samples, the summary is returned with true. The
// summary is returned even if persisting it failed.
func (r *Recorder) Observe(ctx context.Context, s telemetry.Snapshot) (Summary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case Idle:
		if s.Game != r.dismissed {
			r.dismissed = ""
		}
		if s.Game == "" || s.Game == r.dismissed {
			return Summary{}, false
		}
		r.start(s.Game, false)
		r.append(s)
		return Summary{}, false

	case Recording:
		if r.manual {
			if r.gameName == ManualName && s.Game != "" {
				r.gameName = s.Game
			}
			r.append(s)
			return Summary{}, false
		}

		if s.Game == "" {
			return r.stop(ctx)
		}

		if s.Game != r.gameName {
			summary, ok := r.stop(ctx)
			r.start(s.Game, false)
			r.append(s)
			return summary, ok
		}

		r.append(s)
	}

	return Summary{}, false
}

// Toggle starts or stops recording regardless of game detection. game is the
// currently detected game, used to name a manually started session.
func (r *Recorder) Toggle(ctx context.Context, game string) (Summary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Recording {
		r.dismissed = game
		return r.stop(ctx)
	}
	r.dismissed = ""

	if game == "" {
		game = ManualName
	}
	r.start(game, true)
	return Summary{}, false
}

// Status reports the current recorder state.
func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Status{
		State:     r.state,
		Recording: r.state == Recording,
		Manual:    r.manual,
		GameName:  r.gameName,
		Samples:   len(r.samples),
	}
	if len(r.samples) > 0 {
		st.StartedAt = r.samples[0].Timestamp
	}
	return st
}

func (r *Recorder) start(game string, manual bool) {
	r.state = Recording
	r.manual = manual
	r.gameName = game
	r.samples = r.samples[:0]

	r.log.Info().
		Str("game", game).
		Bool("manual", manual).
		Msg("Session recording started")
}

func (r *Recorder) append(s telemetry.Snapshot) {
	r.samples = append(r.samples, Sample{
		Timestamp: r.now(),
		FPS:       s.FPS,
		CPUTemp:   s.CPU.Temp,
		GPUTemp:   s.PrimaryGPU().Temperature,
	})
}

func (r *Recorder) stop(ctx context.Context) (Summary, bool) {
	game, samples := r.gameName, r.samples

	r.state = Idle
	r.manual = false
	r.gameName = ""
	r.samples = nil

	summary, ok := Summarize(game, samples)
	if !ok {
		r.log.Debug().
			Str("game", game).
			Int("samples", len(samples)).
			Msg("Session too short, discarded")
		return Summary{}, false
	}

	if r.store != nil {
		saved, err := r.store.Save(ctx, summary)
		if err != nil {
			r.log.ErrorWithCode(errors.New().Wrap(ErrPersistSession, err)).
				Str("game", game).
				Msg("Failed to persist session")
		} else {
			summary = saved
		}
	}

	r.log.Info().
		Str("game", summary.GameName).
		Dur("duration", summary.Duration()).
		Float64("avg_fps", summary.AvgFPS).
		Int("samples", summary.Samples).
		Msg("Session recorded")

	return summary, true
}
