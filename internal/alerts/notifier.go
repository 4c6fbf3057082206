package alerts

import (
	"io"
	"sync/atomic"

	"codeberg.org/mutker/ffdash/internal/logger"
)

const bell = "\a"

// LogNotifier reports alerts through the logger and rings the terminal bell
// when sound is enabled.
type LogNotifier struct {
	log  logger.Logger
	out  io.Writer
	sent atomic.Int64
}

// NewLogNotifier returns a LogNotifier. out receives the bell character and
// may be nil to disable it.
func NewLogNotifier(log logger.Logger, out io.Writer) *LogNotifier {
	return &LogNotifier{log: log, out: out}
}

func (n *LogNotifier) Notify(note Notification) {
	n.sent.Add(1)

	n.log.Warn().
		Str("kind", string(note.Kind)).
		Float64("value", note.Value).
		Float64("limit", note.Limit).
		Bool("vibrate", note.Vibrate).
		Bool("sound", note.Sound).
		Msg(message(note.Kind))

	if note.Sound && n.out != nil {
		if _, err := io.WriteString(n.out, bell); err != nil {
			n.log.Debug().Err(err).Msg("Failed to ring bell")
		}
	}
}

// Sent returns how many notifications have been delivered.
func (n *LogNotifier) Sent() int {
	return int(n.sent.Load())
}

func message(k Kind) string {
	switch k {
	case KindFPS:
		return "FPS below limit"
	case KindCPU:
		return "CPU temperature above limit"
	case KindGPU:
		return "GPU temperature above limit"
	default:
		return "Alert"
	}
}
