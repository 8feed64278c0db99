package timex

import (
	"sync"
	"time"

	"irremote-go/x/mathx"
)

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

var boot = time.Now()

// NowUs returns monotonic microseconds since process start.
func NowUs() uint64 { return uint64(time.Since(boot) / time.Microsecond) }

// PeriodFromHz returns a nanosecond period for a requested frequency.
// freqHz==0 is coerced to 1 to avoid division by zero.
func PeriodFromHz(freqHz uint32) uint64 {
	if freqHz == 0 {
		freqHz = 1
	}
	return uint64(1_000_000_000 / uint64(freqHz))
}

// Micros converts d to whole microseconds, rounding to nearest.
// Negative durations give 0.
func Micros(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	return mathx.RoundDiv(uint64(d), uint64(time.Microsecond))
}

// Clock is a monotonic time source.
type Clock interface {
	Now() time.Time
}

// System is the runtime clock. time.Now carries a monotonic reading, so
// Sub between two of its values is immune to wall-clock steps.
var System Clock = systemClock{}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Manual is a Clock that only moves when told to.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

func NewManual() *Manual { return &Manual{now: time.Unix(0, 0)} }

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}
