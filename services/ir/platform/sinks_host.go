//go:build !rp2040 && !rp2350

package platform

import (
	"fmt"
	"image/color"
	"sync"

	"github.com/rs/zerolog"

	"irremote-go/errcode"
	"irremote-go/services/ir/dispatch"
)

// LogPixels is a pixel strip that logs what it would show.
type LogPixels struct {
	mu      sync.Mutex
	log     zerolog.Logger
	pending []color.RGBA
	shown   []color.RGBA
}

func NewLogPixels(n int, log zerolog.Logger) *LogPixels {
	return &LogPixels{
		log:     log,
		pending: make([]color.RGBA, n),
		shown:   make([]color.RGBA, n),
	}
}

func (p *LogPixels) SetPixel(i int, c color.RGBA) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.pending) {
		return errcode.InvalidParams
	}
	p.pending[i] = c
	return nil
}

func (p *LogPixels) Fill(c color.RGBA) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.pending {
		p.pending[i] = c
	}
	return nil
}

func (p *LogPixels) Show() error {
	p.mu.Lock()
	copy(p.shown, p.pending)
	p.mu.Unlock()
	p.log.Info().Strs("pixels", hexColors(p.Shown())).Msg("pixels shown")
	return nil
}

// Shown returns the colours at the last Show.
func (p *LogPixels) Shown() []color.RGBA {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]color.RGBA, len(p.shown))
	copy(out, p.shown)
	return out
}

func hexColors(cs []color.RGBA) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return out
}

// LogHID is a keyboard that logs keystrokes.
type LogHID struct {
	mu    sync.Mutex
	log   zerolog.Logger
	down  []dispatch.Key
	keys  []dispatch.Key
	typed string
}

func NewLogHID(log zerolog.Logger) *LogHID { return &LogHID{log: log} }

func (h *LogHID) Press(keys ...dispatch.Key) error {
	if len(keys) == 0 {
		return errcode.InvalidParams
	}
	h.mu.Lock()
	h.down = append(h.down[:0], keys...)
	h.keys = append(h.keys, keys...)
	h.mu.Unlock()
	h.log.Info().Interface("keys", keys).Msg("keys pressed")
	return nil
}

func (h *LogHID) ReleaseAll() error {
	h.mu.Lock()
	h.down = h.down[:0]
	h.mu.Unlock()
	return nil
}

func (h *LogHID) TypeString(s string) error {
	h.mu.Lock()
	h.typed += s
	h.mu.Unlock()
	h.log.Info().Str("text", s).Msg("text typed")
	return nil
}

// Pressed returns every key pressed so far, in order.
func (h *LogHID) Pressed() []dispatch.Key {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]dispatch.Key(nil), h.keys...)
}

// Held reports whether any key is still down.
func (h *LogHID) Held() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.down) > 0
}

func (h *LogHID) Typed() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.typed
}

// LogServo is a bank of servos that logs the pulse each would get.
type LogServo struct {
	mu     sync.Mutex
	log    zerolog.Logger
	angles []uint8
}

func NewLogServo(channels int, log zerolog.Logger) *LogServo {
	return &LogServo{log: log, angles: make([]uint8, channels)}
}

func (s *LogServo) SetAngle(ch int, deg uint8) error {
	s.mu.Lock()
	if ch < 0 || ch >= len(s.angles) {
		s.mu.Unlock()
		return errcode.InvalidParams
	}
	s.angles[ch] = deg
	s.mu.Unlock()
	s.log.Info().Int("channel", ch).Uint8("deg", deg).Uint16("pulse_us", AngleToMicros(deg)).Msg("servo moved")
	return nil
}

func (s *LogServo) Angle(ch int) uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch < 0 || ch >= len(s.angles) {
		return 0
	}
	return s.angles[ch]
}
