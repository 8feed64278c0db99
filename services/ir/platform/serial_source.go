//go:build !rp2040 && !rp2350

package platform

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"

	"irremote-go/services/ir/capture"
)

// SerialSlack is extra host time allowed for a line to cross the link
// before a wait gives up.
const SerialSlack = 50 * time.Millisecond

// SerialSource reads edges reported by a capture board, one per line:
//
//	<board µs> <level after edge, 0 or 1>
//
// Blank lines and lines starting with '#' are skipped. Time is kept on the
// board's clock: waiting advances it to the next edge, or by the full
// timeout when the next edge is further away. It implements capture.Waiter.
type SerialSource struct {
	edges chan capture.Stamp
	done  chan struct{}
	rc    io.Closer
	log   zerolog.Logger

	// Owned by the capture loop.
	now     uint64
	pending *capture.Stamp

	mu  sync.Mutex
	err error
	bad uint32
}

var _ capture.Waiter = (*SerialSource)(nil)

// OpenSerial opens a capture board on a serial port, 8N1.
func OpenSerial(path string, baud int, log zerolog.Logger) (*SerialSource, error) {
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", path, err)
	}
	return NewSerialSource(port, log), nil
}

// NewSerialSource starts reading r. If r is an io.Closer, Close closes it.
func NewSerialSource(r io.Reader, log zerolog.Logger) *SerialSource {
	s := &SerialSource{
		edges: make(chan capture.Stamp, 2*capture.Capacity),
		done:  make(chan struct{}),
		log:   log,
	}
	if c, ok := r.(io.Closer); ok {
		s.rc = c
	}
	go s.readLoop(r)
	return s
}

func (s *SerialSource) readLoop(r io.Reader) {
	defer close(s.done)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		st, ok, err := parseEdgeLine(sc.Text())
		if err != nil {
			s.mu.Lock()
			s.bad++
			s.mu.Unlock()
			s.log.Debug().Err(err).Str("line", sc.Text()).Msg("skipping serial line")
			continue
		}
		if ok {
			s.edges <- st
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.EOF) {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		s.log.Error().Err(err).Msg("serial read failed")
	}
}

// parseEdgeLine returns ok=false for lines that carry no edge.
func parseEdgeLine(line string) (capture.Stamp, bool, error) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] == '#' {
		return capture.Stamp{}, false, nil
	}
	f := strings.Fields(line)
	if len(f) != 2 {
		return capture.Stamp{}, false, fmt.Errorf("want 2 fields, got %d", len(f))
	}
	us, err := strconv.ParseUint(f[0], 10, 64)
	if err != nil {
		return capture.Stamp{}, false, fmt.Errorf("timestamp: %w", err)
	}
	st := capture.Stamp{Us: us}
	switch f[1] {
	case "0":
		st.Edge = capture.EdgeFalling
	case "1":
		st.Edge = capture.EdgeRising
	default:
		return capture.Stamp{}, false, fmt.Errorf("level %q", f[1])
	}
	return st, true, nil
}

func (s *SerialSource) NowUs() uint64 { return s.now }

func (s *SerialSource) WaitEdge(ctx context.Context, timeoutUs uint32) (capture.Stamp, bool) {
	if ctx.Err() != nil {
		return capture.Stamp{}, false
	}
	st, ok := s.next(ctx, time.Duration(timeoutUs)*time.Microsecond+SerialSlack)
	if ok && (st.Us <= s.now || st.Us-s.now <= uint64(timeoutUs)) {
		s.pending = nil
		if st.Us > s.now {
			s.now = st.Us
		}
		return st, true
	}
	if ok {
		s.pending = &st
	}
	s.now += uint64(timeoutUs)
	return capture.Stamp{}, false
}

func (s *SerialSource) next(ctx context.Context, wait time.Duration) (capture.Stamp, bool) {
	if s.pending != nil {
		return *s.pending, true
	}
	select {
	case st := <-s.edges:
		return st, true
	default:
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case st := <-s.edges:
		return st, true
	case <-s.done:
		select {
		case st := <-s.edges:
			return st, true
		default:
			return capture.Stamp{}, false
		}
	case <-t.C:
	case <-ctx.Done():
	}
	return capture.Stamp{}, false
}

// Exhausted reports whether the link has closed and every edge it carried
// has been consumed.
func (s *SerialSource) Exhausted() bool {
	if s.pending != nil || len(s.edges) > 0 {
		return false
	}
	select {
	case <-s.done:
		return len(s.edges) == 0
	default:
		return false
	}
}

// Err is the read error that ended the link, if any.
func (s *SerialSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Malformed counts lines that could not be parsed.
func (s *SerialSource) Malformed() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bad
}

func (s *SerialSource) Close() error {
	if s.rc == nil {
		return nil
	}
	return s.rc.Close()
}
