//go:build !rp2040 && !rp2350

package stream

import (
	"context"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"irremote-go/bus"
	"irremote-go/types"
)

const writeTimeout = 1 * time.Second

var topicEvent = bus.Topic{"ir", "event"}

// Handler streams ir/event to websocket clients as JSON, one bus
// connection per client. ?kind=code|repeat|error narrows the stream.
type Handler struct {
	bus     *bus.Bus
	origins []string
	log     zerolog.Logger
	clients atomic.Int32
	nextID  atomic.Uint32
}

// NewHandler accepts browser clients whose Origin matches origins; nil
// accepts same-origin only.
func NewHandler(b *bus.Bus, origins []string, log zerolog.Logger) *Handler {
	return &Handler{bus: b, origins: origins, log: log}
}

// Clients is the number of connected clients.
func (h *Handler) Clients() int { return int(h.clients.Load()) }

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket accept failed")
		return
	}
	defer c.Close(websocket.StatusNormalClosure, "handler exits")

	kind := types.EventKind(r.URL.Query().Get("kind"))
	conn := h.bus.NewConnection("stream-" + strconv.FormatUint(uint64(h.nextID.Add(1)), 10))
	defer conn.Disconnect()
	sub := conn.Subscribe(topicEvent)

	h.clients.Add(1)
	defer h.clients.Add(-1)
	h.log.Info().Str("remote", r.RemoteAddr).Str("kind", string(kind)).Msg("stream client connected")
	defer h.log.Info().Str("remote", r.RemoteAddr).Msg("stream client closed")

	ctx := c.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-sub.Channel():
			if !ok {
				return
			}
			ev, ok := m.Payload.(types.IREvent)
			if !ok || (kind != "" && ev.Kind != kind) {
				continue
			}
			if err := writeEvent(ctx, c, ev); err != nil {
				h.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("stream write failed")
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, c *websocket.Conn, ev types.IREvent) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, c, ev)
}
