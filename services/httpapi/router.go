//go:build !rp2040 && !rp2350

package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"irremote-go/bus"
	"irremote-go/types"
)

var (
	topicIRState = bus.Topic{"ir", "state"}
	topicStats   = bus.Topic{"ir", "stats"}
	topicKeymap  = bus.Topic{"config", "keymap"}
	topicBridge  = bus.Topic{"bridge", "state"}
)

// Deps are the pieces the router serves.
type Deps struct {
	Conn     *bus.Connection
	Gatherer prometheus.Gatherer // nil disables /metrics
	Events   http.Handler        // nil disables /events
	Log      zerolog.Logger
}

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status string              `json:"status"`
	IR     *types.ServiceState `json:"ir,omitempty"`
	Bridge *types.ServiceState `json:"bridge,omitempty"`
	Time   time.Time           `json:"time"`
}

// NewRouter builds the HTTP surface.
func NewRouter(d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(d.Log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	h := &handlers{conn: d.Conn}
	r.GET("/healthz", h.health)
	r.GET("/keymap", h.retained(topicKeymap))
	r.GET("/stats", h.retained(topicStats))
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	if d.Events != nil {
		r.GET("/events", gin.WrapH(d.Events))
	}
	return r
}

// RequestLogger logs each request at a level chosen by its status.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}
		status := c.Writer.Status()

		ev := log.Info()
		if status >= 400 {
			ev = log.Warn()
		}
		if status >= 500 {
			ev = log.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}

type handlers struct{ conn *bus.Connection }

// latest returns the retained payload on topic, if any.
func (h *handlers) latest(topic bus.Topic) (any, bool) {
	sub := h.conn.Subscribe(topic)
	defer h.conn.Unsubscribe(sub)
	select {
	case m := <-sub.Channel():
		return m.Payload, true
	default:
		return nil, false
	}
}

func (h *handlers) state(topic bus.Topic) *types.ServiceState {
	p, ok := h.latest(topic)
	if !ok {
		return nil
	}
	st, ok := p.(types.ServiceState)
	if !ok {
		return nil
	}
	return &st
}

func (h *handlers) health(c *gin.Context) {
	resp := HealthResponse{
		Status: "down",
		IR:     h.state(topicIRState),
		Bridge: h.state(topicBridge),
		Time:   time.Now(),
	}
	code := http.StatusServiceUnavailable
	if resp.IR != nil && resp.IR.Level == "up" {
		resp.Status, code = "up", http.StatusOK
	}
	c.JSON(code, resp)
}

func (h *handlers) retained(topic bus.Topic) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := h.latest(topic)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "not available"})
			return
		}
		c.JSON(http.StatusOK, p)
	}
}
