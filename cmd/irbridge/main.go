//go:build !rp2040 && !rp2350

package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"irremote-go/bus"
	"irremote-go/services/bridge"
	"irremote-go/services/config"
	"irremote-go/services/httpapi"
	"irremote-go/services/ir"
	"irremote-go/services/ir/dispatch"
	"irremote-go/services/ir/platform"
	"irremote-go/services/metrics"
	"irremote-go/services/stream"
	"irremote-go/types"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	serialPath := flag.String("serial", "", "capture board serial port")
	baud := flag.Int("baud", 115200, "capture board baud rate")
	replay := flag.String("replay", "", "file of recorded edges to replay instead of a serial port")
	keymapPath := flag.String("keymap", "", "keymap YAML file (default: the device's embedded keymap)")
	device := flag.String("device", "host", "embedded device config")
	listen := flag.String("listen", ":8080", "HTTP listen address; empty disables")
	broker := flag.String("mqtt", "", "MQTT broker host[:port]; overrides the device config")
	pixels := flag.Int("pixels", 8, "pixels on the logged strip")
	runSelftest := flag.Bool("selftest", false, "play every keymap code through the decoder and exit")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	km, err := loadKeymap(*keymapPath, *device)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load keymap")
	}

	sinks := dispatch.Sinks{
		Pixels: platform.NewLogPixels(*pixels, log.With().Str("sink", "pixels").Logger()),
		HID:    platform.NewLogHID(log.With().Str("sink", "hid").Logger()),
		Servo:  platform.NewLogServo(2, log.With().Str("sink", "servo").Logger()),
	}

	if *runSelftest {
		if err := selftest(ctx, km, sinks, log.With().Str("svc", "selftest").Logger()); err != nil {
			log.Fatal().Err(err).Msg("Selftest failed")
		}
		log.Info().Int("bindings", len(km.Bindings)).Msg("Selftest passed")
		return
	}

	src, err := openSource(*serialPath, *baud, *replay)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open edge source")
	}
	defer src.Close()

	b := bus.NewBus(32)

	cfgSvc := config.NewConfigService(log.With().Str("svc", "config").Logger())
	if *keymapPath != "" {
		cfgSvc.Keymap = km
	}
	cfgConn := b.NewConnection("config")
	if err := cfgSvc.Publish(context.WithValue(ctx, config.CtxDeviceKey, *device), cfgConn); err != nil {
		log.Fatal().Err(err).Msg("Failed to publish config")
	}
	if *broker != "" {
		bc, err := brokerConfig(*broker)
		if err != nil {
			log.Fatal().Err(err).Str("mqtt", *broker).Msg("Bad broker address")
		}
		cfgConn.Publish(cfgConn.NewMessage(bus.T("config", "bridge"), bc, true))
	}

	go bridge.Start(ctx, b.NewConnection("bridge"), log.With().Str("svc", "bridge").Logger())

	collector := metrics.NewCollector()
	registry := prometheus.NewRegistry()
	registry.MustRegister(collector)
	go collector.Run(ctx, b.NewConnection("metrics"))

	var srv *http.Server
	if *listen != "" {
		srv = &http.Server{
			Addr: *listen,
			Handler: httpapi.NewRouter(httpapi.Deps{
				Conn:     b.NewConnection("http"),
				Gatherer: registry,
				Events:   stream.NewHandler(b, nil, log.With().Str("svc", "stream").Logger()),
				Log:      log.With().Str("svc", "http").Logger(),
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info().Str("address", *listen).Msg("Starting HTTP server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("HTTP server failed")
				stop()
			}
		}()
	}

	irSvc := ir.New(b.NewConnection("ir"), ir.Options{
		Source: src,
		Sinks:  sinks,
		Log:    log.With().Str("svc", "ir").Logger(),
	})
	if err := irSvc.Run(ctx); err != nil {
		log.Error().Err(err).Msg("IR service failed")
	}
	st := irSvc.Stats()
	log.Info().
		Uint32("frames", st.Frames).
		Uint32("codes", st.Codes).
		Uint32("repeats", st.Repeats).
		Uint32("errors", st.Errors).
		Uint32("fired", st.Fired).
		Msg("IR loop finished")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP shutdown failed")
		}
	}
	log.Info().Msg("Shutting down...")
}

func loadKeymap(path, device string) (*config.Keymap, error) {
	if path != "" {
		return config.LoadKeymap(path)
	}
	d, err := config.LoadDevice(device)
	if err != nil {
		return nil, err
	}
	return config.EmbeddedKeymap(d.Keymap)
}

func openSource(serialPath string, baud int, replay string) (*platform.SerialSource, error) {
	l := log.With().Str("svc", "capture").Logger()
	switch {
	case replay != "":
		f, err := os.Open(replay)
		if err != nil {
			return nil, err
		}
		return platform.NewSerialSource(f, l), nil
	case serialPath != "":
		return platform.OpenSerial(serialPath, baud, l)
	}
	return nil, errors.New("one of -serial or -replay is required")
}

// brokerConfig parses host[:port].
func brokerConfig(addr string) (types.BridgeConfig, error) {
	bc := types.BridgeConfig{Broker: addr, Port: bridge.DefaultPort, ClientID: "irbridge", TopicPrefix: bridge.DefaultPrefix}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		var ae *net.AddrError
		if errors.As(err, &ae) && ae.Err == "missing port in address" {
			return bc, nil
		}
		return bc, err
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return bc, err
	}
	bc.Broker, bc.Port = host, p
	return bc, nil
}
