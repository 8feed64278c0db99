//go:build !rp2040 && !rp2350

package main

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"irremote-go/services/config"
	"irremote-go/services/ir/dispatch"
	"irremote-go/services/ir/platform"
)

func TestSelftest_EmbeddedKeymaps(t *testing.T) {
	for _, name := range []string{"adafruit-mini", "robot"} {
		km, err := config.EmbeddedKeymap(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		sinks := dispatch.Sinks{
			Pixels: platform.NewLogPixels(8, zerolog.Nop()),
			HID:    platform.NewLogHID(zerolog.Nop()),
			Servo:  platform.NewLogServo(2, zerolog.Nop()),
		}
		if err := selftest(context.Background(), km, sinks, zerolog.Nop()); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
}

func TestSelftest_MissingSinkFails(t *testing.T) {
	km, err := config.EmbeddedKeymap("robot")
	if err != nil {
		t.Fatal(err)
	}
	if err := selftest(context.Background(), km, dispatch.Sinks{}, zerolog.Nop()); err == nil {
		t.Fatal("selftest passed without a servo sink")
	}
}

func TestBrokerConfig(t *testing.T) {
	cases := []struct {
		in   string
		host string
		port int
		err  bool
	}{
		{"mqtt.local", "mqtt.local", 1883, false},
		{"mqtt.local:8883", "mqtt.local", 8883, false},
		{"[::1]:1884", "::1", 1884, false},
		{"host:port", "", 0, true},
	}
	for _, c := range cases {
		bc, err := brokerConfig(c.in)
		if (err != nil) != c.err {
			t.Fatalf("%s: err = %v", c.in, err)
		}
		if !c.err && (bc.Broker != c.host || bc.Port != c.port) {
			t.Fatalf("%s: %+v", c.in, bc)
		}
	}
}
