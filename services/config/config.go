package config

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"io"
	"path"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"irremote-go/bus"
	"irremote-go/errcode"
	"irremote-go/types"
	"irremote-go/x/strx"
)

const (
	serviceName   = "config"
	configPrefix  = "config"
	CtxDeviceKey  = "device" // context key used for device ID
	DefaultDevice = "pico"
)

//go:embed devices/*.yaml keymaps/*.yaml
var embedded embed.FS

// EmbeddedConfigLookup allows overriding how device configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, err := embedded.ReadFile(path.Join("devices", device+".yaml"))
	return b, err == nil
}

// EmbeddedKeymap returns a built-in keymap by name.
func EmbeddedKeymap(name string) (*Keymap, error) {
	b, err := embedded.ReadFile(path.Join("keymaps", name+".yaml"))
	if err != nil {
		return nil, &errcode.E{C: errcode.InvalidConfig, Op: "keymap", Msg: "no embedded keymap " + name}
	}
	return ParseKeymap(b)
}

// Device is one device's configuration file.
type Device struct {
	Keymap    string                 `yaml:"keymap"`
	Indicator *types.IndicatorConfig `yaml:"indicator,omitempty"`
	Bridge    *types.BridgeConfig    `yaml:"bridge,omitempty"`
}

func ParseDevice(data []byte) (*Device, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var d Device
	if err := dec.Decode(&d); err != nil && !errors.Is(err, io.EOF) {
		return nil, errcode.Wrap(errcode.InvalidConfig, "device.parse", err)
	}
	return &d, nil
}

// LoadDevice resolves a device's embedded config.
func LoadDevice(device string) (*Device, error) {
	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return nil, &errcode.E{C: errcode.InvalidConfig, Op: "config", Msg: "no embedded config for device " + device}
	}
	return ParseDevice(raw)
}

// -----------------------------------------------------------------------------
// Config Service
// -----------------------------------------------------------------------------

type ConfigService struct {
	Name string
	// Keymap replaces the one named by the device config when set.
	Keymap *Keymap
	Log    zerolog.Logger
}

func NewConfigService(log zerolog.Logger) *ConfigService {
	return &ConfigService{Name: serviceName, Log: log}
}

// Publish resolves the device config and publishes each section retained
// on config/<section>.
func (s *ConfigService) Publish(ctx context.Context, conn *bus.Connection) error {
	device, _ := ctx.Value(CtxDeviceKey).(string)
	device = strx.Coalesce(device, DefaultDevice)

	d, err := LoadDevice(device)
	if err != nil {
		return err
	}

	km := s.Keymap
	if km == nil {
		if km, err = EmbeddedKeymap(d.Keymap); err != nil {
			return err
		}
	}

	conn.Publish(conn.NewMessage(bus.T(configPrefix, "keymap"), km, true))
	if d.Indicator != nil {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, "indicator"), *d.Indicator, true))
	}
	if d.Bridge != nil {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, "bridge"), *d.Bridge, true))
	}
	s.Log.Info().
		Str("device", device).
		Str("keymap", km.Name).
		Int("bindings", len(km.Bindings)).
		Bool("indicator", d.Indicator != nil).
		Bool("bridge", d.Bridge != nil).
		Msg("config published")
	return nil
}

// Start launches the config publisher in a goroutine.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.Publish(ctx, conn); err != nil {
			s.Log.Error().Err(err).Msg("config publish failed")
		}
	}()
}
