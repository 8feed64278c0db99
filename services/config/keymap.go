package config

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"irremote-go/errcode"
	"irremote-go/services/ir/dispatch"
	"irremote-go/services/ir/nec"
	"irremote-go/x/mathx"
)

// Effect kinds accepted in keymap files.
const (
	KindSetPixel   = "set_pixel"
	KindFillPixels = "fill_pixels"
	KindPressKey   = "press_key"
	KindTypeText   = "type_text"
	KindMoveServo  = "move_servo"
	KindNoOp       = "noop"
)

// Keymap is a named table of code bindings. It is the payload published
// on config/keymap.
type Keymap struct {
	Name           string        `yaml:"name" json:"name"`
	DebounceMS     int           `yaml:"debounce_ms,omitempty" json:"debounce_ms,omitempty"`
	RepeatWindowMS int           `yaml:"repeat_window_ms,omitempty" json:"repeat_window_ms,omitempty"`
	Bindings       []BindingSpec `yaml:"bindings" json:"bindings"`
}

type BindingSpec struct {
	Code       string     `yaml:"code" json:"code"`
	Label      string     `yaml:"label,omitempty" json:"label,omitempty"`
	Effect     EffectSpec `yaml:"effect" json:"effect"`
	DebounceMS int        `yaml:"debounce_ms,omitempty" json:"debounce_ms,omitempty"`
}

// EffectSpec is the union of every effect's fields; Kind selects which
// apply.
type EffectSpec struct {
	Kind    string         `yaml:"kind" json:"kind"`
	Index   int            `yaml:"index,omitempty" json:"index,omitempty"`
	RGB     []int          `yaml:"rgb,omitempty" json:"rgb,omitempty"`
	Keys    []dispatch.Key `yaml:"keys,omitempty" json:"keys,omitempty"`
	Text    string         `yaml:"text,omitempty" json:"text,omitempty"`
	Channel int            `yaml:"channel,omitempty" json:"channel,omitempty"`
	Angle   int            `yaml:"angle,omitempty" json:"angle,omitempty"`
}

// ParseKeymap decodes and validates a YAML keymap. Unknown fields, bad
// codes and unknown effect kinds give errcode.InvalidConfig.
func ParseKeymap(data []byte) (*Keymap, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var km Keymap
	if err := dec.Decode(&km); err != nil && !errors.Is(err, io.EOF) {
		return nil, errcode.Wrap(errcode.InvalidConfig, "keymap.parse", err)
	}
	if _, err := km.Registry(); err != nil {
		return nil, err
	}
	return &km, nil
}

// LoadKeymap reads a keymap file.
func LoadKeymap(path string) (*Keymap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keymap %s: %w", path, err)
	}
	return ParseKeymap(data)
}

// Registry builds the dispatch table.
func (k *Keymap) Registry() (*dispatch.Registry, error) {
	bs := make([]dispatch.Binding, 0, len(k.Bindings))
	for i, spec := range k.Bindings {
		code, err := nec.ParseCode(spec.Code)
		if err != nil {
			return nil, bindingErr(i, err)
		}
		eff, err := spec.Effect.build()
		if err != nil {
			return nil, bindingErr(i, err)
		}
		if spec.DebounceMS < 0 {
			return nil, bindingErr(i, errors.New("negative debounce_ms"))
		}
		bs = append(bs, dispatch.Binding{
			Code:     code,
			Label:    spec.Label,
			Effect:   eff,
			Debounce: ms(spec.DebounceMS),
		})
	}
	reg, err := dispatch.NewRegistry(bs...)
	if err != nil {
		return nil, errcode.Wrap(errcode.InvalidConfig, "keymap."+k.Name, err)
	}
	return reg, nil
}

// DispatchOptions carries the keymap's timing; zero fields keep the
// dispatcher defaults.
func (k *Keymap) DispatchOptions() dispatch.Options {
	return dispatch.Options{
		Debounce:     ms(k.DebounceMS),
		RepeatWindow: ms(k.RepeatWindowMS),
	}
}

func (e EffectSpec) build() (dispatch.Effect, error) {
	switch e.Kind {
	case KindSetPixel:
		if e.Index < 0 {
			return nil, errors.New("negative pixel index")
		}
		c, err := rgb(e.RGB)
		if err != nil {
			return nil, err
		}
		return dispatch.SetPixelColor{Index: e.Index, RGB: c}, nil
	case KindFillPixels:
		c, err := rgb(e.RGB)
		if err != nil {
			return nil, err
		}
		return dispatch.FillPixels{RGB: c}, nil
	case KindPressKey:
		if len(e.Keys) == 0 {
			return nil, errors.New("press_key needs keys")
		}
		return dispatch.PressKey{Keys: append([]dispatch.Key(nil), e.Keys...)}, nil
	case KindTypeText:
		if e.Text == "" {
			return nil, errors.New("type_text needs text")
		}
		return dispatch.TypeText{Text: e.Text}, nil
	case KindMoveServo:
		if e.Channel < 0 || !mathx.Between(e.Angle, 0, 180) {
			return nil, fmt.Errorf("servo channel %d angle %d", e.Channel, e.Angle)
		}
		return dispatch.MoveServo{Channel: e.Channel, Angle: e.Angle}, nil
	case KindNoOp:
		return dispatch.NoOp{}, nil
	}
	return nil, fmt.Errorf("unknown effect kind %q", e.Kind)
}

func rgb(v []int) (color.RGBA, error) {
	if len(v) != 3 {
		return color.RGBA{}, fmt.Errorf("rgb wants 3 values, got %d", len(v))
	}
	for _, x := range v {
		if !mathx.Between(x, 0, 255) {
			return color.RGBA{}, fmt.Errorf("rgb value %d out of range", x)
		}
	}
	return dispatch.RGB(uint8(v[0]), uint8(v[1]), uint8(v[2])), nil
}

func bindingErr(i int, err error) error {
	return &errcode.E{C: errcode.InvalidConfig, Op: "keymap", Msg: fmt.Sprintf("binding %d", i), Err: err}
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
