package types

// Service configuration supplied on retained "config/<svc>" topics.

// IndicatorConfig is carried on "config/indicator".
type IndicatorConfig struct {
	Pin        int `json:"pin,omitempty" yaml:"pin,omitempty"`
	IntervalMS int `json:"interval_ms" yaml:"interval_ms"` // heartbeat blink period; 0 disables
	FlashMS    int `json:"flash_ms" yaml:"flash_ms"`       // on-time after a decode error
}

// BridgeConfig is carried on "config/bridge".
type BridgeConfig struct {
	Broker      string `json:"broker" yaml:"broker"`
	Port        int    `json:"port" yaml:"port"`
	ClientID    string `json:"client_id" yaml:"client_id"`
	Username    string `json:"username,omitempty" yaml:"username,omitempty"`
	Password    string `json:"password,omitempty" yaml:"password,omitempty"`
	TopicPrefix string `json:"topic_prefix" yaml:"topic_prefix"`
}
