//go:build !rp2040 && !rp2350

package bridge

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"irremote-go/errcode"
	"irremote-go/types"
)

const publishTimeout = 2 * time.Second

func init() { Dial = DialMQTT }

type mqttPublisher struct {
	client mqtt.Client
	online string
}

// DialMQTT connects to cfg's broker over TCP. A retained "<prefix>/online"
// flag is set on connect and cleared by the broker's last will.
func DialMQTT(ctx context.Context, cfg types.BridgeConfig, onLost func(error)) (Publisher, error) {
	online := cfg.TopicPrefix + "/online"

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetAutoReconnect(false) // the bridge supervises reconnects
	opts.SetWill(online, "0", 1, true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) { onLost(err) })

	client := mqtt.NewClient(opts)
	tok := client.Connect()
	select {
	case <-tok.Done():
	case <-ctx.Done():
		client.Disconnect(0)
		return nil, ctx.Err()
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s:%d: %w", cfg.Broker, cfg.Port, err)
	}

	p := &mqttPublisher{client: client, online: online}
	if err := p.Publish(online, 1, true, []byte("1")); err != nil {
		client.Disconnect(0)
		return nil, err
	}
	return p, nil
}

func (p *mqttPublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	tok := p.client.Publish(topic, qos, retained, payload)
	if !tok.WaitTimeout(publishTimeout) {
		return errcode.Wrap(errcode.Timeout, "mqtt.publish", fmt.Errorf("topic %s", topic))
	}
	return tok.Error()
}

func (p *mqttPublisher) Close() {
	_ = p.Publish(p.online, 1, true, []byte("0"))
	p.client.Disconnect(250)
}
