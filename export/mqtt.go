package export

import (
	"context"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
)

// MQTTPublisher sends snapshots to a broker. Publishing never blocks the
// control loop for longer than the publish timeout.
type MQTTPublisher struct {
	client  mqtt.Client
	topic   string
	timeout time.Duration
	log     *slog.Logger
}

func NewMQTTPublisher(broker, clientID, topic string, log *slog.Logger) (*MQTTPublisher, error) {
	p := &MQTTPublisher{
		topic:   topic,
		timeout: PublishTimeout,
		log:     log.With("component", "mqtt_export"),
	}
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(1 * time.Second).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(10 * time.Second).
		SetCleanSession(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.log.Error("connection lost, reconnecting", "error", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, errors.Wrapf(token.Error(), "could not connect to mqtt broker %s", broker)
	}
	p.client = client
	return p, nil
}

func (p *MQTTPublisher) Publish(ctx context.Context, s Snapshot) error {
	b, err := s.Marshal()
	if err != nil {
		return err
	}
	token := p.client.Publish(p.topic, 0, false, b)
	if !token.WaitTimeout(p.timeout) {
		return nil
	}
	if err := token.Error(); err != nil {
		return errors.Wrap(err, "could not publish state to mqtt")
	}
	return nil
}

func (p *MQTTPublisher) Close() error {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
	return nil
}
