// Package receiver implements the inbound MQTT side of the bridge: it owns
// the broker connection, subscribes every rule topic, and hands messages to
// the engine.
package receiver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/mqtt-tools/mqttbridge/internal/telemetry"
)

// Handler receives decoded MQTT messages. Payloads are decoded as text
// best-effort; non-text payloads arrive as opaque strings.
type Handler interface {
	OnMessage(topic, payload string)
}

// Config holds broker connection settings.
type Config struct {
	Broker    string
	ClientID  string
	Username  string
	Password  string
	Keepalive time.Duration
}

// Receiver wraps the paho MQTT client. Subscriptions are re-established on
// every (re)connect.
type Receiver struct {
	client  mqtt.Client
	topics  []string
	handler Handler
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// New creates a receiver subscribing to topics and delivering to h.
func New(cfg Config, topics []string, h Handler, m *telemetry.Metrics, logger *slog.Logger) *Receiver {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Receiver{
		topics:  topics,
		handler: h,
		metrics: m,
		logger:  logger,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.Keepalive > 0 {
		opts.SetKeepAlive(cfg.Keepalive)
	}
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(r.onConnect)
	opts.SetConnectionLostHandler(r.onConnectionLost)

	r.client = mqtt.NewClient(opts)
	return r
}

// Start connects to the broker. Subscriptions happen in the connect
// handler so they survive reconnects.
func (r *Receiver) Start(ctx context.Context) error {
	token := r.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connecting to broker: %w", err)
	}
	return nil
}

// Shutdown disconnects from the broker, waiting briefly for in-flight work.
func (r *Receiver) Shutdown() {
	r.client.Disconnect(250)
}

// Connected reports the broker connection state.
func (r *Receiver) Connected() bool {
	return r.client.IsConnectionOpen()
}

func (r *Receiver) onConnect(c mqtt.Client) {
	r.logger.Info("connected to broker")
	if r.metrics != nil {
		r.metrics.BrokerConnected.Set(1)
	}

	for _, topic := range r.topics {
		t := topic
		token := c.Subscribe(t, 0, func(_ mqtt.Client, msg mqtt.Message) {
			r.handler.OnMessage(msg.Topic(), string(msg.Payload()))
		})
		go func() {
			token.Wait()
			if err := token.Error(); err != nil {
				r.logger.Error("subscribe failed", "topic", t, "error", err)
				return
			}
			r.logger.Info("subscribed", "topic", t)
		}()
	}
}

func (r *Receiver) onConnectionLost(_ mqtt.Client, err error) {
	r.logger.Warn("disconnected from broker", "error", err)
	if r.metrics != nil {
		r.metrics.BrokerConnected.Set(0)
	}
}
