package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

var ErrPublishTimeout = errors.New("mqtt publish timeout")

type MQTTConfig struct {
	Broker      string // host:port or a full tcp:// URL
	ClientID    string
	TopicPrefix string // defaults to "rollcall"
	QoS         byte
	Timeout     time.Duration
}

// publishClient is the part of mqtt.Client the publisher needs.
type publishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTPublisher sends each Change as JSON to
// <prefix>/<siteId>/attendance/<workerId>.
type MQTTPublisher struct {
	client  publishClient
	prefix  string
	qos     byte
	timeout time.Duration
	logger  *slog.Logger
	close   func()
}

// DialMQTT connects to the broker. The paho client reconnects on its own
// after the first successful connect.
func DialMQTT(ctx context.Context, cfg MQTTConfig, logger *slog.Logger) (*MQTTPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	broker := cfg.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		logger.Info("mqtt connection established", "broker", broker, "client_id", cfg.ClientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost, will auto-reconnect", "broker", broker, "error", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()

	wait := 5 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		wait = time.Until(dl)
	}
	if !token.WaitTimeout(wait) {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect %s: timeout", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, err)
	}

	p := NewMQTTPublisher(client, cfg, logger)
	p.close = func() { client.Disconnect(250) }
	return p, nil
}

func NewMQTTPublisher(client publishClient, cfg MQTTConfig, logger *slog.Logger) *MQTTPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	prefix := strings.Trim(cfg.TopicPrefix, "/")
	if prefix == "" {
		prefix = "rollcall"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &MQTTPublisher{
		client:  client,
		prefix:  prefix,
		qos:     cfg.QoS,
		timeout: timeout,
		logger:  logger,
	}
}

// Topic returns the topic a change for workerID at siteID is published to.
func Topic(prefix, siteID, workerID string) string {
	return fmt.Sprintf("%s/%s/attendance/%s", prefix, siteID, workerID)
}

func (p *MQTTPublisher) Publish(ctx context.Context, c Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}

	topic := Topic(p.prefix, c.SiteID, c.WorkerID)
	timeout := p.timeout
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < timeout {
		timeout = time.Until(dl)
	}

	token := p.client.Publish(topic, p.qos, false, payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publish %s: %w", topic, ErrPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	p.logger.Debug("attendance change published", "topic", topic, "qos", p.qos, "size", len(payload))
	return nil
}

func (p *MQTTPublisher) Close() {
	if p.close != nil {
		p.close()
		p.logger.Info("mqtt disconnected")
	}
}
