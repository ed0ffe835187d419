package link

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTConfig configures the broker-backed uplink transport.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	TxTopic  string `yaml:"tx_topic"`
	RxTopic  string `yaml:"rx_topic"`
	QoS      byte   `yaml:"qos"`
	Buffer   int    `yaml:"buffer"`
}

// MQTTLink carries framed uplink packets over an MQTT broker: outbound
// packets are published on TxTopic, supervisor messages arrive on RxTopic.
type MQTTLink struct {
	client mqtt.Client
	config MQTTConfig
	logger *zap.Logger

	rx   chan []byte
	done chan struct{}
	once sync.Once
}

// NewMQTTLink connects to the broker and subscribes the receive topic.
func NewMQTTLink(cfg MQTTConfig, logger *zap.Logger) (*MQTTLink, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = 64
	}
	l := &MQTTLink{
		client: client,
		config: cfg,
		logger: logger,
		rx:     make(chan []byte, buffer),
		done:   make(chan struct{}),
	}

	if cfg.RxTopic != "" {
		token := client.Subscribe(cfg.RxTopic, cfg.QoS, l.onMessage)
		if token.Wait() && token.Error() != nil {
			client.Disconnect(250)
			return nil, fmt.Errorf("failed to subscribe to topic %s: %w", cfg.RxTopic, token.Error())
		}
	}

	return l, nil
}

func (l *MQTTLink) onMessage(_ mqtt.Client, msg mqtt.Message) {
	payload := append([]byte(nil), msg.Payload()...)
	select {
	case l.rx <- payload:
	default:
		// Bounded buffer: drop instead of growing without limit.
		l.logger.Warn("MQTT receive buffer full, dropping message",
			zap.String("topic", msg.Topic()),
			zap.Int("payload_size", len(payload)),
		)
	}
}

func (l *MQTTLink) Send(ctx context.Context, msg []byte) error {
	select {
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	token := l.client.Publish(l.config.TxTopic, l.config.QoS, false, msg)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", l.config.TxTopic, token.Error())
	}
	return nil
}

func (l *MQTTLink) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case msg := <-l.rx:
		return msg, nil
	case <-timer.C:
		return nil, ErrReceiveTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.done:
		return nil, ErrClosed
	}
}

func (l *MQTTLink) Close() error {
	l.once.Do(func() {
		close(l.done)
		if l.config.RxTopic != "" {
			if token := l.client.Unsubscribe(l.config.RxTopic); token.Wait() && token.Error() != nil {
				l.logger.Error("Failed to unsubscribe", zap.Error(token.Error()))
			}
		}
		l.client.Disconnect(250)
	})
	return nil
}

var _ Link = (*MQTTLink)(nil)
