package mqtt

import (
	"errors"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Connection constants.
const (
	defaultConnectTimeout    = 10 * time.Second
	defaultKeepAlive         = 60 * time.Second
	defaultDisconnectQuiesce = 1000 // milliseconds
)

// ErrConnectionFailed is returned when the broker cannot be reached.
var ErrConnectionFailed = errors.New("mqtt: connection failed")

// ClientConfig describes the broker connection.
type ClientConfig struct {
	// Broker URL, e.g. "tcp://localhost:1883".
	Broker string

	// ClientID defaults to "climate-coordinator-<uuid>".
	ClientID string

	Username string
	Password string

	// BaseTopic is used for the last-will bridge state topic.
	BaseTopic string
}

// Client is a connected broker client.
type Client struct {
	client    pahomqtt.Client
	willTopic string
}

// Connect dials the broker. The bridge state topic carries a retained
// "offline" last will and is set "online" on every (re)connect.
func Connect(cfg ClientConfig) (*Client, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = "climate-coordinator-" + uuid.NewString()
	}
	if cfg.BaseTopic == "" {
		cfg.BaseTopic = DefaultBaseTopic
	}
	willTopic := cfg.BaseTopic + "/bridge/state"

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetKeepAlive(defaultKeepAlive).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetCleanSession(true).
		SetWill(willTopic, Offline, 1, true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetOnConnectHandler(func(c pahomqtt.Client) {
		c.Publish(willTopic, 1, true, Online)
	})

	c := pahomqtt.NewClient(opts)
	tok := c.Connect()
	if !tok.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return &Client{client: c, willTopic: willTopic}, nil
}

// Publish implements Publisher.
func (c *Client) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	return c.client.Publish(topic, qos, retained, payload)
}

// Close publishes a graceful offline state and disconnects.
func (c *Client) Close() error {
	if c.client.IsConnected() {
		tok := c.client.Publish(c.willTopic, 1, true, Offline)
		tok.WaitTimeout(DefaultPublishTimeout)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	return nil
}

var _ Publisher = (*Client)(nil)
