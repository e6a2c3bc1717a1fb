// Package mqtt publishes coordinator reports to an MQTT broker as
// zigbee2mqtt-style device state: a retained JSON object on
// <base>/<friendly name> and an availability topic per device.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pion/logging"

	"github.com/backkem/climate-node/pkg/bridge"
	"github.com/backkem/climate-node/pkg/coordinator"
)

// Defaults.
const (
	DefaultBaseTopic      = "zigbee2mqtt"
	DefaultPublishTimeout = 5 * time.Second
)

// Availability payloads.
const (
	Online  = "online"
	Offline = "offline"
)

// Errors.
var (
	ErrNoPublisher    = errors.New("mqtt: publisher is required")
	ErrInvalidQoS     = errors.New("mqtt: qos must be 0, 1 or 2")
	ErrPublishTimeout = errors.New("mqtt: publish timed out")
)

// Publisher is the part of a paho client the bridge uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
}

// BridgeConfig configures a Bridge.
type BridgeConfig struct {
	// Publisher sends messages. Required; use Connect for a broker client.
	Publisher Publisher

	// BaseTopic prefixes every topic. Default: "zigbee2mqtt".
	BaseTopic string

	// QoS of published messages.
	QoS byte

	// Names maps IEEE addresses to friendly names.
	Names bridge.Names

	// PublishTimeout bounds each publish. Default: 5s.
	PublishTimeout time.Duration

	// LoggerFactory for bridge logs. Optional.
	LoggerFactory logging.LoggerFactory
}

// Validate checks the configuration.
func (c *BridgeConfig) Validate() error {
	if c.Publisher == nil {
		return ErrNoPublisher
	}
	if c.QoS > 2 {
		return ErrInvalidQoS
	}
	return nil
}

func (c *BridgeConfig) applyDefaults() {
	if c.BaseTopic == "" {
		c.BaseTopic = DefaultBaseTopic
	}
	if c.PublishTimeout == 0 {
		c.PublishTimeout = DefaultPublishTimeout
	}
}

// Bridge is a coordinator.ReportHandler that publishes device state.
type Bridge struct {
	config  BridgeConfig
	tracker *bridge.Tracker
	log     logging.LeveledLogger
}

// NewBridge creates a bridge.
func NewBridge(config BridgeConfig) (*Bridge, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	b := &Bridge{
		config:  config,
		tracker: bridge.NewTracker(config.Names),
	}
	if config.LoggerFactory != nil {
		b.log = config.LoggerFactory.NewLogger("mqtt")
	}
	return b, nil
}

// StateTopic returns the topic a device's state is published on.
func (b *Bridge) StateTopic(name string) string {
	return b.config.BaseTopic + "/" + name
}

// AvailabilityTopic returns the topic a device's availability is
// published on.
func (b *Bridge) AvailabilityTopic(name string) string {
	return b.StateTopic(name) + "/availability"
}

// BridgeStateTopic is where the bridge's own availability is published.
func (b *Bridge) BridgeStateTopic() string {
	return b.config.BaseTopic + "/bridge/state"
}

// HandleReport implements coordinator.ReportHandler.
func (b *Bridge) HandleReport(r coordinator.Report) {
	state, first, ok := b.tracker.Update(r)
	if !ok {
		return
	}
	if first {
		if err := b.publish(b.AvailabilityTopic(state.Name), []byte(Online)); err != nil && b.log != nil {
			b.log.Warnf("publish availability for %s: %v", state.Name, err)
		}
	}

	payload, err := json.Marshal(state)
	if err != nil {
		if b.log != nil {
			b.log.Errorf("encode state for %s: %v", state.Name, err)
		}
		return
	}
	if err := b.publish(b.StateTopic(state.Name), payload); err != nil {
		if b.log != nil {
			b.log.Warnf("publish state for %s: %v", state.Name, err)
		}
		return
	}
	if b.log != nil {
		b.log.Debugf("published %s %s", b.StateTopic(state.Name), payload)
	}
}

// MarkOffline publishes offline availability for every known device.
func (b *Bridge) MarkOffline() {
	for _, s := range b.tracker.States() {
		_ = b.publish(b.AvailabilityTopic(s.Name), []byte(Offline))
	}
}

func (b *Bridge) publish(topic string, payload []byte) error {
	tok := b.config.Publisher.Publish(topic, b.config.QoS, true, payload)
	if !tok.WaitTimeout(b.config.PublishTimeout) {
		return fmt.Errorf("%w: %s", ErrPublishTimeout, topic)
	}
	return tok.Error()
}

var _ coordinator.ReportHandler = (*Bridge)(nil)
