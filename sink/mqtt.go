/*
MQTT publisher following the homie convention the original service used:

	<root topic>/<channel>/concentration   measurement values
	<root topic>/<channel>/unit            announced once
	<root topic>/$online                   availability, retained, LWT "false"

A subscriber side is provided for the MQTT to InfluxDB bridge.
*/

package sink

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"pmsense"
)

// MQTTConfig is the broker connection and topic layout.
type MQTTConfig struct {
	Broker   string // e.g. tcp://mqtt.eclipse.org:1883
	Topic    string // root topic, e.g. homie/test
	Username string
	Password string
}

// MQTT publishes measurements to a broker.
type MQTT struct {
	client    paho.Client
	topic     string
	log       zerolog.Logger
	announced bool
}

const connectTimeout = 10 * time.Second

func newClient(cfg MQTTConfig, clientID string, log zerolog.Logger, onConnect paho.OnConnectHandler) (paho.Client, error) {
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetOrderMatters(false)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if onConnect != nil {
		// publisher side: availability topic with last-will fallback
		opts.SetWill(cfg.Topic+"/$online", "false", 1, true)
		opts.SetOnConnectHandler(onConnect)
	}
	client := paho.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %v: timeout", cfg.Broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %v: %w", cfg.Broker, err)
	}
	log.Info().Str("broker", cfg.Broker).Str("topic", cfg.Topic).Msg("mqtt connected")
	return client, nil
}

// NewMQTT connects to the broker and marks the root topic online.
func NewMQTT(cfg MQTTConfig, log zerolog.Logger) (*MQTT, error) {
	topic := strings.TrimSuffix(cfg.Topic, "/")
	client, err := newClient(cfg, topic, log, func(c paho.Client) {
		c.Publish(topic+"/$online", 1, true, "true")
	})
	if err != nil {
		return nil, err
	}
	return &MQTT{client: client, topic: topic, log: log}, nil
}

func (m *MQTT) publish(sub string, payload string) error {
	tok := m.client.Publish(m.topic+"/"+sub, 1, true, payload)
	tok.Wait()
	return tok.Error()
}

// Publish sends one value per channel. The channel metadata topics are
// announced with the first measurement.
func (m *MQTT) Publish(meas pmsense.Measurement) error {
	if !m.announced {
		for _, ch := range meas.Channels {
			if err := m.publish(ch.Channel+"/sensor", meas.Sensor); err != nil {
				return err
			}
			if err := m.publish(ch.Channel+"/unit", ch.Unit); err != nil {
				return err
			}
		}
		m.announced = true
	}
	for _, ch := range meas.Channels {
		payload := strconv.FormatFloat(ch.Value, 'f', -1, 64)
		if err := m.publish(ch.Channel+"/concentration", payload); err != nil {
			return err
		}
	}
	return nil
}

// Close marks the topic offline and disconnects.
func (m *MQTT) Close() error {
	tok := m.client.Publish(m.topic+"/$online", 1, true, "false")
	tok.Wait()
	m.client.Disconnect(250)
	return nil
}

// BridgeData is one value received from a homie-style topic tree.
type BridgeData struct {
	Time        time.Time
	Location    string
	Measurement string
	Value       float64
}

// DecodeBridgeTopic parses "<root>/<location>/<measurement>/<property>"
// into BridgeData. System topics (any $ field) and non-numeric payloads
// are rejected.
func DecodeBridgeTopic(topic, payload string, at time.Time) (BridgeData, error) {
	fields := strings.Split(topic, "/")
	if len(fields) != 4 {
		return BridgeData{}, fmt.Errorf("topic depth %d: %v", len(fields), topic)
	}
	for _, f := range fields {
		if strings.HasPrefix(f, "$") {
			return BridgeData{}, fmt.Errorf("system topic: %v", topic)
		}
	}
	value, err := strconv.ParseFloat(payload, 64)
	if err != nil {
		return BridgeData{}, fmt.Errorf("non numeric payload: %q", payload)
	}
	return BridgeData{Time: at, Location: fields[1], Measurement: fields[2], Value: value}, nil
}

// MQTTSubscriber feeds bridge data from a broker subscription.
type MQTTSubscriber struct {
	client paho.Client
	log    zerolog.Logger
}

// NewMQTTSubscriber connects and subscribes cfg.Topic (a wildcard pattern
// like "homie/+/+/+"), invoking handler for every decodable message.
func NewMQTTSubscriber(cfg MQTTConfig, log zerolog.Logger, handler func(BridgeData)) (*MQTTSubscriber, error) {
	client, err := newClient(cfg, "pmsense-bridge", log, nil)
	if err != nil {
		return nil, err
	}
	tok := client.Subscribe(cfg.Topic, 1, func(_ paho.Client, msg paho.Message) {
		data, err := DecodeBridgeTopic(msg.Topic(), string(msg.Payload()), time.Now())
		if err != nil {
			log.Debug().Err(err).Msg("skipping message")
			return
		}
		handler(data)
	})
	tok.Wait()
	if err := tok.Error(); err != nil {
		client.Disconnect(250)
		return nil, fmt.Errorf("mqtt subscribe %v: %w", cfg.Topic, err)
	}
	return &MQTTSubscriber{client: client, log: log}, nil
}

// Close drops the subscription and disconnects.
func (s *MQTTSubscriber) Close() error {
	s.client.Disconnect(250)
	return nil
}
