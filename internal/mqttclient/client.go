// Package mqttclient publishes job lifecycle events to an MQTT broker
// so downstream consumers (archival, notification bots) can follow
// along without polling the API.
package mqttclient

import (
	"encoding/json"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/mstuts/ur-engine/internal/metrics"
)

type Client struct {
	conn      mqtt.Client
	topic     string
	connected atomic.Bool
	log       zerolog.Logger
}

type Options struct {
	BrokerURL string
	ClientID  string
	Topic     string
	Username  string
	Password  string
	Log       zerolog.Logger
}

func Connect(opts Options) (*Client, error) {
	c := &Client{
		topic: opts.Topic,
		log:   opts.Log,
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}

	c.conn = mqtt.NewClient(clientOpts)
	token := c.conn.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}

	return c, nil
}

// eventMessage is the wire shape of a published job event.
type eventMessage struct {
	Type      string    `json:"type"`
	JobID     string    `json:"job_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// PublishEvent sends a job lifecycle event on {topic}/{event_type}.
// Publishing is fire-and-forget: a dropped message is logged, never
// surfaced to the job.
func (c *Client) PublishEvent(eventType, jobID string, payload any) {
	msg := eventMessage{
		Type:      eventType,
		JobID:     jobID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error().Err(err).Str("type", eventType).Msg("failed to marshal mqtt event")
		return
	}

	token := c.conn.Publish(c.topic+"/"+eventType, 0, false, data)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			c.log.Warn().Err(err).Str("type", eventType).Msg("mqtt publish failed")
			return
		}
		metrics.MQTTEventsPublishedTotal.Inc()
	}()
}

func (c *Client) onConnect(_ mqtt.Client) {
	c.connected.Store(true)
	c.log.Info().Str("topic", c.topic).Msg("mqtt connected")
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.connected.Store(false)
	c.log.Warn().Err(err).Msg("mqtt connection lost, will auto-reconnect")
}

func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

func (c *Client) Close() {
	c.log.Info().Msg("disconnecting mqtt client")
	c.conn.Disconnect(1000)
}
