package hamqtt

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"

	publishTimeout = 10 * time.Second
)

// Client is a paho client that announces its availability with a retained
// message and a last will.
type Client struct {
	mqttClient        mqtt.Client
	logger            *slog.Logger
	availabilityTopic string
	mu                sync.Mutex
	onConnect         func()
}

func NewClient(broker string, port int16, username, password, clientId, availabilityTopic string) *Client {
	logger := slog.Default().With("module", "hamqtt")
	c := &Client{logger: logger, availabilityTopic: availabilityTopic}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", broker, port))
	opts.SetClientID(clientId)
	opts.SetUsername(username)
	opts.SetPassword(password)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetWill(availabilityTopic, PayloadOffline, 1, true)
	opts.OnConnect = func(client mqtt.Client) {
		logger.Info("MQTT connected", slog.String("broker", broker))
		token := client.Publish(availabilityTopic, 1, true, PayloadOnline)
		if token.WaitTimeout(publishTimeout) && token.Error() != nil {
			logger.Warn("failed to publish availability", slog.Any("error", token.Error()))
		}
		c.mu.Lock()
		fn := c.onConnect
		c.mu.Unlock()
		if fn != nil {
			fn()
		}
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", slog.Any("error", err))
	}

	installLoggers(slog.Default().With("module", "mqtt"))

	c.mqttClient = mqtt.NewClient(opts)
	return c
}

// OnConnect sets a callback for every (re)connect, after availability has
// been published.
func (c *Client) OnConnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = fn
}

func (c *Client) Connect() error {
	c.logger.Debug("connecting MQTT client")
	token := c.mqttClient.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return nil
}

func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	token := c.mqttClient.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Disconnect marks the service offline and closes the connection.
func (c *Client) Disconnect() {
	if !c.mqttClient.IsConnected() {
		return
	}
	token := c.mqttClient.Publish(c.availabilityTopic, 1, true, PayloadOffline)
	token.WaitTimeout(time.Second)
	c.mqttClient.Disconnect(250)
	c.logger.Info("MQTT disconnected")
}
