// Package hamqtt mirrors host entity states to Home Assistant over MQTT
// using MQTT discovery.
package hamqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/angas/entsoe-go/host"
	"github.com/angas/entsoe-go/metrics"
)

const queueSize = 256

type Publisher interface {
	Publish(topic string, payload []byte, retained bool) error
}

// StateSource is the part of the host state machine the bridge follows.
type StateSource interface {
	Subscribe(fn func(host.StateChangedEvent)) (unsubscribe func())
	All() []host.State
}

type Bridge struct {
	logger          *slog.Logger
	pub             Publisher
	states          StateSource
	discoveryPrefix string
	baseTopic       string
	component       string
	queue           chan host.StateChangedEvent
	discovered      map[string]bool
	resync          chan struct{}
}

func NewBridge(pub Publisher, states StateSource, discoveryPrefix, baseTopic, component string) *Bridge {
	return &Bridge{
		logger:          slog.Default().With("module", "hamqtt"),
		pub:             pub,
		states:          states,
		discoveryPrefix: discoveryPrefix,
		baseTopic:       baseTopic,
		component:       component,
		queue:           make(chan host.StateChangedEvent, queueSize),
		discovered:      make(map[string]bool),
		resync:          make(chan struct{}, 1),
	}
}

func AvailabilityTopic(baseTopic string) string {
	return baseTopic + "/status"
}

// Run publishes state changes until ctx is done. State changes are queued
// without blocking the state machine, when the queue is full they are
// dropped and picked up by the next change or resync.
func (b *Bridge) Run(ctx context.Context) {
	unsubscribe := b.states.Subscribe(func(ev host.StateChangedEvent) {
		select {
		case b.queue <- ev:
		default:
			b.logger.Warn("MQTT queue full, dropping state", slog.String("entity_id", ev.EntityID))
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.resync:
			b.publishAll()
		case ev := <-b.queue:
			b.handle(ev)
		}
	}
}

// Resync republishes discovery and state of every entity, e.g. after a
// reconnect where Home Assistant may have lost retained messages.
func (b *Bridge) Resync() {
	select {
	case b.resync <- struct{}{}:
	default:
	}
}

func (b *Bridge) publishAll() {
	clear(b.discovered)
	for _, s := range b.states.All() {
		b.publishState(s)
	}
}

func (b *Bridge) handle(ev host.StateChangedEvent) {
	if ev.New == nil {
		b.removeEntity(ev.EntityID)
		return
	}
	b.publishState(*ev.New)
}

func (b *Bridge) publishState(s host.State) {
	objectID := ObjectID(s.EntityID)

	if !b.discovered[objectID] {
		if err := b.publishJSON(b.discoveryTopic(objectID), b.discoveryConfig(objectID, s), true); err != nil {
			b.logger.Error("failed to publish discovery config", slog.String("entity_id", s.EntityID), slog.Any("error", err))
			return
		}
		b.discovered[objectID] = true
	}

	b.publish(b.stateTopic(objectID), []byte(s.State), true)
	if err := b.publishJSON(b.attributesTopic(objectID), s.Attributes, true); err != nil {
		b.logger.Error("failed to publish attributes", slog.String("entity_id", s.EntityID), slog.Any("error", err))
	}
}

func (b *Bridge) removeEntity(entityID string) {
	objectID := ObjectID(entityID)
	delete(b.discovered, objectID)
	b.publish(b.discoveryTopic(objectID), nil, true)
}

func (b *Bridge) publishJSON(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		metrics.MqttPublish(metrics.ResultError)
		return fmt.Errorf("marshal %s: %w", topic, err)
	}
	return b.publish(topic, payload, retained)
}

func (b *Bridge) publish(topic string, payload []byte, retained bool) error {
	if err := b.pub.Publish(topic, payload, retained); err != nil {
		metrics.MqttPublish(metrics.ResultError)
		b.logger.Warn("MQTT publish failed", slog.String("topic", topic), slog.Any("error", err))
		return err
	}
	metrics.MqttPublish(metrics.ResultSuccess)
	return nil
}

func (b *Bridge) discoveryConfig(objectID string, s host.State) map[string]any {
	cfg := map[string]any{
		"name":                  s.Attributes["friendly_name"],
		"unique_id":             b.component + "_" + objectID,
		"object_id":             objectID,
		"state_topic":           b.stateTopic(objectID),
		"json_attributes_topic": b.attributesTopic(objectID),
		"availability_topic":    AvailabilityTopic(b.baseTopic),
		"payload_available":     PayloadOnline,
		"payload_not_available": PayloadOffline,
	}
	for _, key := range []string{"unit_of_measurement", "device_class", "state_class", "icon"} {
		if v, ok := s.Attributes[key]; ok {
			cfg[key] = v
		}
	}
	return cfg
}

func (b *Bridge) discoveryTopic(objectID string) string {
	return fmt.Sprintf("%s/sensor/%s/%s/config", b.discoveryPrefix, b.component, objectID)
}

func (b *Bridge) stateTopic(objectID string) string {
	return fmt.Sprintf("%s/%s/state", b.baseTopic, objectID)
}

func (b *Bridge) attributesTopic(objectID string) string {
	return fmt.Sprintf("%s/%s/attributes", b.baseTopic, objectID)
}

// ObjectID strips the domain from an entity id.
func ObjectID(entityID string) string {
	if _, after, ok := strings.Cut(entityID, "."); ok {
		return after
	}
	return entityID
}
