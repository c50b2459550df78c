// Package signalbus publishes a chamber's derived public signals
// (convened, convened_at, adjourned_at, convenes_at) to an MQTT broker
// as retained topics, with optional Home-Assistant-style MQTT discovery
// so the entities appear automatically in HA. Unlike a periodic sensor
// push, publishing here is event-driven: the chamber orchestration
// calls PublishSignals only when Derive produces a changed result.
package signalbus

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/nugget/chamberwatch/internal/config"
	"github.com/nugget/chamberwatch/internal/session"
)

// Bus manages the MQTT connection and publishes retained state and
// discovery messages for each configured chamber.
type Bus struct {
	cfg      config.MQTTConfig
	chambers []string
	logger   *slog.Logger
	cm       *autopaho.ConnectionManager
}

// New creates a Bus but does not connect. Call Start to begin
// connecting; chambers lists the chamber names ("house", "senate")
// whose discovery configs should be published on connect.
func New(cfg config.MQTTConfig, chambers []string, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{cfg: cfg, chambers: chambers, logger: logger}
}

// Start connects to the MQTT broker. It blocks until either the
// initial connection succeeds or 30 seconds pass; on timeout it logs a
// warning and returns nil, since autopaho keeps retrying in the
// background regardless.
func (b *Bus) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(b.cfg.BrokerURL)
	if err != nil {
		return fmt.Errorf("signalbus: parse broker url: %w", err)
	}

	availTopic := b.availabilityTopic()

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: b.cfg.Username,
		ConnectPassword: []byte(b.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   availTopic,
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			b.logger.Info("signalbus: connected to broker", "broker", b.cfg.BrokerURL)
			publishCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if b.cfg.Discovery {
				b.publishDiscovery(publishCtx, cm)
			}
			b.publishAvailability(publishCtx, cm, "online")
		},
		OnConnectError: func(err error) {
			b.logger.Warn("signalbus: connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: b.cfg.ClientID,
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("signalbus: connect: %w", err)
	}
	b.cm = cm

	connCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		b.logger.Warn("signalbus: initial connection timed out, will retry in background", "error", err)
	}
	return nil
}

// Stop publishes an "offline" availability message and disconnects.
func (b *Bus) Stop(ctx context.Context) error {
	if b.cm == nil {
		return nil
	}
	b.publishAvailability(ctx, b.cm, "offline")
	return b.cm.Disconnect(ctx)
}

// AwaitConnection blocks until the broker connection is established or
// ctx expires.
func (b *Bus) AwaitConnection(ctx context.Context) error {
	if b.cm == nil {
		return fmt.Errorf("signalbus: not started")
	}
	return b.cm.AwaitConnection(ctx)
}

// PublishSignals publishes chamber's four public signals as retained
// MQTT topics. Timestamp signals that are unset publish an empty
// payload rather than omitting the topic, so a subscriber always has a
// definite retained value to read.
func (b *Bus) PublishSignals(ctx context.Context, chamber string, s session.Signals) error {
	if b.cm == nil {
		return fmt.Errorf("signalbus: not started")
	}

	states := map[string]string{
		"convened":     s.Convened.String(),
		"convened_at":  formatTimePtr(s.ConvenedAt),
		"adjourned_at": formatTimePtr(s.AdjournedAt),
		"convenes_at":  formatTimePtr(s.ConvenesAt),
	}

	for entity, value := range states {
		if _, err := b.cm.Publish(ctx, &paho.Publish{
			Topic:   b.stateTopic(chamber, entity),
			Payload: []byte(value),
			QoS:     0,
			Retain:  true,
		}); err != nil {
			return fmt.Errorf("signalbus: publish %s/%s: %w", chamber, entity, err)
		}
	}
	return nil
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

// --- Topic helpers ---

func (b *Bus) baseTopic(chamber string) string {
	return b.cfg.TopicPrefix + "/" + chamber
}

func (b *Bus) availabilityTopic() string {
	return b.cfg.TopicPrefix + "/availability"
}

func (b *Bus) stateTopic(chamber, entity string) string {
	return b.baseTopic(chamber) + "/" + entity
}

func (b *Bus) discoveryTopic(component, chamber, entity string) string {
	return "homeassistant/" + component + "/chamberwatch_" + chamber + "/" + entity + "/config"
}

// --- Discovery ---

type entityDef struct {
	component   string
	entity      string
	name        string
	icon        string
	deviceClass string
}

var entityDefs = []entityDef{
	{"sensor", "convened", "Convened", "mdi:gavel", ""},
	{"sensor", "convened_at", "Convened At", "mdi:clock-start", "timestamp"},
	{"sensor", "adjourned_at", "Adjourned At", "mdi:clock-end", "timestamp"},
	{"sensor", "convenes_at", "Convenes At", "mdi:clock-outline", "timestamp"},
}

func (b *Bus) publishDiscovery(ctx context.Context, cm *autopaho.ConnectionManager) {
	avail := b.availabilityTopic()
	for _, chamber := range b.chambers {
		device := NewDeviceInfo(chamber)
		for _, e := range entityDefs {
			cfg := EntityConfig{
				Name:              e.name,
				ObjectID:          chamber + "_" + e.entity,
				HasEntityName:     true,
				UniqueID:          "chamberwatch_" + chamber + "_" + e.entity,
				StateTopic:        b.stateTopic(chamber, e.entity),
				AvailabilityTopic: avail,
				Device:            device,
				Icon:              e.icon,
				DeviceClass:       e.deviceClass,
			}
			b.publishEntityDiscovery(ctx, cm, e.component, chamber, e.entity, cfg)
		}
	}
}

func (b *Bus) publishEntityDiscovery(ctx context.Context, cm *autopaho.ConnectionManager, component, chamber, entity string, cfg EntityConfig) {
	topic := b.discoveryTopic(component, chamber, entity)
	payload, err := json.Marshal(cfg)
	if err != nil {
		b.logger.Error("signalbus: marshal discovery payload", "chamber", chamber, "entity", entity, "error", err)
		return
	}

	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: payload,
		QoS:     1,
		Retain:  true,
	}); err != nil {
		b.logger.Warn("signalbus: discovery publish failed", "chamber", chamber, "entity", entity, "error", err)
	} else {
		b.logger.Debug("signalbus: discovery published", "chamber", chamber, "entity", entity)
	}
}

func (b *Bus) publishAvailability(ctx context.Context, cm *autopaho.ConnectionManager, status string) {
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   b.availabilityTopic(),
		Payload: []byte(status),
		QoS:     1,
		Retain:  true,
	}); err != nil {
		b.logger.Warn("signalbus: availability publish failed", "status", status, "error", err)
	} else {
		b.logger.Info("signalbus: availability published", "status", status)
	}
}
