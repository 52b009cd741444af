package switcher

import (
	"strings"

	"github.com/nerrad567/scene-rotator/internal/infrastructure/mqtt"
	"github.com/nerrad567/scene-rotator/internal/obs"
)

// StatePublisher publishes JSON documents. *mqtt.Client satisfies it.
type StatePublisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// MQTTNotifier mirrors notifications onto MQTT. The current scene, the scene
// directory and the active rotations are published retained under
// scenerotator/state/; every notification is also published, not retained,
// under scenerotator/event/.
type MQTTNotifier struct {
	pub    StatePublisher
	topics mqtt.Topics
	logger Logger
}

// NewMQTTNotifier creates a notifier publishing through pub.
func NewMQTTNotifier(pub StatePublisher, logger Logger) *MQTTNotifier {
	if logger == nil {
		logger = noopLogger{}
	}
	return &MQTTNotifier{pub: pub, logger: logger}
}

// Broadcast implements Broadcaster.
func (n *MQTTNotifier) Broadcast(eventType string, payload any) {
	switch p := payload.(type) {
	case SceneChanged:
		n.publish(n.topics.StateCurrentScene(), p, true)
	case obs.DirectorySnapshot:
		n.publish(n.topics.StateScenes(), p, true)
	case RotationChanged:
		n.publish(n.topics.StateRotations(), p.Active, true)
	}

	n.publish(n.topics.Event(strings.ReplaceAll(eventType, ".", "_")), payload, false)
}

func (n *MQTTNotifier) publish(topic string, v any, retained bool) {
	if err := n.pub.PublishJSON(topic, v, retained); err != nil {
		n.logger.Warn("mqtt notification failed", "topic", topic, "error", err)
	}
}

// MetricsWriter records telemetry points. *influxdb.Client satisfies it.
type MetricsWriter interface {
	WriteSceneSwitch(scene, source, group string)
	WriteRotationState(group string, active bool)
	WriteConnectionState(state string, ready bool)
}

// TelemetryNotifier turns notifications into time-series points.
type TelemetryNotifier struct {
	w MetricsWriter
}

// NewTelemetryNotifier creates a notifier writing through w.
func NewTelemetryNotifier(w MetricsWriter) *TelemetryNotifier {
	return &TelemetryNotifier{w: w}
}

// Broadcast implements Broadcaster.
func (n *TelemetryNotifier) Broadcast(eventType string, payload any) {
	switch p := payload.(type) {
	case SceneChanged:
		n.w.WriteSceneSwitch(p.Scene, p.Source, p.Group)
	case RotationChanged:
		n.w.WriteRotationState(p.Group, eventType == EventRotationStarted)
	case ConnectionChanged:
		n.w.WriteConnectionState(p.State, p.Ready)
	}
}
