package switcher

import "time"

// Event types delivered to broadcasters.
const (
	EventSceneChanged    = "scene.changed"
	EventScenesUpdated   = "scenes.updated"
	EventRotationStarted = "rotation.started"
	EventRotationStopped = "rotation.stopped"
	EventGroupsUpdated   = "groups.updated"
	EventOBSConnection   = "obs.connection"
)

// Broadcaster receives every notification the service emits. The payload's
// concrete type depends on eventType:
//
//	scene.changed                      SceneChanged
//	scenes.updated                     obs.DirectorySnapshot
//	rotation.started, rotation.stopped RotationChanged
//	groups.updated                     GroupsChanged
//	obs.connection                     ConnectionChanged
//
// Broadcast is called synchronously from whichever goroutine produced the
// event and must not block.
type Broadcaster interface {
	Broadcast(eventType string, payload any)
}

// SceneChanged announces a new program scene.
type SceneChanged struct {
	Scene  string    `json:"scene"`
	Source string    `json:"source"`
	Group  string    `json:"group,omitempty"`
	At     time.Time `json:"at"`
}

// RotationChanged announces a rotation starting or stopping. Active lists
// every rotating group after the change.
type RotationChanged struct {
	Group  string    `json:"group"`
	Reason string    `json:"reason"`
	Active []string  `json:"active"`
	At     time.Time `json:"at"`
}

// GroupsChanged announces a committed group store mutation.
type GroupsChanged struct {
	Kind    string `json:"kind"`
	Name    string `json:"name,omitempty"`
	OldName string `json:"old_name,omitempty"`
}

// ConnectionChanged announces an OBS connection state transition.
type ConnectionChanged struct {
	State string    `json:"state"`
	Ready bool      `json:"ready"`
	At    time.Time `json:"at"`
}
