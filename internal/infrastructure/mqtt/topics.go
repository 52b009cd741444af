package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every topic the rotator publishes or consumes.
const TopicPrefix = "scenerotator"

// Topic sections.
const (
	topicState   = TopicPrefix + "/state"
	topicEvent   = TopicPrefix + "/event"
	topicCommand = TopicPrefix + "/command"
	topicSystem  = TopicPrefix + "/system"
)

// Command names carried after scenerotator/command/.
const (
	CommandSwitch        = "switch"
	CommandRotationStart = "rotation/start"
	CommandRotationStop  = "rotation/stop"
)

// Topics builds the rotator's topic names.
//
//	topics := mqtt.Topics{}
//	topics.StateCurrentScene() // "scenerotator/state/current_scene"
type Topics struct{}

// StateCurrentScene is the retained program scene.
func (Topics) StateCurrentScene() string {
	return topicState + "/current_scene"
}

// StateScenes is the retained scene directory snapshot.
func (Topics) StateScenes() string {
	return topicState + "/scenes"
}

// StateRotations is the retained list of active rotations.
func (Topics) StateRotations() string {
	return topicState + "/rotations"
}

// Event returns a non-retained event topic.
//
// Example: scenerotator/event/scene_switched
func (Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/%s", topicEvent, eventType)
}

// Command returns the topic for a remote command.
//
// Example: scenerotator/command/rotation/start
func (Topics) Command(name string) string {
	return fmt.Sprintf("%s/%s", topicCommand, name)
}

// AllCommands matches every command topic.
func (Topics) AllCommands() string {
	return topicCommand + "/#"
}

// SystemStatus carries the online/offline announcements and the LWT.
func (Topics) SystemStatus() string {
	return topicSystem + "/status"
}

// CommandName extracts the command name from a command topic, reporting
// false for topics outside scenerotator/command/.
func CommandName(topic string) (string, bool) {
	name, ok := strings.CutPrefix(topic, topicCommand+"/")
	if !ok || name == "" {
		return "", false
	}
	return name, true
}
