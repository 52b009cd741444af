package switcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/scene-rotator/internal/history"
	"github.com/nerrad567/scene-rotator/internal/infrastructure/mqtt"
)

// commandTimeout bounds a switch issued from a remote command.
const commandTimeout = 10 * time.Second

// command is the JSON body of every scenerotator/command/... message.
type command struct {
	Scene string `json:"scene"`
	Group string `json:"group"`
}

// HandleCommand executes a remote command. It has the shape of an
// mqtt.MessageHandler and is meant to be subscribed to Topics.AllCommands:
//
//	scenerotator/command/switch          {"scene": "Cam1"}
//	scenerotator/command/rotation/start  {"group": "Intro"}
//	scenerotator/command/rotation/stop   {"group": "Intro"}
func (s *Service) HandleCommand(topic string, payload []byte) error {
	name, ok := mqtt.CommandName(topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, topic)
	}

	var cmd command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidCommand, name, err)
	}

	switch name {
	case mqtt.CommandSwitch:
		ctx, cancel := context.WithTimeout(s.ctx, commandTimeout)
		defer cancel()
		return s.switchTo(ctx, cmd.Scene, history.SourceMQTT, "")

	case mqtt.CommandRotationStart:
		return s.StartRotation(cmd.Group)

	case mqtt.CommandRotationStop:
		if cmd.Group == "" {
			return ErrGroupRequired
		}
		if !s.StopRotation(cmd.Group) {
			s.logger.Debug("stop command for inactive rotation", "group", cmd.Group)
		}
		return nil

	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
}
