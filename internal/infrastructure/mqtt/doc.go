// Package mqtt connects the scene rotator to an MQTT broker.
//
// The rotator publishes retained state (current program scene, scene
// directory, active rotations) under scenerotator/state/ and accepts remote
// commands under scenerotator/command/:
//
//	scenerotator/command/switch          {"scene": "Cam1"}
//	scenerotator/command/rotation/start  {"group": "Intro"}
//	scenerotator/command/rotation/stop   {"group": "Intro"}
//
// Connection handling follows paho's auto-reconnect; subscriptions are
// tracked and restored on reconnect, and a retained Last Will on
// scenerotator/system/status lets dashboards see an unexpected exit.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.PublishJSON(mqtt.Topics{}.StateCurrentScene(), state, true)
package mqtt
