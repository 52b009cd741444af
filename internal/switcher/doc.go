// Package switcher ties the rotator together.
//
// A Service sits between the OBS connection and everything else. It keeps
// the scene directory current from OBS listings and events, reconciles the
// group store against every fresh listing, owns the rotation scheduler, and
// is the single place scene switches are issued from:
//
//	svc, err := switcher.New(switcher.Deps{OBS: client, Store: store}, cfg)
//	svc.AddBroadcaster(hub)
//	client.Start()
//	defer svc.Close()
//
// Every switch, whether issued by an operator, a rotation, or an MQTT
// command, updates the directory optimistically, is written to the history
// log, and is announced to the registered broadcasters. The next
// CurrentProgramSceneChanged event from OBS has the last word.
package switcher
