// Package influxdb writes scene-rotator telemetry to InfluxDB v2.
//
// Three measurements are recorded:
//
//	scene_switch    tags: source, group   fields: scene, count
//	rotation        tags: group           fields: active
//	obs_connection  tags: state           fields: ready
//
// Writes are non-blocking and batched per the influxdb config section
// (batch_size, flush_interval). Errors from batched writes are delivered to
// the SetOnError callback; connection errors are returned from Connect and
// HealthCheck.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteSceneSwitch("Cam1", "rotation", "Intro")
package influxdb
