package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementSceneSwitch   = "scene_switch"
	MeasurementRotation      = "rotation"
	MeasurementOBSConnection = "obs_connection"
)

// WriteSceneSwitch records one program scene switch. source is "operator",
// "rotation", "mqtt" or "obs" for switches made outside the rotator; group
// is empty unless a rotation issued the switch.
func (c *Client) WriteSceneSwitch(scene, source, group string) {
	tags := map[string]string{"source": source}
	if group != "" {
		tags["group"] = group
	}
	c.WritePoint(MeasurementSceneSwitch, tags, map[string]any{
		"scene": scene,
		"count": 1,
	})
}

// WriteRotationState records a rotation starting (active) or stopping.
func (c *Client) WriteRotationState(group string, active bool) {
	c.WritePoint(MeasurementRotation,
		map[string]string{"group": group},
		map[string]any{"active": active},
	)
}

// WriteConnectionState records a change of the OBS session state.
func (c *Client) WriteConnectionState(state string, ready bool) {
	c.WritePoint(MeasurementOBSConnection,
		map[string]string{"state": state},
		map[string]any{"ready": ready},
	)
}

// WritePoint writes a point stamped with the current time. Tags should be
// low cardinality.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with an explicit timestamp. Writes on a
// closed client are dropped.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
