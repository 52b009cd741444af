// Package rotation cycles scene groups through OBS on a timer.
//
// Each active group has its own goroutine that walks the group's visible
// scenes in order, asks the Switcher to put each one on program, and waits
// the group's interval before the next. When every scene in a group is
// hidden the rotation backs off for a second and checks again.
//
// Starting an active group does nothing, and so does stopping an inactive
// one. A rotation whose group is deleted exits on its own.
package rotation
