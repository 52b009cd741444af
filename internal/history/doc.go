// Package history keeps a log of program scene switches in SQLite.
//
// Every switch the rotator issues, and every program change observed from
// OBS, is recorded with its source (operator, rotation, mqtt, obs) and, for
// rotation switches, the group. Old entries are removed by Prune according
// to database.history_retention_days.
package history
