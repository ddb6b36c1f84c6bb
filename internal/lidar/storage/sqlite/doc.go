// Package sqlite contains the SQLite repositories for simulated scans.
//
// A session records the sensor configuration and map a run was made with;
// scans hang off a session and are deleted with it. The schema lives in
// internal/db/migrations and is applied with db.OpenMigrated.
package sqlite
