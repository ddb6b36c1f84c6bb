// Package db opens the SQLite database that records scan sessions, applies
// the embedded schema migrations and exposes admin debug routes.
package db
