// Package sqlite implements storage.Store on SQLite using the pure-Go
// modernc.org/sqlite driver.
//
// File databases run in WAL mode with one writer connection and a small
// read-only pool. Schema changes live in the migrations sub-package and are
// applied in order on Open.
package sqlite
