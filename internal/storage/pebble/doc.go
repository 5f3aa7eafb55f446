// Package pebblestore provides a thin wrapper around Pebble with fsync
// policy, point operations, and prefix scans. It backs the registry's
// node and channel tables.
//
// Usage:
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./data",
//	    Fsync:   pebblestore.FsyncModeInterval,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	_ = db.Set([]byte("node/a"), []byte(`{...}`))
//	v, _ := db.Get([]byte("node/a"))
//	_ = db.ScanPrefix([]byte("node/"), func(k, v []byte) error { return nil })
package pebblestore
