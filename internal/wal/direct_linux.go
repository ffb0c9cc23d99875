package wal

import "golang.org/x/sys/unix"

// directFlags returns the open flags for direct, synchronous writes
// (bypass page cache, flush to media before completion), matching the
// spec's durability contract for WAL appends.
func directFlags() int {
	return unix.O_DIRECT | unix.O_DSYNC
}

func osDsync() int {
	return unix.O_DSYNC
}
