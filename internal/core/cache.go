package core

import "errors"

// ErrCacheMiss is returned by SnapshotCache.GetSnapshot when no snapshot is
// stored for the host.
var ErrCacheMiss = errors.New("snapshot cache miss")
