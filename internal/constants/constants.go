// Package constants holds default tunables shared across the engine.
package constants

import "time"

// Default configuration constants.
const (
	// DefaultQueueDepth is the default completion-ring submission queue depth
	// per shard.
	DefaultQueueDepth = 128

	// DefaultConnectionCapacity is the default number of concurrent
	// connection slots a single shard accepts before refusing new sockets.
	DefaultConnectionCapacity = 4096

	// DefaultDimension is the default vector dimension when a collection is
	// created without an explicit override.
	DefaultDimension = 768

	// WALSectorSize is the alignment unit for WAL writes and the batch
	// accumulator's flush boundary (4 KiB, matching O_DIRECT requirements).
	WALSectorSize = 4096

	// BatchAccumulatorCapacity is the default size of a shard's batch
	// accumulator staging buffer (256 KiB).
	BatchAccumulatorCapacity = 256 * 1024

	// DefaultShardCount is the default number of shards when none is
	// configured, one per detected CPU core being the usual override.
	DefaultShardCount = 1

	// AutoAssignShardID indicates the orchestrator should assign shard IDs
	// sequentially rather than honoring an explicit pinning.
	AutoAssignShardID = -1

	// RecvBufferSizePerConn is the receive-buffer size allocated per
	// connection slot for frame reassembly.
	RecvBufferSizePerConn = 64 * 1024
)

// Timing constants for shard lifecycle.
const (
	// ReactorTickTimeout is a tick-timeout duration. The reactor does not
	// apply it: the completion-ring wait blocks until at least one
	// completion arrives, so a stopping shard sees its stop flag only on
	// its next completion.
	ReactorTickTimeout = 100 * time.Millisecond

	// GroupCommitWindow is a group-commit window duration. The reactor does
	// not consult it: a dirty batch is flushed when an upsert does not fit,
	// at the end of a tick in which no socket read or write is in flight,
	// or when the shard is stopping.
	GroupCommitWindow = 5 * time.Millisecond
)
