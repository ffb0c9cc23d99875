package vortex

import "github.com/vortexdb/vortex/internal/constants"

// Re-export constants for public API.
const (
	DefaultQueueDepth         = constants.DefaultQueueDepth
	DefaultConnectionCapacity = constants.DefaultConnectionCapacity
	DefaultDimension          = constants.DefaultDimension
	WALSectorSize             = constants.WALSectorSize
	BatchAccumulatorCapacity  = constants.BatchAccumulatorCapacity
	DefaultShardCount         = constants.DefaultShardCount
	AutoAssignShardID         = constants.AutoAssignShardID
)
