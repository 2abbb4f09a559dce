package versiondb

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var (
	instanceOnce sync.Once
	instance     *VersionDb
)

// Instance returns the process-wide VersionDb, creating it on first use with
// partitionCount partitions (0 selects DefaultPartitionCount). The partition
// count of the first call wins; a different count on a later call is ignored
// and logged. Logging and metrics go to the global zap logger and otel meter
// provider, so install those before the first call.
//
// Components created at startup should prefer New and pass the VersionDb
// explicitly.
func Instance(partitionCount int) *VersionDb {
	instanceOnce.Do(func() {
		db, err := New(Config{PartitionCount: partitionCount}, zap.L(), otel.Meter("versiondb"))
		if err != nil {
			zap.L().Warn("Invalid partition count for VersionDb instance, using default",
				zap.Int("partition_count", partitionCount), zap.Error(err))
			db, err = New(Config{}, zap.L(), otel.Meter("versiondb"))
		}
		if err != nil {
			panic(err)
		}
		instance = db
	})
	if partitionCount != 0 && partitionCount != instance.partitionCount {
		instance.logger.Warn("Ignoring partition count for existing VersionDb instance",
			zap.Int("requested", partitionCount),
			zap.Int("partition_count", instance.partitionCount))
	}
	return instance
}
