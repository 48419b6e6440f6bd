package storage

import "truncfee/internal/model"

// Sink receives batches of fee snapshots.
type Sink interface {
	PutSnapshotBatch(snapshots []model.FeeSnapshot) error
}
