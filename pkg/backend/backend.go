// pkg/backend/backend.go

// Package backend persists prepared batches into one of the analytical
// storage backends: the S3/Glue data lake or the columnar warehouse. Every
// failure is captured at the adapter boundary and returned as an error
// carrying the table context; adapters never panic past Upload.
package backend

import (
	"context"

	"github.com/mobilesensing/device-ingress/pkg/model"
)

// Uploader persists one prepared batch. Implementations must be safe to
// call sequentially for many batches over one run and must convert every
// internal failure, including panics from encoding layers, into an error.
type Uploader interface {
	Upload(ctx context.Context, b *model.Batch) error
}

// WarehouseClient is the warehouse connection surface the adapter needs.
// The production implementation lives in pkg/connector; tests substitute
// recording fakes.
type WarehouseClient interface {
	// DescribeTable returns the destination table's column name→type
	// mapping from a metadata query.
	DescribeTable(ctx context.Context, table string) (map[string]string, error)

	// Insert appends rows into the table. Row values are ordered to match
	// columns.
	Insert(ctx context.Context, table string, columns []string, rows [][]any) error

	// DistinctPIDs lists the participant ids already present in a table.
	DistinctPIDs(ctx context.Context, table string) ([]int64, error)
}
