// Package query translates a structured query value into one or more
// storage.Store scans, per spec §4.12: partition-key equality, an
// optional clustering range, projection, limit, and an explicit
// RequiresFullScan opt-in for anything primary-key order cannot answer.
// There is no CQL text parser here — the caller already holds a Query,
// matching the boundary spec.md §1 draws around this package.
package query

import (
	"context"
	"fmt"

	"github.com/cqlite-go/cqlite/internal/errs"
	"github.com/cqlite-go/cqlite/storage"
)

// Query is the structured predicate this package accepts.
//
// PartitionKey selects a single partition. Leaving it empty means "scan
// every partition", which requires AllowFullScan since it can't be
// answered by primary-key order alone.
//
// ClusteringEqual, if set, narrows to one clustering value within the
// partition (a point lookup). It is mutually exclusive with
// ClusteringStart/ClusteringEnd, which instead select a half-open
// [start, end) clustering range, either bound left nil meaning "from the
// start/to the end of the partition".
type Query struct {
	PartitionKey    []byte
	ClusteringEqual []byte
	ClusteringStart []byte
	ClusteringEnd   []byte
	Projection      []string
	Limit           int
	Descending      bool
	AllowFullScan   bool
}

// Row is one query result, with the flat storage key already split back
// into its partition and clustering components.
type Row struct {
	PartitionKey  []byte
	ClusteringKey []byte
	Value         []byte
}

// Execute runs q against s, translating it into a Get or Scan and
// applying the projection, limit, and order this package's own level
// of the stack is responsible for.
func Execute(ctx context.Context, s *storage.Store, q Query) ([]Row, error) {
	if q.ClusteringEqual != nil && (q.ClusteringStart != nil || q.ClusteringEnd != nil) {
		return nil, fmt.Errorf("query: ClusteringEqual and a clustering range are mutually exclusive")
	}

	var rows []Row
	switch {
	case len(q.PartitionKey) == 0:
		if !q.AllowFullScan {
			return nil, fmt.Errorf("query: no partition key given: %w", errs.ErrRequiresFullScan)
		}
		scanned, err := s.Scan(ctx, nil, nil)
		if err != nil {
			return nil, err
		}
		rows = decodeRows(scanned)

	case q.ClusteringEqual != nil:
		key := EncodeKey(q.PartitionKey, q.ClusteringEqual)
		value, ok, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			rows = []Row{{PartitionKey: q.PartitionKey, ClusteringKey: q.ClusteringEqual, Value: value}}
		}

	default:
		start := EncodeKey(q.PartitionKey, q.ClusteringStart)
		var end []byte
		if q.ClusteringEnd != nil {
			end = EncodeKey(q.PartitionKey, q.ClusteringEnd)
		} else {
			end = prefixUpperBound(partitionLowerBound(q.PartitionKey))
		}
		scanned, err := s.Scan(ctx, start, end)
		if err != nil {
			return nil, err
		}
		rows = decodeRows(scanned)
	}

	rows = applyProjection(rows, q.Projection)
	if q.Descending {
		reverseRows(rows)
	}
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	return rows, nil
}

func decodeRows(scanned []storage.Row) []Row {
	rows := make([]Row, 0, len(scanned))
	for _, r := range scanned {
		pk, ck, ok := DecodeKey(r.Key)
		if !ok {
			continue
		}
		rows = append(rows, Row{PartitionKey: pk, ClusteringKey: ck, Value: r.Value})
	}
	return rows
}

// applyProjection is necessarily trivial today: the storage coordinator
// flattens every row to a single cell named "value" (storage's own
// fragment.go), so the only column a projection can ever keep is that
// one. A projection naming anything else keeps the row (its key is
// still part of the result identity) but clears Value, rather than
// dropping the row outright.
func applyProjection(rows []Row, projection []string) []Row {
	if len(projection) == 0 {
		return rows
	}
	for _, col := range projection {
		if col == valueColumn {
			return rows
		}
	}
	for i := range rows {
		rows[i].Value = nil
	}
	return rows
}

func reverseRows(rows []Row) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}

// valueColumn mirrors storage's unexported column name; duplicated here
// rather than exported from storage, since a wider multi-column schema
// (not this flattened coordinator) is this package's natural growth
// point for real projection.
const valueColumn = "value"
