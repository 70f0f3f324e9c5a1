package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tradesim/internal/domain"
)

// BlobWriter is the upload surface the archiver needs; Writer implements it.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// FillArchiveStore is the query surface the archiver needs from the fill
// store. The Postgres FillStore satisfies it implicitly.
type FillArchiveStore interface {
	ListBefore(ctx context.Context, cutoff time.Time, opts domain.ListOpts) ([]*domain.Fill, error)
}

// OrderArchiveStore is the query surface the archiver needs from the order
// store.
type OrderArchiveStore interface {
	ListTerminalBefore(ctx context.Context, cutoff time.Time, opts domain.ListOpts) ([]domain.OrderRecord, error)
}

// Archiver serializes aged records to JSONL and uploads them to object
// storage, partitioned by the year-month of the cutoff. Deleting archived
// rows from the primary store is deliberately left to a separate, explicit
// step after the archive has been verified.
type Archiver struct {
	logger *slog.Logger
	writer BlobWriter
	fills  FillArchiveStore
	orders OrderArchiveStore
}

// NewArchiver creates an Archiver.
func NewArchiver(logger *slog.Logger, writer BlobWriter, fills FillArchiveStore, orders OrderArchiveStore) *Archiver {
	return &Archiver{
		logger: logger.With(slog.String("component", "archiver")),
		writer: writer,
		fills:  fills,
		orders: orders,
	}
}

// ArchiveFills uploads every fill executed before the cutoff to
// archive/fills/YYYY-MM.jsonl and returns the archived count.
func (a *Archiver) ArchiveFills(ctx context.Context, before time.Time) (int64, error) {
	fills, err := a.fills.ListBefore(ctx, before, domain.ListOpts{})
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive fills query: %w", err)
	}
	if len(fills) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(fills)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive fills marshal: %w", err)
	}

	path := archivePath("fills", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive fills upload: %w", err)
	}

	a.logger.Info("fills archived", "path", path, "count", len(fills),
		"before", before.Format(time.RFC3339))
	return int64(len(fills)), nil
}

// ArchiveOrders uploads every terminal order last updated before the cutoff
// to archive/orders/YYYY-MM.jsonl and returns the archived count.
func (a *Archiver) ArchiveOrders(ctx context.Context, before time.Time) (int64, error) {
	recs, err := a.orders.ListTerminalBefore(ctx, before, domain.ListOpts{})
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive orders query: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(recs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive orders marshal: %w", err)
	}

	path := archivePath("orders", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive orders upload: %w", err)
	}

	a.logger.Info("orders archived", "path", path, "count", len(recs),
		"before", before.Format(time.RFC3339))
	return int64(len(recs)), nil
}

// archivePath builds the object key for an archive file, partitioned by the
// year-month of the cutoff:
//
//	archive/fills/2026-02.jsonl
//	archive/orders/2026-02.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON, one compact
// line per record.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
