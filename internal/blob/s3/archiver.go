package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// reportLimit caps how many journal rows go into one daily report.
const reportLimit = 1000

// OpportunityLister is the journal query the archiver needs from the
// opportunity store.
type OpportunityLister interface {
	ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error)
}

// ExecutionLister is the journal query the archiver needs from the
// execution store.
type ExecutionLister interface {
	ListRecent(ctx context.Context, limit int) ([]domain.ExecutionRecord, error)
}

// ObjectWriter uploads one object.
type ObjectWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// ObjectChecker reports object existence.
type ObjectChecker interface {
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver uploads daily JSONL reports of journaled opportunities and
// executions. Uploads are idempotent per day: a report key that already
// exists is left alone.
type Archiver struct {
	writer ObjectWriter
	reader ObjectChecker
	opps   OpportunityLister
	execs  ExecutionLister
	logger *slog.Logger
}

// NewArchiver creates an Archiver over the given stores and object storage.
func NewArchiver(writer ObjectWriter, reader ObjectChecker, opps OpportunityLister, execs ExecutionLister, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		reader: reader,
		opps:   opps,
		execs:  execs,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveDay uploads the opportunity and execution reports for the given day
// and returns the number of records written.
func (a *Archiver) ArchiveDay(ctx context.Context, day time.Time) (int64, error) {
	var total int64

	opps, err := a.opps.ListRecent(ctx, reportLimit)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities query: %w", err)
	}
	n, err := upload(a, ctx, reportPath("opportunities", day), opps)
	if err != nil {
		return total, err
	}
	total += n

	execs, err := a.execs.ListRecent(ctx, reportLimit)
	if err != nil {
		return total, fmt.Errorf("s3blob: archive executions query: %w", err)
	}
	n, err = upload(a, ctx, reportPath("executions", day), execs)
	if err != nil {
		return total, err
	}
	total += n

	a.logger.Info("daily report archived",
		slog.String("day", day.Format("2006-01-02")),
		slog.Int64("records", total))
	return total, nil
}

// upload writes one JSONL report unless it is empty or already present.
func upload[T any](a *Archiver, ctx context.Context, path string, records []T) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: encode report %s: %w", path, err)
	}

	exists, err := a.reader.Exists(ctx, path)
	if err != nil {
		return 0, err
	}
	if exists {
		a.logger.Debug("report already archived", slog.String("path", path))
		return 0, nil
	}

	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, err
	}
	return int64(len(records)), nil
}

// reportPath builds the object key for a daily report.
//
//	reports/opportunities/2026-08-27.jsonl
//	reports/executions/2026-08-27.jsonl
func reportPath(kind string, day time.Time) string {
	return fmt.Sprintf("reports/%s/%s.jsonl", kind, day.Format("2006-01-02"))
}

// marshalJSONL serialises a slice as newline-delimited JSON, one compact
// object per line.
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
