package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agustinrios/cedearscan/internal/domain"
)

// scanReport is the object layout for one archived scan run.
type scanReport struct {
	RanAt         time.Time                     `json:"ran_at"`
	Opportunities []domain.ArbitrageOpportunity `json:"opportunities"`
	Count         int                           `json:"count"`
}

// Archiver implements domain.ReportArchiver by serializing each scan run to
// JSON and uploading it under a time-partitioned key. Historical exports of
// persisted opportunities go out as JSONL via the multipart path.
type Archiver struct {
	writer *Writer
	prefix string
	now    func() time.Time
}

// NewArchiver creates an Archiver writing under the given key prefix
// ("reports" yields keys like "reports/2026/08/31/scan-20260831T143000Z.json").
func NewArchiver(writer *Writer, prefix string) *Archiver {
	return &Archiver{
		writer: writer,
		prefix: prefix,
		now:    time.Now,
	}
}

// ArchiveScan uploads one scan run and returns the object key.
func (a *Archiver) ArchiveScan(ctx context.Context, ranAt time.Time, opps []domain.ArbitrageOpportunity) (string, error) {
	report := scanReport{
		RanAt:         ranAt.UTC(),
		Opportunities: opps,
		Count:         len(opps),
	}

	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal scan report: %w", err)
	}

	key := fmt.Sprintf("%s/%s/scan-%s.json",
		a.prefix,
		ranAt.UTC().Format("2006/01/02"),
		ranAt.UTC().Format("20060102T150405Z"))

	if err := a.writer.Put(ctx, key, bytes.NewReader(payload), "application/json"); err != nil {
		return "", err
	}
	return key, nil
}

// ArchiveOpportunities exports every persisted opportunity older than before
// as one JSONL object and returns the key with the exported row count. Rows
// are not deleted from the store; pruning is a separate explicit step run
// after the export has been verified.
func (a *Archiver) ArchiveOpportunities(ctx context.Context, store domain.OpportunityStore, before time.Time) (string, int, error) {
	opps, err := store.ListRecent(ctx, 0)
	if err != nil {
		return "", 0, fmt.Errorf("s3blob: load opportunities for export: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	count := 0
	for _, opp := range opps {
		if !opp.DetectedAt.Before(before) {
			continue
		}
		if err := enc.Encode(opp); err != nil {
			return "", 0, fmt.Errorf("s3blob: encode opportunity %s: %w", opp.ID, err)
		}
		count++
	}
	if count == 0 {
		return "", 0, nil
	}

	key := fmt.Sprintf("%s/exports/opportunities-before-%s.jsonl",
		a.prefix, before.UTC().Format("20060102"))

	if err := a.writer.PutMultipart(ctx, key, &buf, minPartSize); err != nil {
		return "", 0, err
	}
	return key, count, nil
}

// Compile-time interface check.
var _ domain.ReportArchiver = (*Archiver)(nil)
