package table

import (
	"context"
	"fmt"
	"time"

	"github.com/wkalt/lakelet/txlog"
)

/*
Metadata reporting: the equivalents of DESCRIBE DETAIL and DESCRIBE HISTORY.
Both are computed from the log and the latest snapshot; with no intervening
commit, repeated calls return identical results.
*/

////////////////////////////////////////////////////////////////////////////////

// Detail is table-level metadata computed from the latest snapshot.
type Detail struct {
	Location     string    `json:"location"`
	Format       string    `json:"format"`
	ID           string    `json:"id"`
	Version      uint64    `json:"version"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
	NumFiles     int64     `json:"numFiles"`
	SizeInBytes  int64     `json:"sizeInBytes"`
}

// Commit is one entry of the table's history.
type Commit struct {
	Version             uint64            `json:"version"`
	Timestamp           time.Time         `json:"timestamp"`
	User                string            `json:"user"`
	Operation           txlog.Operation   `json:"operation"`
	OperationParameters map[string]string `json:"operationParameters,omitempty"`
}

// DescribeDetail returns table-level metadata as of the latest version.
func (t *Table) DescribeDetail(ctx context.Context) (Detail, error) {
	snap, err := t.latestSnapshot(ctx)
	if err != nil {
		return Detail{}, err
	}
	record, err := t.log.ReadRecord(ctx, snap.Version)
	if err != nil {
		return Detail{}, fmt.Errorf("failed to read latest record: %w", err)
	}
	detail := Detail{
		Location:     t.location,
		Format:       FormatName,
		Version:      snap.Version,
		LastModified: time.UnixMilli(record.Commit.Timestamp),
		NumFiles:     int64(len(snap.Files)),
		SizeInBytes:  snap.SizeBytes(),
	}
	if snap.Metadata != nil {
		detail.ID = snap.Metadata.ID
		detail.CreatedAt = time.UnixMilli(snap.Metadata.CreatedTime)
	}
	return detail, nil
}

// DescribeHistory returns one entry per commit, oldest-first by default and
// newest-first when the engine is configured with WithNewestFirstHistory.
func (t *Table) DescribeHistory(ctx context.Context) ([]Commit, error) {
	latest, ok, err := t.log.LatestVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read latest version: %w", err)
	}
	if !ok {
		return nil, TableNotFoundError{t.location}
	}
	commits := make([]Commit, 0, latest+1)
	for version := uint64(0); version <= latest; version++ {
		record, err := t.log.ReadRecord(ctx, version)
		if err != nil {
			return nil, fmt.Errorf("failed to read history: %w", err)
		}
		commits = append(commits, Commit{
			Version:             version,
			Timestamp:           time.UnixMilli(record.Commit.Timestamp),
			User:                record.Commit.User,
			Operation:           record.Commit.Operation,
			OperationParameters: record.Commit.OperationParameters,
		})
	}
	if t.config.newestFirstHistory {
		for i, j := 0, len(commits)-1; i < j; i, j = i+1, j-1 {
			commits[i], commits[j] = commits[j], commits[i]
		}
	}
	return commits, nil
}
