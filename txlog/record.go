package txlog

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/wkalt/lakelet/schema"
)

/*
Log records are the typed representation of a single commit's effect. On disk
a record is a newline-delimited sequence of JSON action lines: an optional
metaData action carrying the table schema, any number of add and remove
actions referencing data files, and a commitInfo action carrying operation
metadata. The commitInfo line is written last and is present in every record.
*/

////////////////////////////////////////////////////////////////////////////////

// Operation is the kind of operation a commit records.
type Operation string

const (
	// OpCreate records table creation.
	OpCreate Operation = "CREATE"
	// OpInsert records a row insertion.
	OpInsert Operation = "INSERT"
	// OpUpdate records a predicate update.
	OpUpdate Operation = "UPDATE"
	// OpDelete records a predicate delete.
	OpDelete Operation = "DELETE"
	// OpSchemaChange records a schema change.
	OpSchemaChange Operation = "SCHEMA_CHANGE"
)

// AddFile records the addition of a data file to the table.
type AddFile struct {
	Path             string `json:"path"`
	Size             int64  `json:"size"`
	RowCount         int64  `json:"rowCount"`
	ModificationTime int64  `json:"modificationTime"`
	DataChange       bool   `json:"dataChange"`
}

// RemoveFile records the logical removal of a data file from the table. The
// physical file is retained for historical reads.
type RemoveFile struct {
	Path              string `json:"path"`
	DeletionTimestamp int64  `json:"deletionTimestamp"`
}

// Metadata is the table metadata carried on the creating commit and on schema
// changes.
type Metadata struct {
	ID          string         `json:"id"`
	Format      string         `json:"format"`
	Schema      *schema.Schema `json:"schema"`
	CreatedTime int64          `json:"createdTime"`
}

// CommitInfo carries operation metadata for a commit.
type CommitInfo struct {
	Timestamp           int64             `json:"timestamp"`
	User                string            `json:"user"`
	Operation           Operation         `json:"operation"`
	OperationParameters map[string]string `json:"operationParameters,omitempty"`
}

// Record is the effect of a single commit.
type Record struct {
	Adds     []AddFile
	Removes  []RemoveFile
	Metadata *Metadata
	Commit   CommitInfo
}

type action struct {
	Metadata   *Metadata   `json:"metaData,omitempty"`
	Add        *AddFile    `json:"add,omitempty"`
	Remove     *RemoveFile `json:"remove,omitempty"`
	CommitInfo *CommitInfo `json:"commitInfo,omitempty"`
}

func (r *Record) encode() ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	if r.Metadata != nil {
		if err := enc.Encode(action{Metadata: r.Metadata}); err != nil {
			return nil, fmt.Errorf("failed to encode metadata action: %w", err)
		}
	}
	for i := range r.Adds {
		if err := enc.Encode(action{Add: &r.Adds[i]}); err != nil {
			return nil, fmt.Errorf("failed to encode add action: %w", err)
		}
	}
	for i := range r.Removes {
		if err := enc.Encode(action{Remove: &r.Removes[i]}); err != nil {
			return nil, fmt.Errorf("failed to encode remove action: %w", err)
		}
	}
	commit := r.Commit
	if err := enc.Encode(action{CommitInfo: &commit}); err != nil {
		return nil, fmt.Errorf("failed to encode commitInfo action: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*Record, error) {
	record := &Record{}
	committed := false
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var a action
		if err := dec.Decode(&a); err != nil {
			return nil, fmt.Errorf("failed to decode action: %w", err)
		}
		switch {
		case a.Add != nil:
			record.Adds = append(record.Adds, *a.Add)
		case a.Remove != nil:
			record.Removes = append(record.Removes, *a.Remove)
		case a.Metadata != nil:
			record.Metadata = a.Metadata
		case a.CommitInfo != nil:
			record.Commit = *a.CommitInfo
			committed = true
		default:
			return nil, fmt.Errorf("action with no known keys")
		}
	}
	if !committed {
		return nil, fmt.Errorf("record has no commitInfo action")
	}
	return record, nil
}
