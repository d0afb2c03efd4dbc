// Package takestore implements a durable, bbolt-backed append log of
// every take ("request + response as materialized") produced by a record
// or vrecord run, for post-hoc audit beyond the single --cut-out file
// spec.md §6 already requires. Opt-in via -d <path>; record/vrecord do
// not depend on this package being wired.
package takestore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
	bolt "go.etcd.io/bbolt"

	"github.com/Comcast/darkroom/dmerror"
	"github.com/Comcast/darkroom/take"
)

// Entry is one durable record of a materialized take.
type Entry struct {
	RunID     string          `json:"run_id"`
	ReelName  string          `json:"reel_name"`
	Frame     string          `json:"frame"`
	Status    int             `json:"status"`
	Request   json.RawMessage `json:"request"`
	Response  json.RawMessage `json:"response"`
	Timestamp time.Time       `json:"timestamp"`
}

// Store is a bbolt-backed append log bucketed by reel name and keyed by
// run id, frame filename and timestamp. Each value is the entry's
// canonicalized (RFC 8785) JSON encoding, so byte-identical entries encode
// to byte-identical values.
type Store struct {
	path string
	db   *bolt.DB
}

// Open opens (creating if absent) the bbolt database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, dmerror.Wrap(dmerror.KindWrite, "opening take store", err)
	}
	return &Store{path: path, db: db}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NewRunID mints a run identifier tagging every Entry recorded by one
// record/vrecord invocation, so takestore entries from the same run can be
// correlated.
func NewRunID() string {
	return uuid.NewString()
}

// Record appends one materialized take to the reel's bucket.
func (s *Store) Record(runID, reelName string, m *take.Materialized, stamp time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}

	reqJSON, err := json.Marshal(m.Request)
	if err != nil {
		return dmerror.Wrap(dmerror.KindWrite, "encoding take request", err)
	}
	respJSON, err := json.Marshal(m.Response)
	if err != nil {
		return dmerror.Wrap(dmerror.KindWrite, "encoding take response", err)
	}

	entry := Entry{
		RunID:     runID,
		ReelName:  reelName,
		Frame:     m.Frame.Metadata.Filename,
		Status:    m.Status,
		Request:   reqJSON,
		Response:  respJSON,
		Timestamp: stamp,
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return dmerror.Wrap(dmerror.KindWrite, "encoding take entry", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return dmerror.Wrap(dmerror.KindWrite, "canonicalizing take entry", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(reelName))
		if err != nil {
			return err
		}
		key := []byte(fmt.Sprintf("%s/%s/%d", runID, m.Frame.Metadata.Filename, stamp.UnixNano()))
		return bucket.Put(key, canonical)
	})
}

// List returns every Entry recorded for reelName, in storage (insertion)
// order.
func (s *Store) List(reelName string) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var entries []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(reelName))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, dmerror.Wrap(dmerror.KindRead, "listing take store entries", err)
	}
	return entries, nil
}
