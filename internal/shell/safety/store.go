// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package safety

import (
	"encoding/binary"
	"regexp"
	"time"

	"github.com/dot-do/fsx/internal/fserrors"
	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
)

func timeFromUnixNano(n int64) time.Time { return time.Unix(0, n) }

var (
	bucketOverrides = []byte("shell_overrides")
	bucketHistory   = []byte("shell_history")
)

// Store persists overrides and execution history in the same bbolt file
// the metadata catalog uses, so there is exactly one transactional store
// in the whole embedded deployment.
type Store struct {
	bolt *bbolt.DB
}

// Open wraps an already-open bbolt handle (normally catalog.DB.Raw())
// and ensures this package's buckets exist.
func Open(bolt *bbolt.DB) (*Store, error) {
	err := bolt.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketOverrides); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketHistory)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Store{bolt: bolt}, nil
}

type storedOverride struct {
	Pattern string
	Verdict int
	Reason  string
}

// PutOverride persists o, keyed by its own pattern (re-registering a
// pattern replaces the prior override).
func (s *Store) PutOverride(o Override) error {
	if _, err := regexp.Compile(o.Pattern); err != nil {
		return fserrors.New("put_override", o.Pattern, fserrors.EINVAL)
	}
	rec := storedOverride{Pattern: o.Pattern, Verdict: int(o.Verdict), Reason: o.Reason}
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return err
	}
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketOverrides).Put([]byte(o.Pattern), data)
	})
}

// DeleteOverride removes the override registered under pattern.
func (s *Store) DeleteOverride(pattern string) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketOverrides).Delete([]byte(pattern))
	})
}

// ListOverrides returns every persisted override, with its regex
// pre-compiled for Analyze.
func (s *Store) ListOverrides() ([]Override, error) {
	var out []Override
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketOverrides).ForEach(func(k, v []byte) error {
			var rec storedOverride
			if err := msgpack.Unmarshal(v, &rec); err != nil {
				return err
			}
			re, err := regexp.Compile(rec.Pattern)
			if err != nil {
				return err
			}
			out = append(out, Override{Pattern: rec.Pattern, Verdict: Verdict(rec.Verdict), Reason: rec.Reason, re: re})
			return nil
		})
	})
	return out, err
}

type storedHistoryEntry struct {
	CommandLine string
	Risk        int
	Verdict     int
	ExitCode    int
	UnixNano    int64
}

// AppendHistory records one executed pipeline, trimming the oldest
// entries once the log exceeds limit (0 disables trimming).
func (s *Store) AppendHistory(e HistoryEntry, limit int) error {
	rec := storedHistoryEntry{CommandLine: e.CommandLine, Risk: int(e.Risk), Verdict: int(e.Verdict), ExitCode: e.ExitCode, UnixNano: e.Time.UnixNano()}
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return err
	}
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketHistory)
		id, _ := b.NextSequence()
		if err := b.Put(encodeID(id), data); err != nil {
			return err
		}
		if limit <= 0 {
			return nil
		}
		return trimHistory(b, limit)
	})
}

func trimHistory(b *bbolt.Bucket, limit int) error {
	var keys [][]byte
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for i := 0; i < len(keys)-limit; i++ {
		if err := b.Delete(keys[i]); err != nil {
			return err
		}
	}
	return nil
}

func encodeID(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

// History returns the persisted execution log, oldest first.
func (s *Store) History() ([]HistoryEntry, error) {
	var out []HistoryEntry
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketHistory).ForEach(func(k, v []byte) error {
			var rec storedHistoryEntry
			if err := msgpack.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, HistoryEntry{
				CommandLine: rec.CommandLine,
				Risk:        Risk(rec.Risk),
				Verdict:     Verdict(rec.Verdict),
				ExitCode:    rec.ExitCode,
				Time:        timeFromUnixNano(rec.UnixNano),
			})
			return nil
		})
	})
	return out, err
}
