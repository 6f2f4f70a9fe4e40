// Package dataqueue implements the ordered, durable queue of opaque byte
// records specified in spec.md §4.3/§6: peek returns the smallest unremoved
// seq, remove deletes it, records survive process restarts. The storage
// backend is an implementation choice (spec §6); this package ships a
// file-backed implementation (one JSON line per record, atomic
// write-then-rename on every mutation, grounded on the teacher's
// configfile write-then-rename discipline) and an in-memory one for tests.
package dataqueue

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/corehub/sdk/internal/types"
)

// Record is one row of the persisted queue: (seq, uniqueID, timestamp, payload).
type Record struct {
	Seq       uint64 `json:"seq"`
	UniqueID  string `json:"uniqueId"`
	Timestamp int64  `json:"timestamp"`
	Payload   []byte `json:"payload"`
}

// Queue is the durable ordered queue interface shared by every backend.
type Queue interface {
	// Add appends a new record, assigning it the next seq.
	Add(uniqueID string, timestamp int64, payload []byte) (Record, error)
	// Peek returns the record with the smallest unremoved seq.
	Peek() (Record, bool, error)
	// PeekN returns up to n records with the smallest unremoved seqs, in order.
	PeekN(n int) ([]Record, error)
	// Remove deletes the record with the given seq.
	Remove(seq uint64) error
	// Count returns the number of unremoved records.
	Count() (int, error)
	// Clear removes all records.
	Clear() error
	// Close releases any resources held by the queue.
	Close() error
}

// FileQueue is a durable Queue backed by a single append-and-rewrite file of
// newline-delimited JSON records. All operations serialize through one
// mutex, matching spec §5's "hit-queue's data queue is guarded by its own
// mutex; all hit-queue operations serialize through it."
type FileQueue struct {
	mu      sync.Mutex
	path    string
	nextSeq uint64
	records []Record // ascending by seq, in memory mirror of the file
}

var _ Queue = (*FileQueue)(nil)

// Open loads (or creates) a FileQueue rooted at path.
func Open(path string) (*FileQueue, error) {
	q := &FileQueue{path: path, nextSeq: 1}
	if err := q.load(); err != nil {
		return nil, fmt.Errorf("dataqueue: open %s: %w", path, err)
	}
	return q, nil
}

func (q *FileQueue) load() error {
	f, err := os.Open(q.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(line, &r); err != nil {
			return fmt.Errorf("corrupt queue record: %w", err)
		}
		q.records = append(q.records, r)
		if r.Seq >= q.nextSeq {
			q.nextSeq = r.Seq + 1
		}
	}
	return sc.Err()
}

// persist rewrites the backing file atomically (write to temp file, rename
// over the original), the same pattern the Named Collection Store uses.
func (q *FileQueue) persist() error {
	dir := filepath.Dir(q.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".dataqueue-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	w := bufio.NewWriter(tmp)
	for _, r := range q.records {
		b, err := json.Marshal(r)
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return err
		}
		if _, err := w.Write(b); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return err
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, q.path)
}

func (q *FileQueue) Add(uniqueID string, timestamp int64, payload []byte) (Record, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	r := Record{Seq: q.nextSeq, UniqueID: uniqueID, Timestamp: timestamp, Payload: payload}
	q.nextSeq++
	q.records = append(q.records, r)
	if err := q.persist(); err != nil {
		// Roll back the in-memory append so state matches disk.
		q.records = q.records[:len(q.records)-1]
		q.nextSeq--
		return Record{}, fmt.Errorf("%w: %v", types.ErrStorageUnavailable, err)
	}
	return r, nil
}

func (q *FileQueue) Peek() (Record, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.records) == 0 {
		return Record{}, false, nil
	}
	return q.records[0], true, nil
}

func (q *FileQueue) PeekN(n int) ([]Record, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n > len(q.records) {
		n = len(q.records)
	}
	out := make([]Record, n)
	copy(out, q.records[:n])
	return out, nil
}

func (q *FileQueue) Remove(seq uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, r := range q.records {
		if r.Seq == seq {
			removed := q.records[i]
			q.records = append(q.records[:i:i], q.records[i+1:]...)
			if err := q.persist(); err != nil {
				// Put it back; disk write failed.
				q.records = append(q.records[:i:i], append([]Record{removed}, q.records[i:]...)...)
				return fmt.Errorf("%w: %v", types.ErrStorageUnavailable, err)
			}
			return nil
		}
	}
	return nil
}

func (q *FileQueue) Count() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records), nil
}

func (q *FileQueue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	prev := q.records
	q.records = nil
	if err := q.persist(); err != nil {
		q.records = prev
		return fmt.Errorf("%w: %v", types.ErrStorageUnavailable, err)
	}
	return nil
}

func (q *FileQueue) Close() error { return nil }
