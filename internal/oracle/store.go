package oracle

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Magic and SchemaVersion identify the header record written at sequence 0,
// per spec.md §4.2's persisted log layout.
const (
	Magic         = "ORACLE01"
	SchemaVersion = uint32(1)
)

// ErrNotFound mirrors pebble.ErrNotFound without leaking the storage
// engine's error type to callers.
var ErrNotFound = errors.New("oracle: record not found")

// Store is the single-writer, append-only event log backed by pebble. Keys
// are big-endian u64 sequence numbers; values are canonical event bytes
// (spec.md §4.2). Grounded on the teacher's pkg/storage/pebble_store.go
// (pebble.Open + pebble.Sync writes, big-endian sequence keys) generalized
// from block/cert storage to a flat event sequence.
type Store struct {
	db      *pebble.DB
	nextSeq uint64
}

// Open creates or reopens the log at path, writing the header record on
// first creation and validating it otherwise.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("oracle: open store: %w", err)
	}
	s := &Store{db: db}

	val, closer, err := db.Get(seqKey(0))
	switch {
	case err == pebble.ErrNotFound:
		if werr := s.writeHeader(); werr != nil {
			db.Close()
			return nil, werr
		}
		s.nextSeq = 1
	case err != nil:
		db.Close()
		return nil, fmt.Errorf("oracle: read header: %w", err)
	default:
		defer closer.Close()
		if verr := validateHeader(val); verr != nil {
			db.Close()
			return nil, verr
		}
		last, lerr := s.findLastSeq()
		if lerr != nil {
			db.Close()
			return nil, lerr
		}
		s.nextSeq = last + 1
	}

	return s, nil
}

func (s *Store) writeHeader() error {
	buf := make([]byte, 0, len(Magic)+4)
	buf = append(buf, []byte(Magic)...)
	buf = appendUint32(buf, SchemaVersion)
	return s.db.Set(seqKey(0), buf, pebble.Sync)
}

func validateHeader(val []byte) error {
	if len(val) < len(Magic)+4 {
		return fmt.Errorf("oracle: truncated header record")
	}
	if string(val[:len(Magic)]) != Magic {
		return fmt.Errorf("oracle: bad magic %q, want %q", val[:len(Magic)], Magic)
	}
	version := binary.BigEndian.Uint32(val[len(Magic):])
	if version != SchemaVersion {
		return fmt.Errorf("oracle: unsupported schema version %d", version)
	}
	return nil
}

// findLastSeq scans to the highest written sequence so Open can resume
// appending after a restart (spec.md §8 scenario 5: replay after crash).
func (s *Store) findLastSeq() (uint64, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, fmt.Errorf("oracle: new iterator: %w", err)
	}
	defer iter.Close()

	last := uint64(0)
	if iter.Last() {
		last = decodeSeqKey(iter.Key())
	}
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("oracle: iterator error: %w", err)
	}
	return last, nil
}

// Close flushes and closes the underlying store.
func (s *Store) Close() error { return s.db.Close() }

// Append serializes event and writes it at the next sequence number,
// fsyncing before returning (spec.md §4.2: "a write is not acknowledged
// until fsynced"). It returns the sequence the event was stored at.
func (s *Store) Append(e Event) (uint64, error) {
	payload, err := EncodeCanonical(e)
	if err != nil {
		return 0, fmt.Errorf("oracle: encode: %w", err)
	}
	seq := s.nextSeq
	if err := s.db.Set(seqKey(seq), payload, pebble.Sync); err != nil {
		return 0, fmt.Errorf("oracle: append at seq %d: %w", seq, err)
	}
	s.nextSeq++
	return seq, nil
}

// Record pairs a stored event with the sequence it was written at.
type Record struct {
	Seq   uint64
	Event Event
}

// ReplayAll returns every record from sequence 1 onward (sequence 0 is the
// header, never a SystemEvent), in ascending sequence order. It fails fast
// on the first corrupt or non-contiguous record (spec.md §7).
func (s *Store) ReplayAll() ([]Record, error) {
	return s.ReplayFrom(1)
}

// ReplayFrom returns every record with sequence >= from, in ascending
// order, failing fast on corruption or a gap in the sequence.
func (s *Store) ReplayFrom(from uint64) ([]Record, error) {
	if from == 0 {
		from = 1
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: seqKey(from)})
	if err != nil {
		return nil, fmt.Errorf("oracle: new iterator: %w", err)
	}
	defer iter.Close()

	var records []Record
	expected := from
	for valid := iter.First(); valid; valid = iter.Next() {
		seq := decodeSeqKey(iter.Key())
		if seq != expected {
			return nil, fmt.Errorf("oracle: sequence gap: expected %d, found %d", expected, seq)
		}
		e, derr := DecodeCanonical(iter.Value())
		if derr != nil {
			return nil, fmt.Errorf("oracle: replay halted at seq %d: %w", seq, derr)
		}
		records = append(records, Record{Seq: seq, Event: e})
		expected++
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("oracle: iterator error: %w", err)
	}
	return records, nil
}

// ComputeStateHash is SHA-256 over the raw stored bytes of every record
// (header excluded) in sequence order, exactly as written to disk — never
// over a re-serialized or re-parsed form. Two hosts that replayed the same
// log always produce the same digest (spec.md §4.2, P5).
func (s *Store) ComputeStateHash() ([32]byte, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: seqKey(1)})
	if err != nil {
		return [32]byte{}, fmt.Errorf("oracle: new iterator: %w", err)
	}
	defer iter.Close()

	h := sha256.New()
	expected := uint64(1)
	for valid := iter.First(); valid; valid = iter.Next() {
		seq := decodeSeqKey(iter.Key())
		if seq != expected {
			return [32]byte{}, fmt.Errorf("oracle: sequence gap: expected %d, found %d", expected, seq)
		}
		h.Write(iter.Value())
		expected++
	}
	if err := iter.Error(); err != nil {
		return [32]byte{}, fmt.Errorf("oracle: iterator error: %w", err)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

func seqKey(seq uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], seq)
	return k[:]
}

func decodeSeqKey(k []byte) uint64 {
	return binary.BigEndian.Uint64(k)
}
