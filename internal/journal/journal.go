// Package journal keeps an append-only record of session events for
// diagnostics and history. It is not session state: nothing in a live
// session is ever read back from it.
package journal

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"lanshare/internal/util/logger/sl"
)

const (
	eventsBucket = "session_events"

	defaultMaxEvents = 1000
)

// Config for the journal store.
type Config struct {
	Path       string
	FileMode   os.FileMode
	MaxEvents  int
	Options    *bbolt.Options
	Serializer Serializer
	Logger     *slog.Logger
}

// Journal is a bbolt-backed event log. Appends are keyed by a bucket
// sequence, so iteration order is insertion order.
type Journal struct {
	db         *bbolt.DB
	mu         sync.RWMutex
	serializer Serializer
	maxEvents  int
	log        *slog.Logger
}

func New(cfg Config) (*Journal, error) {
	if cfg.Serializer == nil {
		cfg.Serializer = &JSONSerializer{}
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0666
	}
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = defaultMaxEvents
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	db, err := bbolt.Open(cfg.Path, cfg.FileMode, cfg.Options)
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(eventsBucket))
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize journal: %w", err)
	}

	return &Journal{
		db:         db,
		serializer: cfg.Serializer,
		maxEvents:  cfg.MaxEvents,
		log:        cfg.Logger,
	}, nil
}

func (j *Journal) Close() error {
	if j.db == nil {
		return ErrNilDB
	}
	return j.db.Close()
}

// Append stores one event. A zero Time is stamped with now. Old events
// past MaxEvents are pruned so the journal never grows without bound.
func (j *Journal) Append(ev Event) error {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	data, err := j.serializer.Serialize(&ev)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	return j.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(eventsBucket))
		if bucket == nil {
			return fmt.Errorf("bucket %q missing", eventsBucket)
		}

		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}

		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)

		if err := bucket.Put(key, data); err != nil {
			return err
		}

		return pruneOldest(bucket, j.maxEvents)
	})
}

func pruneOldest(bucket *bbolt.Bucket, max int) error {
	var keys [][]byte

	c := bucket.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}

	for i := 0; len(keys)-i > max; i++ {
		if err := bucket.Delete(keys[i]); err != nil {
			return err
		}
	}

	return nil
}

// Recent returns up to limit events, newest first.
func (j *Journal) Recent(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = defaultMaxEvents
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	var events []Event

	err := j.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(eventsBucket))
		if bucket == nil {
			return nil
		}

		c := bucket.Cursor()
		for k, v := c.Last(); k != nil && len(events) < limit; k, v = c.Prev() {
			var ev Event
			if err := j.serializer.Deserialize(v, &ev); err != nil {
				return err
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return events, nil
}

// Record satisfies the session manager's recorder hook. Failures are
// logged and swallowed: diagnostics must never disturb a session.
func (j *Journal) Record(kind, room, peer, addr string) {
	const op = "journal.Record"

	err := j.Append(Event{Kind: kind, Room: room, Peer: peer, Addr: addr})
	if err != nil {
		j.log.Error("failed to record event",
			slog.String("op", op),
			slog.String("kind", kind),
			sl.Err(err),
		)
	}
}
