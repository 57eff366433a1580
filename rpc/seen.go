package rpc

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	bolt "go.etcd.io/bbolt"
)

var bucketSeen = []byte("seen_signatures")

// seenPruneInterval bounds how often a store sweeps expired entries.
const seenPruneInterval = time.Minute

// SeenStore remembers accepted request signatures. Remember reports false
// when id was already recorded and has not expired.
type SeenStore interface {
	Remember(id common.Hash, now time.Time, ttl time.Duration) (bool, error)
}

// pruneClock tracks when a store last swept expired entries.
type pruneClock struct {
	every time.Duration
	last  time.Time
}

func (p *pruneClock) due(now time.Time) bool {
	every := p.every
	if every <= 0 {
		every = seenPruneInterval
	}
	if !p.last.IsZero() && now.Sub(p.last) < every {
		return false
	}
	p.last = now
	return true
}

// MemorySeen keeps accepted signatures in process memory.
type MemorySeen struct {
	mu    sync.Mutex
	seen  map[common.Hash]time.Time
	prune pruneClock
}

func NewMemorySeen() *MemorySeen {
	return &MemorySeen{seen: make(map[common.Hash]time.Time)}
}

func (m *MemorySeen) Remember(id common.Hash, now time.Time, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.prune.due(now) {
		for key, expires := range m.seen {
			if now.After(expires) {
				delete(m.seen, key)
			}
		}
	}
	if expires, exists := m.seen[id]; exists && !now.After(expires) {
		return false, nil
	}
	m.seen[id] = now.Add(ttl)
	return true, nil
}

// BoltSeen persists accepted signatures so a restart does not reopen the
// replay window.
type BoltSeen struct {
	db *bolt.DB

	mu    sync.Mutex
	prune pruneClock
}

// OpenBoltSeen opens or creates the store at path.
func OpenBoltSeen(path string) (*BoltSeen, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open seen-signature store: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSeen)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare seen-signature store: %w", err)
	}
	return &BoltSeen{db: db}, nil
}

func (b *BoltSeen) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Remember records id with its expiry. Expired entries are swept at most once
// per prune interval.
func (b *BoltSeen) Remember(id common.Hash, now time.Time, ttl time.Duration) (bool, error) {
	b.mu.Lock()
	sweep := b.prune.due(now)
	b.mu.Unlock()

	fresh := false
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSeen)
		if sweep {
			if err := pruneExpired(bucket, now); err != nil {
				return err
			}
		}
		if v := bucket.Get(id.Bytes()); v != nil && !expired(v, now) {
			return nil
		}
		var expiry [8]byte
		binary.BigEndian.PutUint64(expiry[:], uint64(now.Add(ttl).UnixNano()))
		fresh = true
		return bucket.Put(id.Bytes(), expiry[:])
	})
	if err != nil {
		return false, fmt.Errorf("record signature: %w", err)
	}
	return fresh, nil
}

func expired(v []byte, now time.Time) bool {
	return len(v) != 8 || now.UnixNano() > int64(binary.BigEndian.Uint64(v))
}

func pruneExpired(bucket *bolt.Bucket, now time.Time) error {
	var stale [][]byte
	if err := bucket.ForEach(func(k, v []byte) error {
		if expired(v, now) {
			stale = append(stale, append([]byte(nil), k...))
		}
		return nil
	}); err != nil {
		return err
	}
	for _, k := range stale {
		if err := bucket.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
