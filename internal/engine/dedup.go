package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/IshaanNene/StoreScope/internal/parser"
	"github.com/IshaanNene/StoreScope/internal/types"
)

// DefaultFingerprintPrefix is the number of runes of body text that
// identify a record.
const DefaultFingerprintPrefix = 50

// Deduplicator tracks record fingerprints already accepted in a run.
type Deduplicator struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDeduplicator creates a new Deduplicator with the given estimated capacity.
func NewDeduplicator(estimatedCapacity int) *Deduplicator {
	return &Deduplicator{
		seen: make(map[string]struct{}, estimatedCapacity),
	}
}

// Add marks key as seen. It reports false if key was already present.
func (d *Deduplicator) Add(key string) bool {
	hash := hashKey(key)

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[hash]; ok {
		return false
	}
	d.seen[hash] = struct{}{}
	return true
}

// ReviewFingerprint identifies a review by its author and the first
// prefix runes of its content.
func ReviewFingerprint(prefix int) func(types.ReviewRecord) string {
	if prefix <= 0 {
		prefix = DefaultFingerprintPrefix
	}
	return func(r types.ReviewRecord) string {
		return strings.TrimSpace(r.Author) + "\x00" + parser.Prefix(strings.TrimSpace(r.Content), prefix)
	}
}

// QnAFingerprint identifies a Q&A pair by the first prefix runes of its
// question.
func QnAFingerprint(prefix int) func(types.QnAPair) string {
	if prefix <= 0 {
		prefix = DefaultFingerprintPrefix
	}
	return func(q types.QnAPair) string {
		return parser.Prefix(strings.TrimSpace(q.Question), prefix)
	}
}

// hashKey creates a compact hash of a fingerprint.
func hashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:16]) // 128-bit hash
}
