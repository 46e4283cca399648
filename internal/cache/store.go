package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	internalerrors "github.com/tsamsiyu/k8schema/internal/errors"
	"github.com/tsamsiyu/k8schema/internal/schema"
)

// IndexRefPrefix is how the index document points into the definitions document.
const IndexRefPrefix = "_definitions.json#definitions/"

// Document is a rendered JSON response body. It is never modified once built.
type Document struct {
	body []byte
	etag string
}

// Reader returns a fresh reader over the document body.
func (d Document) Reader() *bytes.Reader {
	return bytes.NewReader(d.body)
}

func (d Document) Len() int {
	return len(d.body)
}

// ETag is a strong entity tag derived from the body.
func (d Document) ETag() string {
	return d.etag
}

func newDocument(v any) (Document, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return Document{}, err
	}
	sum := sha256.Sum256(body)
	return Document{
		body: body,
		etag: `"` + hex.EncodeToString(sum[:])[:32] + `"`,
	}, nil
}

type indexRef struct {
	Ref string `json:"$ref"`
}

type indexDocument struct {
	OneOf []indexRef `json:"oneOf"`
}

type definitionsDocument struct {
	Definitions *schema.Set `json:"definitions"`
}

// Snapshot is one installed schema set together with the documents rendered
// from it. A snapshot is immutable.
type Snapshot struct {
	generation  uint64
	refreshedAt time.Time
	set         *schema.Set
	names       []string
	index       Document
	definitions Document
}

func newSnapshot(generation uint64, refreshedAt time.Time, set *schema.Set) (*Snapshot, error) {
	names := set.Names()

	index, err := newDocument(indexDocument{
		OneOf: lo.Map(names, func(name string, _ int) indexRef {
			return indexRef{Ref: IndexRefPrefix + name}
		}),
	})
	if err != nil {
		return nil, internalerrors.NewMarshalingError("failed to render schema index: " + err.Error())
	}

	definitions, err := newDocument(definitionsDocument{Definitions: set})
	if err != nil {
		return nil, internalerrors.NewMarshalingError("failed to render schema definitions: " + err.Error())
	}

	return &Snapshot{
		generation:  generation,
		refreshedAt: refreshedAt,
		set:         set,
		names:       names,
		index:       index,
		definitions: definitions,
	}, nil
}

// Generation counts successful replacements. The initial empty snapshot is 0.
func (s *Snapshot) Generation() uint64 {
	return s.generation
}

// RefreshedAt is when the snapshot was installed, zero for the initial one.
func (s *Snapshot) RefreshedAt() time.Time {
	return s.refreshedAt
}

func (s *Snapshot) Len() int {
	return len(s.names)
}

// Names returns a copy of the definition names in catalog order.
func (s *Snapshot) Names() []string {
	return append([]string(nil), s.names...)
}

// Index is the /all.json document.
func (s *Snapshot) Index() Document {
	return s.index
}

// Definitions is the /_definitions.json document.
func (s *Snapshot) Definitions() Document {
	return s.definitions
}

// Definition returns a copy of one definition.
func (s *Snapshot) Definition(name string) (*schema.Value, bool) {
	v, ok := s.set.Get(name)
	if !ok {
		return nil, false
	}
	return v.DeepCopy(), true
}

// Store holds the schema set currently served. Replace swaps the whole set at
// once; readers see either the old or the new set, never a mix.
type Store struct {
	logger *zap.Logger

	mu      sync.RWMutex
	current *Snapshot
}

func NewStore(logger *zap.Logger) *Store {
	empty, err := newSnapshot(0, time.Time{}, schema.NewSet())
	if err != nil {
		// Rendering an empty set cannot fail.
		panic(err)
	}
	return &Store{
		logger:  logger,
		current: empty,
	}
}

// Replace installs a copy of set as the current snapshot. The documents are
// rendered before the lock is taken, so a failure leaves the store unchanged.
func (s *Store) Replace(set *schema.Set) error {
	snapshot, err := newSnapshot(0, time.Now(), set.DeepCopy())
	if err != nil {
		return err
	}

	s.mu.Lock()
	snapshot.generation = s.current.generation + 1
	s.current = snapshot
	s.mu.Unlock()

	s.logger.Info("Schema cache replaced",
		zap.Uint64("generation", snapshot.generation),
		zap.Int("count", snapshot.Len()),
		zap.Int("definitionsBytes", snapshot.definitions.Len()))

	return nil
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Paths returns the names of the current definitions in catalog order.
func (s *Store) Paths() []string {
	return s.Snapshot().Names()
}

// Schemas returns a deep copy of the current schema set.
func (s *Store) Schemas() *schema.Set {
	return s.Snapshot().set.DeepCopy()
}

// Definition returns a copy of one definition of the current set.
func (s *Store) Definition(name string) (*schema.Value, bool) {
	return s.Snapshot().Definition(name)
}
