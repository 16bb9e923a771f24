// Package index owns the persistent nearest-neighbor index over face
// embeddings. Slot ids are assigned sequentially from the current total and
// are never reused, so metadata records can join back against the index for
// the lifetime of one on-disk instance.
package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

// ErrDimensionMismatch rejects add/search calls whose vectors do not match
// the index dimension. This is a programming or configuration error; the
// whole call fails and nothing is mutated.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// NoNeighbor is the id returned for padded search slots when the index holds
// fewer than k vectors.
const NoNeighbor int64 = -1

// NoNeighborDistance is the sentinel distance paired with NoNeighbor.
const NoNeighborDistance float32 = math.MaxFloat32

const metadataVersion = 1

// Metadata is the sidecar written next to the index blob for validation.
type Metadata struct {
	Count   int64     `json:"count"`
	Dim     int       `json:"dim"`
	SavedAt time.Time `json:"saved_at"`
	Version int       `json:"version"`
}

// hnswMaxNeighbors is the M parameter of the graph. 16 works well for
// 512-dim face embeddings.
const hnswMaxNeighbors = 16

// Service is the process-wide vector index over a fixed embedding dimension.
type Service struct {
	mu    sync.RWMutex
	dim   int
	path  string
	graph *hnsw.Graph[int64]
	count int64
}

// NewService creates an index service of the given dimension, persisted at
// path. The on-disk state, if any, is loaded immediately; a load failure
// falls back to a fresh empty index rather than failing the service.
func NewService(dim int, path string) *Service {
	if dim <= 0 {
		dim = 512
	}
	s := &Service{
		dim:   dim,
		path:  path,
		graph: newGraph(),
	}
	s.Reload()
	return s
}

// newGraph builds an empty HNSW graph with cosine distance. Embeddings are
// L2-normalized, so cosine ordering matches squared-L2 ordering; exact
// squared-L2 distances are recomputed from node values at search time.
func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.CosineDistance
	return g
}

// Dim returns the embedding dimension fixed at creation.
func (s *Service) Dim() int {
	return s.dim
}

// Count returns the number of vectors currently in the index.
func (s *Service) Count() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Add validates and appends vectors, returning the sequential slot ids
// assigned: [priorTotal, priorTotal+len). A dimension mismatch on any vector
// rejects the whole call without mutating the index.
func (s *Service) Add(vectors [][]float32) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, v := range vectors {
		if len(v) != s.dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, index expects %d", ErrDimensionMismatch, i, len(v), s.dim)
		}
	}

	ids := make([]int64, 0, len(vectors))
	for _, v := range vectors {
		id := s.count
		s.graph.Add(hnsw.MakeNode(id, v))
		ids = append(ids, id)
		s.count++
	}
	return ids, nil
}

// Search returns up to k nearest neighbors by squared Euclidean distance,
// ascending. When the index holds fewer than k vectors, the remaining slots
// are padded with id -1 and a sentinel distance.
func (s *Service) Search(query []float32, k int) ([]float32, []int64, error) {
	if len(query) != s.dim {
		return nil, nil, fmt.Errorf("%w: query has dimension %d, index expects %d", ErrDimensionMismatch, len(query), s.dim)
	}
	if k <= 0 {
		return nil, nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type neighbor struct {
		id   int64
		dist float32
	}
	var neighbors []neighbor
	if s.count > 0 {
		for _, n := range s.graph.Search(query, k) {
			neighbors = append(neighbors, neighbor{
				id:   n.Key,
				dist: squaredL2(query, n.Value),
			})
		}
	}
	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].dist < neighbors[j].dist
	})

	distances := make([]float32, k)
	ids := make([]int64, k)
	for i := 0; i < k; i++ {
		if i < len(neighbors) {
			distances[i] = neighbors[i].dist
			ids[i] = neighbors[i].id
		} else {
			distances[i] = NoNeighborDistance
			ids[i] = NoNeighbor
		}
	}
	return distances, ids, nil
}

// Save persists the whole index to disk, overwriting the previous blob, and
// writes the metadata sidecar.
func (s *Service) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.path == "" {
		return nil
	}

	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("creating index file: %w", err)
	}
	if err := s.graph.Export(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("exporting index: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing index file: %w", err)
	}

	meta := Metadata{
		Count:   s.count,
		Dim:     s.dim,
		SavedAt: time.Now().UTC(),
		Version: metadataVersion,
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshaling index metadata: %w", err)
	}
	if err := os.WriteFile(s.path+".meta", data, 0600); err != nil {
		return fmt.Errorf("writing index metadata: %w", err)
	}
	return nil
}

// Load replaces the in-memory state with the index stored at path and makes
// path the persistence target. A read or parse failure falls back to a fresh
// empty index so the service keeps running; the loss is logged loudly.
func (s *Service) Load(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.path = path
	s.loadLocked()
}

// Reload re-reads the index from its persistence path, discarding in-memory
// state to pick up other workers' writes. A missing file keeps the current
// state, matching first-run behavior before anything was saved.
func (s *Service) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return
	}
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return
	}
	s.loadLocked()
}

// loadLocked loads from s.path. Caller holds the write lock.
func (s *Service) loadLocked() {
	if s.path == "" {
		return
	}
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		s.graph = newGraph()
		s.count = 0
		return
	}

	saved, err := hnsw.LoadSavedGraph[int64](s.path)
	if err != nil {
		log.Printf("index: FAILED to load %s, starting with an EMPTY index (previously ingested vectors are not searchable): %v", s.path, err)
		s.graph = newGraph()
		s.count = 0
		return
	}

	count := int64(saved.Len())
	if meta, err := readMetadata(s.path); err == nil {
		if meta.Dim != s.dim {
			log.Printf("index: %s was built with dimension %d, expected %d; starting with an EMPTY index", s.path, meta.Dim, s.dim)
			s.graph = newGraph()
			s.count = 0
			return
		}
		if meta.Count != count {
			log.Printf("index: metadata count %d disagrees with graph size %d for %s", meta.Count, count, s.path)
		}
	}

	s.graph = saved.Graph
	s.count = count
}

// readMetadata reads the sidecar written by Save.
func readMetadata(path string) (Metadata, error) {
	var meta Metadata
	data, err := os.ReadFile(path + ".meta")
	if err != nil {
		return meta, fmt.Errorf("reading index metadata: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("parsing index metadata: %w", err)
	}
	return meta, nil
}

// squaredL2 computes the exact squared Euclidean distance between vectors.
func squaredL2(a, b []float32) float32 {
	if len(a) != len(b) {
		return NoNeighborDistance
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(sum)
}
