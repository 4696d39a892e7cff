package vector

import (
	"bufio"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/kailas-cloud/docvault/internal/domain"
)

// compactFloor is the orphan count below which the graph is never rebuilt.
const compactFloor = 64

// HNSWCollection is an in-process collection over a coder/hnsw graph.
// Replaced and deleted points are orphaned rather than removed from the
// graph; queries over-fetch to make up for them, and the graph is rebuilt
// from the live points once orphans outnumber them.
type HNSWCollection struct {
	cfg HNSWConfig

	mu       sync.RWMutex
	graph    *hnsw.Graph[uint64]
	dim      int
	ids      map[string]uint64
	keys     map[uint64]string
	payloads map[uint64][]byte
	nextKey  uint64
	orphans  int
	restored bool
}

// HNSWStats describes graph occupancy.
type HNSWStats struct {
	Live       int // points reachable by id
	GraphNodes int // nodes in the graph, orphans included
	Orphans    int
}

// hnswMetadata is the gob-encoded sidecar of a graph snapshot.
type hnswMetadata struct {
	Dim      int
	IDs      map[string]uint64
	Payloads map[uint64][]byte
	NextKey  uint64
}

// NewHNSWCollection creates an empty in-process collection.
func NewHNSWCollection(cfg HNSWConfig) *HNSWCollection {
	return &HNSWCollection{
		cfg:      cfg,
		graph:    newHNSWGraph(cfg),
		ids:      make(map[string]uint64),
		keys:     make(map[uint64]string),
		payloads: make(map[uint64][]byte),
	}
}

// OpenHNSWCollection creates a collection and loads the snapshot at cfg.Path
// when one exists. A missing snapshot yields an empty collection.
func OpenHNSWCollection(cfg HNSWConfig) (*HNSWCollection, error) {
	c := NewHNSWCollection(cfg)
	if cfg.Path == "" {
		return c, nil
	}
	if err := c.load(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("load hnsw snapshot %s: %w", cfg.Path, err)
	}
	return c, nil
}

func newHNSWGraph(cfg HNSWConfig) *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	applyParams(g, cfg)
	return g
}

func applyParams(g *hnsw.Graph[uint64], cfg HNSWConfig) {
	if cfg.M > 0 {
		g.M = cfg.M
	}
	// coder/hnsw uses one candidate-list size for inserts and searches.
	if cfg.EFConstruct > 0 {
		g.EfSearch = cfg.EFConstruct
	}
}

// Ensure fixes the dimension. A second call with another width is a schema conflict.
func (c *HNSWCollection) Ensure(_ context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", dim)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dim != 0 && c.dim != dim {
		return fmt.Errorf("collection has dimension %d, requested %d: %w", c.dim, dim, domain.ErrSchemaConflict)
	}
	c.dim = dim
	return nil
}

// Upsert adds a new node for id and orphans the previous one.
func (c *HNSWCollection) Upsert(_ context.Context, id string, vec []float32, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(vec) != c.dim {
		return fmt.Errorf("vector width %d, collection expects %d: %w", len(vec), c.dim, domain.ErrSchemaConflict)
	}

	c.orphan(id)

	key := c.nextKey
	c.nextKey++
	c.graph.Add(hnsw.MakeNode(key, normalized(vec)))
	c.ids[id] = key
	c.keys[key] = id
	c.payloads[key] = append([]byte(nil), payload...)

	c.maybeCompact()
	return nil
}

// Delete orphans the node for id.
func (c *HNSWCollection) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orphan(id)
	c.maybeCompact()
	return nil
}

// Query returns up to limit live points. Score is 1 - cosine distance.
func (c *HNSWCollection) Query(_ context.Context, vec []float32, limit int) ([]Hit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(vec) != c.dim {
		return nil, fmt.Errorf("query width %d, collection expects %d: %w", len(vec), c.dim, domain.ErrSchemaConflict)
	}
	if limit <= 0 || c.graph.Len() == 0 {
		return nil, nil
	}

	q := normalized(vec)
	k := min(limit+c.orphans, c.graph.Len())
	nodes := c.graph.Search(q, k)

	hits := make([]Hit, 0, len(nodes))
	for _, n := range nodes {
		id, live := c.keys[n.Key]
		if !live {
			continue
		}
		d := c.graph.Distance(q, n.Value)
		hits = append(hits, Hit{ID: id, Score: 1 - float64(d), Payload: c.payloads[n.Key]})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Len returns the number of live points.
func (c *HNSWCollection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids)
}

// Stats reports live points against graph nodes.
func (c *HNSWCollection) Stats() HNSWStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return HNSWStats{Live: len(c.ids), GraphNodes: c.graph.Len(), Orphans: c.orphans}
}

// Restored reports whether the collection was loaded from a snapshot.
func (c *HNSWCollection) Restored() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.restored
}

func (c *HNSWCollection) orphan(id string) {
	key, ok := c.ids[id]
	if !ok {
		return
	}
	delete(c.ids, id)
	delete(c.keys, key)
	delete(c.payloads, key)
	c.orphans++
}

func (c *HNSWCollection) maybeCompact() {
	if c.orphans >= compactFloor && c.orphans > len(c.ids) {
		c.compact()
	}
}

// compact rebuilds the graph from the live points, keeping their keys.
func (c *HNSWCollection) compact() {
	keys := make([]uint64, 0, len(c.keys))
	for key := range c.keys {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	nodes := make([]hnsw.Node[uint64], 0, len(keys))
	for _, key := range keys {
		vec, ok := c.graph.Lookup(key)
		if !ok {
			id := c.keys[key]
			delete(c.ids, id)
			delete(c.keys, key)
			delete(c.payloads, key)
			continue
		}
		nodes = append(nodes, hnsw.MakeNode(key, vec))
	}

	g := newHNSWGraph(c.cfg)
	if len(nodes) > 0 {
		g.Add(nodes...)
	}
	c.graph = g
	c.orphans = 0
}

// Save writes the snapshot to cfg.Path: the id sidecar first, then the graph.
// Without a path it does nothing.
func (c *HNSWCollection) Save() error {
	if c.cfg.Path == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.orphans > 0 {
		c.compact()
	}

	if err := os.MkdirAll(filepath.Dir(c.cfg.Path), 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	meta := hnswMetadata{Dim: c.dim, IDs: c.ids, Payloads: c.payloads, NextKey: c.nextKey}
	if err := writeAtomic(c.cfg.Path+".meta", func(w *bufio.Writer) error {
		return gob.NewEncoder(w).Encode(meta)
	}); err != nil {
		return fmt.Errorf("save hnsw metadata: %w", err)
	}
	if err := writeAtomic(c.cfg.Path, func(w *bufio.Writer) error { return c.graph.Export(w) }); err != nil {
		return fmt.Errorf("save hnsw graph: %w", err)
	}
	return nil
}

// load reads the sidecar and the graph. Sidecar ids whose node is missing
// from the graph are dropped; graph nodes nobody references become orphans.
func (c *HNSWCollection) load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var meta hnswMetadata
	if err := readFile(c.cfg.Path+".meta", func(r *bufio.Reader) error {
		return gob.NewDecoder(r).Decode(&meta)
	}); err != nil {
		return err
	}

	g := newHNSWGraph(c.cfg)
	if err := readFile(c.cfg.Path, func(r *bufio.Reader) error { return g.Import(r) }); err != nil {
		return err
	}
	applyParams(g, c.cfg)

	c.graph = g
	c.dim = meta.Dim
	c.nextKey = meta.NextKey
	for id, key := range meta.IDs {
		if _, ok := g.Lookup(key); !ok {
			continue
		}
		c.ids[id] = key
		c.keys[key] = id
		c.payloads[key] = meta.Payloads[key]
	}
	c.orphans = g.Len() - len(c.ids)
	c.restored = true
	return nil
}

func writeAtomic(path string, write func(w *bufio.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := write(w); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func readFile(path string, read func(r *bufio.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return read(bufio.NewReader(f))
}

func normalized(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return out
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range out {
		out[i] *= inv
	}
	return out
}
