package facematch

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/coder/hnsw"
	"github.com/google/renameio"
	"github.com/kozaktomas/face-login/internal/database"
)

// IndexMetadata stores metadata for validating a persisted index.
type IndexMetadata struct {
	Count     int       `json:"count"`
	Metric    Metric    `json:"metric"`
	BuildTime time.Time `json:"build_time"`
	Version   int       `json:"version"` // For future compatibility
}

const indexMetadataVersion = 1

// Index is an approximate nearest-neighbor graph over enrolled identities,
// keyed by case-folded name. It answers "which identities look alike" queries;
// authentication decisions always go through the exact Matcher.
type Index struct {
	mu     sync.RWMutex
	metric Metric
	graph  *hnsw.Graph[string]
	names  map[string]string // folded name -> display name
	size   int               // number of snapshot entries indexed
}

// NewIndex creates a new empty index.
func NewIndex(metric Metric) *Index {
	if metric == "" {
		metric = Euclidean
	}
	return &Index{
		metric: metric,
		names:  make(map[string]string),
	}
}

func (x *Index) newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = database.HNSWMaxNeighbors
	g.Ml = 1.0 / float64(database.HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = database.HNSWEfSearch
	g.Distance = x.metric.graphDistance()
	return g
}

// Sync brings the index up to date with a store snapshot. The store is
// append-only, so only the tail beyond the last synced size is added; a
// shorter snapshot forces a full rebuild.
func (x *Index) Sync(identities []database.Identity) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if len(identities) < x.size || x.graph == nil {
		x.graph = x.newGraph()
		x.names = make(map[string]string, len(identities))
		x.size = 0
	}

	for _, id := range identities[x.size:] {
		if len(id.Embedding) == 0 {
			continue
		}
		key := database.FoldName(id.Name)
		if _, exists := x.names[key]; exists {
			continue
		}
		x.graph.Add(hnsw.MakeNode(key, id.Embedding))
		x.names[key] = id.Name
	}
	x.size = len(identities)
}

// Len returns the number of indexed identities.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.names)
}

// Search finds up to k identities nearest to the probe, closest first.
// Distances are recomputed exactly with the index metric.
func (x *Index) Search(probe []float32, k int) []Match {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.search(probe, k, "")
}

// Similar finds up to k identities nearest to the named identity, excluding itself.
func (x *Index) Similar(name string, k int) ([]Match, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	key := database.FoldName(name)
	if x.graph == nil {
		return nil, fmt.Errorf("identity %q not indexed", name)
	}
	vec, ok := x.graph.Lookup(key)
	if !ok {
		return nil, fmt.Errorf("identity %q not indexed", name)
	}
	return x.search(vec, k, key), nil
}

func (x *Index) search(probe []float32, k int, exclude string) []Match {
	if x.graph == nil || x.graph.Len() == 0 || k <= 0 {
		return nil
	}

	want := k
	if exclude != "" {
		want++
	}
	neighbors := x.graph.Search(probe, want)

	matches := make([]Match, 0, len(neighbors))
	for _, n := range neighbors {
		if n.Key == exclude {
			continue
		}
		matches = append(matches, Match{
			Name:     x.names[n.Key],
			Distance: x.metric.Distance(probe, n.Value),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// Save persists the graph and its metadata to path. Both files are replaced atomically.
func (x *Index) Save(path string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if path == "" {
		return nil // No path set
	}

	if x.graph == nil || x.graph.Len() == 0 {
		// Remove existing files if index is empty (best-effort cleanup).
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		return nil
	}

	pending, err := renameio.TempFile(filepath.Dir(path), path)
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	defer pending.Cleanup()

	if err := x.graph.Export(pending); err != nil {
		return fmt.Errorf("exporting HNSW graph: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replacing HNSW index file: %w", err)
	}

	metaData, err := json.Marshal(IndexMetadata{
		Count:     x.size,
		Metric:    x.metric,
		BuildTime: time.Now().UTC(),
		Version:   indexMetadataVersion,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := renameio.WriteFile(path+".meta", metaData, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// LoadIndexMetadata loads metadata from the .meta file next to an index.
func LoadIndexMetadata(path string) (IndexMetadata, error) {
	var metadata IndexMetadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return metadata, nil
}

// ErrStaleIndex is returned by Load when the persisted index does not match the store.
var ErrStaleIndex = errors.New("persisted index is stale")

// Load restores a persisted graph, provided its metadata agrees with the
// store snapshot. A missing file is not an error: the index stays empty and
// the next Sync builds it.
func (x *Index) Load(path string, identities []database.Identity) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metadata, err := LoadIndexMetadata(path)
	if err != nil {
		return err
	}
	if metadata.Version != indexMetadataVersion || metadata.Metric != x.metric || metadata.Count != len(identities) {
		return ErrStaleIndex
	}

	saved, err := hnsw.LoadSavedGraph[string](path)
	if err != nil {
		return fmt.Errorf("failed to load HNSW index: %w", err)
	}

	names := make(map[string]string, len(identities))
	for _, id := range identities {
		key := database.FoldName(id.Name)
		if _, ok := saved.Lookup(key); !ok {
			return ErrStaleIndex
		}
		names[key] = id.Name
	}

	x.graph = saved.Graph
	x.names = names
	x.size = len(identities)
	return nil
}
