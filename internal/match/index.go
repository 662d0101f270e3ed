package match

import (
	"errors"
	"sync"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/face-attend/internal/store"
)

// HNSW graph parameters.
const (
	indexMaxNeighbors = 16
)

// Index is an optional approximate pre-filter for large galleries. Search
// results are rescored with exact cosine similarity, but a true best match
// pruned by the graph cannot be recovered, so the exhaustive scan stays the
// default.
type Index struct {
	graph        *hnsw.Graph[string]
	idToIdentity map[string]*store.Identity
	mu           sync.RWMutex
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		idToIdentity: make(map[string]*store.Identity),
	}
}

// Build replaces the graph contents with the given identities.
func (ix *Index) Build(identities []store.Identity) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if len(identities) == 0 {
		ix.graph = nil
		ix.idToIdentity = make(map[string]*store.Identity)
		return nil
	}

	g := hnsw.NewGraph[string]()
	g.M = indexMaxNeighbors
	g.Ml = 1.0 / float64(indexMaxNeighbors)
	g.Distance = hnsw.CosineDistance

	ix.idToIdentity = make(map[string]*store.Identity, len(identities))
	for i := range identities {
		id := &identities[i]
		if len(id.Signature) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(id.ID, id.Signature))
		ix.idToIdentity[id.ID] = id
	}

	ix.graph = g
	return nil
}

// Len returns the number of indexed identities.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.idToIdentity)
}

// Search returns up to k nearest identities with exact cosine scores,
// best first.
func (ix *Index) Search(query []float32, k int) ([]store.Identity, []float64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.graph == nil {
		return nil, nil, errors.New("index not initialized")
	}

	neighbors := ix.graph.Search(query, k)

	identities := make([]store.Identity, 0, len(neighbors))
	scores := make([]float64, 0, len(neighbors))
	for _, n := range neighbors {
		id, ok := ix.idToIdentity[n.Key]
		if !ok {
			continue
		}
		identities = append(identities, *id)
		scores = append(scores, Similarity(query, n.Value))
	}
	return identities, scores, nil
}

// MatchIndexed runs Match over the index's k nearest candidates instead of
// the full gallery.
func (m *Matcher) MatchIndexed(query []float32, ix *Index, k int) (Result, error) {
	candidates, _, err := ix.Search(query, k)
	if err != nil {
		return Result{}, err
	}
	return m.Match(query, candidates), nil
}
