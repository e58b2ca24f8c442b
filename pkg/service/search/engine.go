package search

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	gocache "github.com/patrickmn/go-cache"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultDecay is the per-hop score attenuation during graph expansion.
	DefaultDecay = 0.7

	// DefaultCacheTTL bounds how stale a cached recall result may be.
	DefaultCacheTTL = time.Minute

	// DefaultMinSeedSimilarity drops nearest-neighbor matches too far from
	// the query to anchor an expansion.
	DefaultMinSeedSimilarity = 0.25

	// maxGraphDepth caps neighborhood queries regardless of caller input.
	maxGraphDepth = 4

	// nodeFetchConcurrency bounds parallel node loads during expansion.
	nodeFetchConcurrency = 8
)

// Engine serves tiered recall over the memory graph: similarity-seeded,
// recency-windowed, expanded along relations up to the mode's hop bound.
type Engine struct {
	repo    interfaces.Repository
	decay   float64
	minSeed float64
	cache   *gocache.Cache

	mu      sync.Mutex
	hits    int64
	lookups int64
}

// Option is a functional option for Engine configuration
type Option func(*Engine)

// WithDecay overrides the per-hop score attenuation factor.
func WithDecay(decay float64) Option {
	return func(e *Engine) {
		if decay > 0 && decay < 1 {
			e.decay = decay
		}
	}
}

// WithMinSeedSimilarity overrides the similarity floor below which a
// nearest-neighbor match is not used as an expansion seed.
func WithMinSeedSimilarity(floor float64) Option {
	return func(e *Engine) {
		if floor >= 0 && floor < 1 {
			e.minSeed = floor
		}
	}
}

// WithCacheTTL overrides how long recall results are cached. Zero disables
// the cache entirely.
func WithCacheTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl <= 0 {
			e.cache = nil
			return
		}
		e.cache = gocache.New(ttl, 2*ttl)
	}
}

// New creates a search engine over the given repository.
func New(repo interfaces.Repository, opts ...Option) *Engine {
	e := &Engine{
		repo:    repo,
		decay:   DefaultDecay,
		minSeed: DefaultMinSeedSimilarity,
		cache:   gocache.New(DefaultCacheTTL, 2*DefaultCacheTTL),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// InvalidateCache drops all cached recall results. Called after any write
// decision so readers never see removed or superseded nodes past the write.
func (e *Engine) InvalidateCache() {
	if e.cache != nil {
		e.cache.Flush()
	}
}

// CacheStats returns hit and lookup counters for the stats surface.
func (e *Engine) CacheStats() (hits, lookups int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hits, e.lookups
}

func (e *Engine) searchStatuses(mode types.SearchMode) []types.NodeStatus {
	// Incomplete nodes stay discoverable in every mode so timed-out think
	// sessions can be picked back up. Superseded nodes only surface in the
	// historical-audit view.
	statuses := []types.NodeStatus{types.StatusActive, types.StatusIncomplete}
	if mode.IncludesSuperseded() {
		statuses = append(statuses, types.StatusSuperseded)
	}
	return statuses
}

func cacheKey(embedding []float32, mode types.SearchMode, filter types.ConceptType) string {
	h := sha256.New()
	var buf [4]byte
	for _, v := range embedding {
		binary.LittleEndian.PutUint32(buf[:], uint32(int32(v*1e6)))
		h.Write(buf[:])
	}
	return fmt.Sprintf("%s/%s/%s", hex.EncodeToString(h.Sum(nil)), mode, filter)
}

// Search runs tiered recall for the query embedding. The mode fixes the
// recency window and the expansion depth; the optional concept filter
// restricts the seed set only.
func (e *Engine) Search(ctx context.Context, embedding []float32, mode types.SearchMode, conceptFilter types.ConceptType) ([]*model.SearchHit, error) {
	mode = mode.Normalize()
	if !mode.IsValid() {
		return nil, goerr.Wrap(model.ErrInvalidInput, "unknown search mode", goerr.V("mode", mode))
	}
	if len(embedding) != model.EmbeddingDimension {
		return nil, goerr.Wrap(model.ErrInvalidInput, "embedding dimension mismatch",
			goerr.V("got", len(embedding)), goerr.V("want", model.EmbeddingDimension))
	}

	var key string
	if e.cache != nil {
		key = cacheKey(embedding, mode, conceptFilter)
		e.mu.Lock()
		e.lookups++
		e.mu.Unlock()
		if cached, ok := e.cache.Get(key); ok {
			e.mu.Lock()
			e.hits++
			e.mu.Unlock()
			return cached.([]*model.SearchHit), nil
		}
	}

	window := model.TimeWindow{}
	if d := mode.Window(); d > 0 {
		window.Since = time.Now().Add(-d)
	}

	seeds, err := e.repo.Graph().SimilarityQuery(ctx, embedding, mode.DefaultSeedLimit(), interfaces.SimilarityOptions{
		ConceptType: conceptFilter,
		Window:      window,
		Statuses:    e.searchStatuses(mode),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "similarity seeding failed", goerr.V("mode", mode))
	}
	anchored := seeds[:0]
	for _, seed := range seeds {
		if seed.Similarity >= e.minSeed {
			anchored = append(anchored, seed)
		}
	}
	seeds = anchored
	if len(seeds) == 0 {
		return nil, nil
	}

	hits, err := e.expand(ctx, seeds, mode)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Node.UpdatedAt.After(hits[j].Node.UpdatedAt)
	})
	if limit := mode.DefaultMaxResults(); len(hits) > limit {
		hits = hits[:limit]
	}

	logging.From(ctx).Debug("memory search served",
		"mode", mode,
		"seeds", len(seeds),
		"results", len(hits),
	)

	if e.cache != nil {
		e.cache.SetDefault(key, hits)
	}
	return hits, nil
}

// expand runs breadth-first expansion from the seeds along relation edges.
// Each reached node scores similarity(seed) * decay^hops, taking the maximum
// over all paths that reach it.
func (e *Engine) expand(ctx context.Context, seeds []*model.SimilarityMatch, mode types.SearchMode) ([]*model.SearchHit, error) {
	best := make(map[types.MemoryID]*model.SearchHit, len(seeds))
	frontier := make(map[types.MemoryID]float64, len(seeds))

	for _, seed := range seeds {
		best[seed.Node.ID] = &model.SearchHit{
			Node:        seed.Node,
			Score:       seed.Similarity,
			HopDistance: 0,
		}
		frontier[seed.Node.ID] = seed.Similarity
	}

	includeSuperseded := mode.IncludesSuperseded()

	for hop := 1; hop <= mode.MaxDepth() && len(frontier) > 0; hop++ {
		ids := make([]types.MemoryID, 0, len(frontier))
		for id := range frontier {
			ids = append(ids, id)
		}

		rels, err := e.repo.Graph().Neighbors(ctx, ids)
		if err != nil {
			return nil, goerr.Wrap(err, "graph expansion failed", goerr.V("hop", hop))
		}

		// Candidate scores for nodes reached on this hop.
		reached := make(map[types.MemoryID]float64)
		for _, rel := range rels {
			for _, pair := range [][2]types.MemoryID{{rel.From, rel.To}, {rel.To, rel.From}} {
				origin, target := pair[0], pair[1]
				score, ok := frontier[origin]
				if !ok {
					continue
				}
				next := score * e.decay
				if prev, seen := best[target]; seen && prev.Score >= next {
					continue
				}
				if cur, seen := reached[target]; !seen || next > cur {
					reached[target] = next
				}
			}
		}
		if len(reached) == 0 {
			break
		}

		nodes, err := e.fetchNodes(ctx, reached, includeSuperseded)
		if err != nil {
			return nil, err
		}

		frontier = make(map[types.MemoryID]float64, len(nodes))
		for _, node := range nodes {
			score := reached[node.ID]
			if prev, seen := best[node.ID]; seen && prev.Score >= score {
				continue
			}
			best[node.ID] = &model.SearchHit{
				Node:        node,
				Score:       score,
				HopDistance: hop,
			}
			frontier[node.ID] = score
		}
	}

	hits := make([]*model.SearchHit, 0, len(best))
	for _, hit := range best {
		hits = append(hits, hit)
	}
	return hits, nil
}

// fetchNodes loads the reached nodes in parallel, dropping the ones whose
// status is excluded by the mode.
func (e *Engine) fetchNodes(ctx context.Context, reached map[types.MemoryID]float64, includeSuperseded bool) ([]*model.MemoryNode, error) {
	ids := make([]types.MemoryID, 0, len(reached))
	for id := range reached {
		ids = append(ids, id)
	}

	nodes := make([]*model.MemoryNode, len(ids))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(nodeFetchConcurrency)
	for i, id := range ids {
		eg.Go(func() error {
			node, err := e.repo.Graph().GetNode(egCtx, id)
			if err != nil {
				return goerr.Wrap(err, "failed to load expanded node", goerr.V("id", id))
			}
			nodes[i] = node
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	kept := nodes[:0]
	for _, node := range nodes {
		if node.Status == types.StatusSuperseded && !includeSuperseded {
			continue
		}
		kept = append(kept, node)
	}
	return kept, nil
}

// SearchByConcept lists nodes of one concept type inside the mode's window,
// newest first, without a query embedding.
func (e *Engine) SearchByConcept(ctx context.Context, conceptType types.ConceptType, mode types.SearchMode) ([]*model.MemoryNode, error) {
	mode = mode.Normalize()
	if !conceptType.IsValid() {
		return nil, goerr.Wrap(model.ErrInvalidInput, "unknown concept type", goerr.V("concept_type", conceptType))
	}

	window := model.TimeWindow{}
	if d := mode.Window(); d > 0 {
		window.Since = time.Now().Add(-d)
	}

	nodes, err := e.repo.Graph().ListByConceptType(ctx, conceptType, window, mode.IncludesSuperseded(), mode.DefaultMaxResults())
	if err != nil {
		return nil, goerr.Wrap(err, "concept listing failed", goerr.V("concept_type", conceptType))
	}
	return nodes, nil
}

// MemoryGraph returns the bounded neighborhood of one node: every node and
// relation within depth hops, plus the entities linked to those nodes.
func (e *Engine) MemoryGraph(ctx context.Context, id types.MemoryID, depth int) (*model.GraphView, error) {
	if depth < 1 {
		depth = 1
	}
	if depth > maxGraphDepth {
		depth = maxGraphDepth
	}

	center, err := e.repo.Graph().GetNode(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &model.GraphView{
		Center: id,
		Nodes:  []*model.MemoryNode{center},
	}

	visited := map[types.MemoryID]bool{id: true}
	seenRel := map[types.RelationID]bool{}
	frontier := []types.MemoryID{id}

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		rels, err := e.repo.Graph().Neighbors(ctx, frontier)
		if err != nil {
			return nil, goerr.Wrap(err, "neighborhood query failed", goerr.V("id", id))
		}

		next := make(map[types.MemoryID]bool)
		for _, rel := range rels {
			if !seenRel[rel.ID] {
				seenRel[rel.ID] = true
				view.Relations = append(view.Relations, rel)
			}
			for _, endpoint := range []types.MemoryID{rel.From, rel.To} {
				if !visited[endpoint] {
					visited[endpoint] = true
					next[endpoint] = true
				}
			}
		}

		frontier = frontier[:0]
		for nodeID := range next {
			node, err := e.repo.Graph().GetNode(ctx, nodeID)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to load neighborhood node", goerr.V("id", nodeID))
			}
			view.Nodes = append(view.Nodes, node)
			frontier = append(frontier, nodeID)
		}
	}

	allIDs := make([]types.MemoryID, 0, len(visited))
	for nodeID := range visited {
		allIDs = append(allIDs, nodeID)
	}
	entities, err := e.repo.Entity().ListByMemoryIDs(ctx, allIDs)
	if err != nil {
		return nil, goerr.Wrap(err, "entity lookup failed", goerr.V("id", id))
	}
	view.Entities = entities

	return view, nil
}
