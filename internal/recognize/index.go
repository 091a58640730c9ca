package recognize

import (
	"sort"
	"sync"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/face-registry/internal/database"
)

// Candidate is the closest descriptor of one registered user.
type Candidate struct {
	Record          database.UserRecord
	DescriptorIndex int
	Distance        float64
}

// entry ties an HNSW node key back to the descriptor it was built from.
type entry struct {
	record     int
	descriptor int
	vector     database.Descriptor
}

// Index holds registered face descriptors for nearest-user lookups.
// Descriptors of different lengths are kept apart, a query is only compared
// against descriptors of its own length.
//
// Lookups are exact linear scans while a dimension holds at most
// exactScanLimit descriptors. Larger dimensions are searched through an HNSW
// graph, falling back to a full scan whenever the graph's best hit is not
// within the caller's threshold.
type Index struct {
	mu             sync.RWMutex
	metric         Metric
	exactScanLimit int
	graphs         map[int]*hnsw.Graph[int]
	byDim          map[int][]int
	entries        []entry
	records        []database.UserRecord
}

// NewIndex creates an empty index using the given metric.
func NewIndex(metric Metric) *Index {
	if metric == "" {
		metric = MetricEuclidean
	}
	return &Index{
		metric:         metric,
		exactScanLimit: ExactScanLimit,
		graphs:         make(map[int]*hnsw.Graph[int]),
		byDim:          make(map[int][]int),
	}
}

func (x *Index) newGraph() *hnsw.Graph[int] {
	g := hnsw.NewGraph[int]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors)
	g.EfSearch = HNSWEfSearch
	g.Distance = x.metric.graphDistance()
	return g
}

// Build replaces the index content with the descriptors of records.
// Empty descriptors are skipped. Graphs are only built for dimensions
// too large to scan.
func (x *Index) Build(records []database.UserRecord) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.graphs = make(map[int]*hnsw.Graph[int])
	x.byDim = make(map[int][]int)
	x.entries = x.entries[:0]
	x.records = records

	for ri := range records {
		for di, d := range records[ri].Descriptors {
			if len(d) == 0 {
				continue
			}
			key := len(x.entries)
			x.entries = append(x.entries, entry{record: ri, descriptor: di, vector: d})
			x.byDim[len(d)] = append(x.byDim[len(d)], key)
		}
	}

	for dim, keys := range x.byDim {
		if len(keys) <= x.exactScanLimit {
			continue
		}
		g := x.newGraph()
		for _, key := range keys {
			g.Add(hnsw.MakeNode(key, toFloat32(x.entries[key].vector)))
		}
		x.graphs[dim] = g
	}
}

// Len returns the number of indexed descriptors.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Search returns up to k users closest to query, nearest first.
// Each user appears once, with its best descriptor. When an HNSW graph is
// used and its nearest user is farther than within, the result comes from a
// full scan instead. Pass within < 0 to always trust the graph.
func (x *Index) Search(query []float64, k int, within float64) []Candidate {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if k <= 0 || len(query) == 0 {
		return nil
	}
	keys := x.byDim[len(query)]
	if len(keys) == 0 {
		return nil
	}

	g, ok := x.graphs[len(query)]
	if !ok {
		return x.rank(query, keys, k)
	}

	nodes := g.Search(toFloat32(query), k*HNSWSearchMultiplier)
	found := make([]int, len(nodes))
	for i, n := range nodes {
		found[i] = n.Key
	}
	out := x.rank(query, found, k)
	if within >= 0 && (len(out) == 0 || out[0].Distance > within) {
		return x.rank(query, keys, k)
	}
	return out
}

// rank computes exact distances for keys and keeps the best k users.
func (x *Index) rank(query []float64, keys []int, k int) []Candidate {
	best := make(map[int]Candidate)
	for _, key := range keys {
		e := x.entries[key]
		dist := x.metric.Distance(query, e.vector)
		if c, seen := best[e.record]; seen && c.Distance <= dist {
			continue
		}
		best[e.record] = Candidate{
			Record:          x.records[e.record],
			DescriptorIndex: e.descriptor,
			Distance:        dist,
		}
	}

	out := make([]Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Record.ID < out[j].Record.ID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}
