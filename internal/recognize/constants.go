package recognize

// HNSW index parameters, used once a dimension outgrows ExactScanLimit.
// These favour recall over build time.
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	// Higher values improve recall but slow down search.
	HNSWEfSearch = 100

	// HNSWSearchMultiplier is the factor to request more candidates from HNSW
	// since several descriptors usually belong to the same person.
	HNSWSearchMultiplier = 3
)

// ExactScanLimit is the number of descriptors of one length up to which
// lookups scan every descriptor instead of using an HNSW graph.
const ExactScanLimit = 20000

// DefaultThreshold is the maximum Euclidean distance at which two face-api.js
// descriptors are considered the same person.
const DefaultThreshold = 0.6
