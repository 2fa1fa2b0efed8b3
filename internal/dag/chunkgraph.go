package dag

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"

	"github.com/zeebo/blake3"

	"assetmanifest/internal/core"
)

// GraphHash is the deterministic identity of a ChunkGraph.
type GraphHash string

func (h GraphHash) String() string { return string(h) }

// ChunkGraph is an immutable, validated chunk dependency graph.
//
// It is safe for concurrent read access.
type ChunkGraph struct {
	chunks []core.Chunk // host order
	order  []int        // load order, as indices into chunks

	outgoing [][]int // parent -> children, sorted ascending
	incoming [][]int // child -> parents, sorted ascending
	indeg    []int

	hash GraphHash
}

// NewChunkGraph builds and validates a ChunkGraph.
//
// Validation rejects:
//   - empty or duplicate chunk IDs
//   - parents referencing unknown chunks
//   - self-parenting chunks
//   - any cycle (direct or indirect)
//
// A parent listed twice is recorded once.
func NewChunkGraph(chunks []core.Chunk) (*ChunkGraph, error) {
	byID := make(map[string]int, len(chunks))
	for i, c := range chunks {
		if c.ID == "" {
			return nil, &GraphError{Kind: ErrInvalidGraph, Msg: fmt.Sprintf("chunks[%d]: id is required", i)}
		}
		if _, exists := byID[c.ID]; exists {
			return nil, chunkError(c.ID, "duplicate id")
		}
		byID[c.ID] = i
	}

	outgoing := make([][]int, len(chunks))
	incoming := make([][]int, len(chunks))
	indeg := make([]int, len(chunks))
	for i, c := range chunks {
		seen := make(map[int]struct{}, len(c.Parents))
		for _, parentID := range c.Parents {
			p, ok := byID[parentID]
			if !ok {
				return nil, chunkError(c.ID, "unknown parent %q", parentID)
			}
			if p == i {
				return nil, chunkError(c.ID, "lists itself as a parent")
			}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			outgoing[p] = append(outgoing[p], i)
			incoming[i] = append(incoming[i], p)
			indeg[i]++
		}
	}
	for i := range outgoing {
		sort.Ints(outgoing[i])
		sort.Ints(incoming[i])
	}

	g := &ChunkGraph{
		chunks:   append([]core.Chunk(nil), chunks...),
		outgoing: outgoing,
		incoming: incoming,
		indeg:    indeg,
	}

	g.order = g.loadOrder()
	if len(g.order) != len(g.chunks) {
		return nil, &GraphError{Kind: ErrCycleFound, Cycle: g.parentCycle(g.order)}
	}

	g.hash = g.computeGraphHash()
	return g, nil
}

// Hash returns the stable identity of this graph.
func (g *ChunkGraph) Hash() GraphHash { return g.hash }

// Ordered returns the chunks in load order: every chunk after all of its
// parents, ties broken by host order.
func (g *ChunkGraph) Ordered() []core.Chunk {
	out := make([]core.Chunk, 0, len(g.order))
	for _, i := range g.order {
		out = append(out, g.chunks[i])
	}
	return out
}

// OrderedIDs is Ordered reduced to chunk IDs.
func (g *ChunkGraph) OrderedIDs() []string {
	out := make([]string, 0, len(g.order))
	for _, i := range g.order {
		out = append(out, g.chunks[i].ID)
	}
	return out
}

func (g *ChunkGraph) computeGraphHash() GraphHash {
	h := blake3.New()

	// Length-prefixed fields keep ("ab","c") and ("a","bc") apart.
	writeField := func(data []byte) {
		h.Write(binary.BigEndian.AppendUint64(nil, uint64(len(data))))
		h.Write(data)
	}

	writeField([]byte(strconv.Itoa(len(g.chunks))))
	for i, c := range g.chunks {
		writeField([]byte(c.ID))
		writeField([]byte(c.Name))
		writeField([]byte(c.Hash))
		writeField([]byte(strconv.Itoa(len(c.Files))))
		for _, f := range c.Files {
			writeField([]byte(f))
		}
		writeField([]byte(strconv.Itoa(len(g.incoming[i]))))
		for _, p := range g.incoming[i] {
			writeField([]byte(g.chunks[p].ID))
		}
	}

	return GraphHash(hex.EncodeToString(h.Sum(nil)))
}
