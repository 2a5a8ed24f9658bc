package search

import (
	"sort"

	"github.com/quickmd/qmd/internal/store"
)

// rrfK is the reciprocal rank fusion constant. 60 is the standard value
// from the literature; it keeps a single top rank from dominating while
// still rewarding agreement between engines.
const rrfK = 60

// fusedResult pairs a result with its rank bookkeeping during fusion.
type fusedResult struct {
	result  store.SearchResult
	score   float64
	ftsRank int // 1-based rank in the keyword list, 0 when absent
}

// FuseRRF merges a keyword result list and a vector result list with
// reciprocal rank fusion. Each document contributes 1/(k+rank) per list
// it appears in; documents found by both engines therefore outrank
// documents found by one. Ties break on fused score, then keyword rank,
// then docid, so output order is deterministic.
func FuseRRF(ftsResults, vecResults []store.SearchResult) []store.SearchResult {
	fused := make(map[string]*fusedResult, len(ftsResults)+len(vecResults))

	for i, r := range ftsResults {
		rank := i + 1
		fused[r.Docid] = &fusedResult{
			result:  r,
			score:   1.0 / float64(rrfK+rank),
			ftsRank: rank,
		}
	}
	for i, r := range vecResults {
		rank := i + 1
		contribution := 1.0 / float64(rrfK+rank)
		if f, ok := fused[r.Docid]; ok {
			f.score += contribution
			continue
		}
		fused[r.Docid] = &fusedResult{result: r, score: contribution}
	}

	out := make([]*fusedResult, 0, len(fused))
	for _, f := range fused {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		ri, rj := out[i].ftsRank, out[j].ftsRank
		if ri != rj {
			// Present in the keyword list beats absent; lower rank beats higher.
			if ri == 0 {
				return false
			}
			if rj == 0 {
				return true
			}
			return ri < rj
		}
		return out[i].result.Docid < out[j].result.Docid
	})

	results := make([]store.SearchResult, len(out))
	for i, f := range out {
		r := f.result
		r.Score = f.score
		results[i] = r
	}
	return results
}
