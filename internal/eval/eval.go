// Package eval provides brute-force ground truth and recall
// computation for evaluating approximate search results.
package eval

import (
	"sort"

	"github.com/mislam5285/gqr/pkg/lsh"
	"github.com/mislam5285/gqr/pkg/scanner"
)

// GroundTruth computes the exact k nearest rows of data for every
// query under the given metric, ascending by distance.
func GroundTruth(data, queries lsh.Dataset, k int, metric scanner.Metric) [][]uint32 {
	truth := make([][]uint32, queries.Len())

	for q := 0; q < queries.Len(); q++ {
		query := queries.Row(q)

		type scored struct {
			row  uint32
			dist float32
		}
		all := make([]scored, data.Len())
		for r := 0; r < data.Len(); r++ {
			all[r] = scored{row: uint32(r), dist: scanner.Distance(metric, query, data.Row(r))}
		}
		sort.Slice(all, func(i, j int) bool {
			if all[i].dist != all[j].dist {
				return all[i].dist < all[j].dist
			}
			return all[i].row < all[j].row
		})

		n := k
		if n > len(all) {
			n = len(all)
		}
		ids := make([]uint32, n)
		for i := 0; i < n; i++ {
			ids[i] = all[i].row
		}
		truth[q] = ids
	}

	return truth
}

// Recall computes mean recall@k of results against ground truth.
func Recall(truth, results [][]uint32, k int) float64 {
	if len(truth) == 0 || len(truth) != len(results) {
		return 0
	}

	var total float64
	for q := range truth {
		gt := truth[q]
		res := results[q]
		if len(gt) > k {
			gt = gt[:k]
		}
		if len(res) > k {
			res = res[:k]
		}
		if len(gt) == 0 {
			continue
		}

		gtSet := make(map[uint32]struct{}, len(gt))
		for _, id := range gt {
			gtSet[id] = struct{}{}
		}
		matches := 0
		for _, id := range res {
			if _, ok := gtSet[id]; ok {
				matches++
			}
		}
		total += float64(matches) / float64(len(gt))
	}

	return total / float64(len(truth))
}
