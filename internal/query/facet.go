package query

import "sort"

// FacetCount is one observed value and how many filtered records carry it.
type FacetCount struct {
	Value string
	Count int
}

// CountFacets computes value→count tables per requested field over an
// already-filtered record set. Each table is truncated to the top N by count
// descending, ties broken by value ascending, so output is deterministic.
// Fields are counted independently; records missing the field contribute
// nothing to its table.
func CountFacets(docs []map[string]any, requests []FacetRequest) map[string][]FacetCount {
	if len(requests) == 0 {
		return nil
	}
	out := make(map[string][]FacetCount, len(requests))
	for _, req := range requests {
		counts := make(map[string]int)
		for _, doc := range docs {
			v, ok := Lookup(doc, req.Field)
			if !ok {
				continue
			}
			counts[Stringify(v)]++
		}
		table := make([]FacetCount, 0, len(counts))
		for value, count := range counts {
			table = append(table, FacetCount{Value: value, Count: count})
		}
		sort.Slice(table, func(i, j int) bool {
			if table[i].Count != table[j].Count {
				return table[i].Count > table[j].Count
			}
			return table[i].Value < table[j].Value
		})
		topN := req.TopN
		if topN < 1 {
			topN = DefaultFacetTopN
		}
		if len(table) > topN {
			table = table[:topN]
		}
		out[req.Field] = table
	}
	return out
}
