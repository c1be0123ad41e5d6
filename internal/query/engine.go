package query

import "sort"

// Request is one list call: a predicate, an optional sort, facet requests,
// and a page window. Offset and Limit must be non-negative; an offset past
// the filtered set yields an empty page, not an error. Limit zero means no
// page cap.
type Request struct {
	Expr   Expr
	Sort   *Sort
	Facets []FacetRequest
	Offset int
	Limit  int
}

// Result reports the page as indices into the evaluated document slice so
// callers keep their typed records, plus the pre-pagination total and facet
// tables.
type Result struct {
	Page         []int
	TotalRecords int
	Facets       map[string][]FacetCount
}

// Run filters, sorts, paginates, and facet-counts. TotalRecords is the
// filtered-set size before the page window is applied, and facets are
// computed over the whole filtered set, so neither changes with Offset or
// Limit. Without a sort clause the input (insertion) order is kept.
func Run(docs []map[string]any, req Request) Result {
	expr := req.Expr
	if expr == nil {
		expr = MatchAll{}
	}

	filtered := make([]int, 0, len(docs))
	for i, doc := range docs {
		if Eval(expr, doc) {
			filtered = append(filtered, i)
		}
	}

	if req.Sort != nil {
		sortIndices(filtered, docs, *req.Sort)
	}

	total := len(filtered)

	facetDocs := make([]map[string]any, len(filtered))
	for i, idx := range filtered {
		facetDocs[i] = docs[idx]
	}
	facets := CountFacets(facetDocs, req.Facets)

	offset := req.Offset
	if offset < 0 {
		offset = 0
	}
	limit := req.Limit
	if limit < 0 {
		limit = 0
	}
	page := []int{}
	if offset < total {
		end := total
		if limit > 0 && offset+limit < end {
			end = offset + limit
		}
		page = filtered[offset:end]
	}

	return Result{Page: page, TotalRecords: total, Facets: facets}
}

// sortIndices orders by the requested field, numeric when both sides are
// numeric; stable, so equal keys keep insertion order.
func sortIndices(indices []int, docs []map[string]any, s Sort) {
	sort.SliceStable(indices, func(a, b int) bool {
		vi, _ := Lookup(docs[indices[a]], s.Field)
		vj, _ := Lookup(docs[indices[b]], s.Field)
		cmp := compareValues(vi, Stringify(vj))
		if s.Descending {
			return cmp > 0
		}
		return cmp < 0
	})
}
