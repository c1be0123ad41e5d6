package query

import (
	"reflect"
	"testing"
)

func docsWithCodes(codes ...string) []map[string]any {
	docs := make([]map[string]any, 0, len(codes))
	for _, code := range codes {
		docs = append(docs, map[string]any{"code": code, "configName": "other_settings"})
	}
	return docs
}

func TestCountFacets_TopNTieBreak(t *testing.T) {
	docs := docsWithCodes("a", "a", "b", "c", "c")
	got := CountFacets(docs, []FacetRequest{{Field: "code", TopN: 2}})
	want := []FacetCount{{Value: "a", Count: 2}, {Value: "c", Count: 2}}
	if !reflect.DeepEqual(got["code"], want) {
		t.Fatalf("facets=%+v, want %+v", got["code"], want)
	}
}

func TestCountFacets_Deterministic(t *testing.T) {
	docs := docsWithCodes("x", "y", "y", "z", "x", "w")
	first := CountFacets(docs, []FacetRequest{{Field: "code", TopN: 3}})
	for i := 0; i < 50; i++ {
		again := CountFacets(docs, []FacetRequest{{Field: "code", TopN: 3}})
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %+v vs %+v", i, again, first)
		}
	}
}

func TestCountFacets_MissingFieldSkipped(t *testing.T) {
	docs := []map[string]any{
		{"code": "a"},
		{"configName": "no_code_here"},
	}
	got := CountFacets(docs, []FacetRequest{{Field: "code", TopN: 5}})
	if len(got["code"]) != 1 || got["code"][0].Count != 1 {
		t.Fatalf("facets=%+v, want only code=a counted once", got["code"])
	}
}

func TestCountFacets_IndependentFields(t *testing.T) {
	docs := []map[string]any{
		{"code": "a", "module": "M1"},
		{"code": "b", "module": "M1"},
	}
	got := CountFacets(docs, []FacetRequest{{Field: "code", TopN: 5}, {Field: "module", TopN: 5}})
	if len(got) != 2 {
		t.Fatalf("len(facets)=%d, want 2", len(got))
	}
	if got["module"][0].Count != 2 {
		t.Fatalf("module facet=%+v, want count 2", got["module"])
	}
}

func TestCountFacets_NoRequests(t *testing.T) {
	if got := CountFacets(docsWithCodes("a"), nil); got != nil {
		t.Fatalf("CountFacets(nil)=%+v, want nil", got)
	}
}
