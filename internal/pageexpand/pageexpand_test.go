package pageexpand

import (
	"testing"

	"github.com/kilnbuild/kiln/internal/item"
)

func TestExpand_Unpaginated(t *testing.T) {
	it := &item.Item{Key: "tags.html", Kind: item.KindTemplatePage}
	exps, err := Expand(it, item.Globals{})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(exps) != 1 || exps[0].OutputPath != "tags/index.html" {
		t.Fatalf("got %+v", exps)
	}
	if exps[0].Page != nil {
		t.Fatal("unpaginated expansion should have nil Page")
	}
}

func TestExpand_PaginationFanOut(t *testing.T) {
	it := &item.Item{
		Key:        "tags.html",
		Kind:       item.KindTemplatePage,
		Pagination: &item.Pagination{From: "xs", Every: 2},
	}
	globals := item.Globals{"xs": []any{"a", "b", "c", "d", "e"}}

	exps, err := Expand(it, globals)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(exps) != 3 {
		t.Fatalf("got %d expansions, want 3", len(exps))
	}

	wantPaths := []string{"tags/index.html", "tags/1/index.html", "tags/2/index.html"}
	wantSizes := []int{2, 2, 1}
	for i, exp := range exps {
		if exp.OutputPath != wantPaths[i] {
			t.Errorf("expansion %d: path = %q, want %q", i, exp.OutputPath, wantPaths[i])
		}
		items := exp.Page.Items.([]any)
		if len(items) != wantSizes[i] {
			t.Errorf("expansion %d: chunk size = %d, want %d", i, len(items), wantSizes[i])
		}
		if exp.Page.Index != i {
			t.Errorf("expansion %d: index = %d", i, exp.Page.Index)
		}
		if exp.Page.Count != 3 {
			t.Errorf("expansion %d: count = %d, want 3", i, exp.Page.Count)
		}
	}

	if exps[0].Page.Prev != nil {
		t.Error("first page should have nil Prev")
	}
	if exps[2].Page.Next != nil {
		t.Error("last page should have nil Next")
	}
	if exps[1].Page.Prev == nil || *exps[1].Page.Prev != "tags/index.html" {
		t.Errorf("middle page Prev = %v, want tags/index.html", exps[1].Page.Prev)
	}
	if exps[1].Page.Next == nil || *exps[1].Page.Next != "tags/2/index.html" {
		t.Errorf("middle page Next = %v, want tags/2/index.html", exps[1].Page.Next)
	}
}

func TestExpand_MissingPaginationSourceIsFatal(t *testing.T) {
	it := &item.Item{Key: "tags.html", Pagination: &item.Pagination{From: "xs", Every: 2}}
	_, err := Expand(it, item.Globals{})
	if err == nil {
		t.Fatal("expected a fatal error for a missing pagination source")
	}
}

func TestExpand_NonPositiveEveryIsFatal(t *testing.T) {
	it := &item.Item{Key: "tags.html", Pagination: &item.Pagination{From: "xs", Every: 0}}
	_, err := Expand(it, item.Globals{"xs": []any{"a"}})
	if err == nil {
		t.Fatal("expected a fatal error for a non-positive chunk size")
	}
}

func TestExpand_WrongShapeIsFatal(t *testing.T) {
	it := &item.Item{Key: "tags.html", Pagination: &item.Pagination{From: "xs", Every: 2}}
	_, err := Expand(it, item.Globals{"xs": "not a sequence"})
	if err == nil {
		t.Fatal("expected a fatal error for a non-sequence pagination source")
	}
}
