package changedetect

import (
	"testing"

	"github.com/kilnbuild/kiln/internal/item"
)

type fakeStore map[string]string

func (f fakeStore) Get(key string) (string, bool, error) {
	d, ok := f[key]
	return d, ok, nil
}

func TestHash_Deterministic(t *testing.T) {
	it := &item.Item{RawBytes: []byte("hello"), DeclaredDeps: []string{"tags"}}
	g := Globals{"tags": []any{"a", "b"}}

	h1 := Hash(it, g)
	h2 := Hash(it, g)
	if h1 != h2 {
		t.Fatalf("hash not deterministic: %s vs %s", h1, h2)
	}
}

func TestHash_ChangesWithDependencyValue(t *testing.T) {
	it := &item.Item{RawBytes: []byte("hello"), DeclaredDeps: []string{"tags"}}
	h1 := Hash(it, Globals{"tags": []any{"a"}})
	h2 := Hash(it, Globals{"tags": []any{"a", "b"}})
	if h1 == h2 {
		t.Fatal("hash should change when a declared dependency's value changes")
	}
}

func TestHash_AbsentDiffersFromEmptyGlobal(t *testing.T) {
	it := &item.Item{RawBytes: []byte("hello"), DeclaredDeps: []string{"tags"}}
	hAbsent := Hash(it, Globals{})
	hEmpty := Hash(it, Globals{"tags": []any{}})
	if hAbsent == hEmpty {
		t.Fatal("an absent global must hash differently from an empty sequence")
	}
}

func TestIsDirectlyDirty_NoPriorFingerprint(t *testing.T) {
	it := &item.Item{Key: "posts/hello.md", RawBytes: []byte("hello")}
	dirty, hash, err := IsDirectlyDirty(fakeStore{}, it, Globals{})
	if err != nil {
		t.Fatalf("IsDirectlyDirty: %v", err)
	}
	if !dirty {
		t.Fatal("an item with no prior fingerprint must be directly dirty")
	}
	if hash == "" {
		t.Fatal("expected a non-empty hash")
	}
}

func TestIsDirectlyDirty_UnchangedBytesAreClean(t *testing.T) {
	it := &item.Item{Key: "posts/hello.md", RawBytes: []byte("hello")}
	hash := Hash(it, Globals{})
	store := fakeStore{"posts/hello.md": hash}

	dirty, _, err := IsDirectlyDirty(store, it, Globals{})
	if err != nil {
		t.Fatalf("IsDirectlyDirty: %v", err)
	}
	if dirty {
		t.Fatal("an item whose hash matches the stored fingerprint must be clean")
	}
}

func TestIsDirectlyDirty_ChangedBytesAreDirty(t *testing.T) {
	it := &item.Item{Key: "posts/hello.md", RawBytes: []byte("hello!")}
	store := fakeStore{"posts/hello.md": Hash(&item.Item{RawBytes: []byte("hello")}, Globals{})}

	dirty, _, err := IsDirectlyDirty(store, it, Globals{})
	if err != nil {
		t.Fatalf("IsDirectlyDirty: %v", err)
	}
	if !dirty {
		t.Fatal("modified bytes must mark the item dirty")
	}
}
