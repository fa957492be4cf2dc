// Package changedetect implements the Change Detector: the decision
// rule that folds an item's raw bytes and its declared dependency
// values into a single content hash, and compares it against the
// item's previously persisted fingerprint to decide direct dirtiness.
package changedetect

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/kilnbuild/kiln/internal/item"
)

// Globals is an alias for item.Globals, the run-scoped name → value
// table populated by the Collect Globals phase.
type Globals = item.Globals

// Hash computes the effective content hash of it: its raw bytes,
// followed by, in sorted order, each declared dependency name and the
// canonical encoding of its current global value (or an explicit
// "absent" marker if the global was never set). Two runs over
// unchanged bytes and unchanged dependency values always produce the
// same hash; this is the property that makes a second run a no-op.
func Hash(it *item.Item, globals Globals) string {
	h := sha256.New()
	h.Write(it.RawBytes)

	deps := append([]string(nil), it.DeclaredDeps...)
	sort.Strings(deps)
	for _, name := range deps {
		h.Write(item.Canonical(name))
		val, ok := globals[name]
		if !ok {
			h.Write(item.Canonical(nil))
			continue
		}
		h.Write(item.Canonical(val))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// Store is the subset of the fingerprint store's transactional handle
// the Change Detector needs: a prior-digest lookup.
type Store interface {
	Get(key string) (digest string, ok bool, err error)
}

// IsDirectlyDirty reports whether it must rebuild on its own merits
// (independent of dependents): true when there is no prior fingerprint,
// or when the prior fingerprint's digest differs from the freshly
// computed one. It also returns the freshly computed hash, since the
// caller needs it either way (to upsert on success, or to compare
// again later).
func IsDirectlyDirty(txn Store, it *item.Item, globals Globals) (dirty bool, newHash string, err error) {
	newHash = Hash(it, globals)
	oldHash, ok, err := txn.Get(it.Key)
	if err != nil {
		return false, "", err
	}
	if !ok {
		return true, newHash, nil
	}
	return oldHash != newHash, newHash, nil
}
