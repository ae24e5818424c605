package merkle

import (
	"errors"

	"github.com/dgraph-io/ristretto"

	"github.com/msg555/vericas/hcas"
)

// ErrObjectNotFound is returned when a hash that has to resolve (a Merge
// root or dependency, a node being expanded, an Export entry, the
// argument of TreeOfHash or TreeOfCommit) names no object in the store.
// ObjectStore.Find itself reports absence through its bool result.
var ErrObjectNotFound = errors.New("merkle: object not found")

// ErrDependencyMissing is returned by ObjectStore.Add when one of the
// dependency keys passed in has not itself been added yet.
var ErrDependencyMissing = errors.New("merkle: dependency not found")

// ObjectStore is a per-kind view over the shared hcas object graph: it
// implements the mem/find/add/unsafe_add/index/merge surface §1 asks the
// backend to expose for each of the contents, node and commit stores. All
// three kinds share the same underlying hcas objects (content-addressing
// dedups across kinds for free); Kind only tags how the bytes are meant to
// be interpreted once decoded.
type ObjectStore struct {
	kind    Kind
	session hcas.Session
	cache   *ristretto.Cache
}

func newObjectStore(kind Kind, session hcas.Session, cache *ristretto.Cache) *ObjectStore {
	return &ObjectStore{kind: kind, session: session, cache: cache}
}

func (o *ObjectStore) key(hash Hash) Key {
	return Key{Kind: o.kind, Hash: hash}
}

func (o *ObjectStore) cacheKey(hash Hash) string {
	return string([]byte{byte(o.kind)}) + hash.Name()
}

// Mem reports whether an object exists in this store.
func (o *ObjectStore) Mem(hash Hash) (bool, error) {
	if o.cache != nil {
		if _, found := o.cache.Get(o.cacheKey(hash)); found {
			return true, nil
		}
	}
	return o.session.Mem(hash)
}

// Find reads back an object's raw bytes, read-through caching the result.
func (o *ObjectStore) Find(hash Hash) ([]byte, bool, error) {
	if o.cache != nil {
		if v, found := o.cache.Get(o.cacheKey(hash)); found {
			data := v.([]byte)
			out := make([]byte, len(data))
			copy(out, data)
			return out, true, nil
		}
	}

	data, ok, err := o.session.Find(hash)
	if err != nil || !ok {
		return nil, ok, err
	}

	if o.cache != nil {
		o.cache.Set(o.cacheKey(hash), data, int64(len(data)))
	}
	return data, true, nil
}

// Add content-addresses data (along with its dependency keys) and stores it,
// returning the resulting Key. Every dependency must already be present in
// its own store or Add fails with ErrDependencyMissing.
func (o *ObjectStore) Add(data []byte, deps ...Key) (Key, error) {
	depNames := make([]hcas.Name, len(deps))
	for i, dep := range deps {
		depNames[i] = dep.Hash
	}

	name, err := o.session.CreateObject(data, depNames...)
	if err != nil {
		if isMissingDependency(err) {
			return Key{}, ErrDependencyMissing
		}
		return Key{}, err
	}

	key := o.key(name)
	if o.cache != nil {
		o.cache.Set(o.cacheKey(name), data, int64(len(data)))
	}
	return key, nil
}

// UnsafeAdd stores data under hash without verifying that hash is actually
// the correct digest of (data, deps). Callers must only use this when they
// already trust hash, e.g. because it was produced by another, already
// verified, replica of this same store (see Repo.Import).
func (o *ObjectStore) UnsafeAdd(hash Hash, data []byte, deps ...Key) (Key, error) {
	depNames := make([]hcas.Name, len(deps))
	for i, dep := range deps {
		depNames[i] = dep.Hash
	}

	if err := o.session.UnsafeAdd(hash, data, depNames...); err != nil {
		if isMissingDependency(err) {
			return Key{}, ErrDependencyMissing
		}
		return Key{}, err
	}

	key := o.key(hash)
	if o.cache != nil {
		o.cache.Set(o.cacheKey(hash), data, int64(len(data)))
	}
	return key, nil
}

// Index hydrates a Key from a bare hash without materializing its data,
// verifying only that the object is present. Used when a caller already has
// a digest in hand (from a commit's tree-key, say) and just needs a live
// handle onto it.
func (o *ObjectStore) Index(hash Hash) (Key, bool, error) {
	ok, err := o.Mem(hash)
	if err != nil || !ok {
		return Key{}, ok, err
	}
	return o.key(hash), true, nil
}

// Merge imports a foreign object graph rooted at hash into this store,
// fetching bytes and dependency lists it doesn't already have via fetch.
// Objects are content-addressed on both sides, so Merge is naturally
// idempotent: anything already present locally is left untouched.
func (o *ObjectStore) Merge(hash Hash, fetch func(Hash) (data []byte, deps []Hash, ok bool, err error)) (Key, error) {
	if ok, err := o.Mem(hash); err != nil {
		return Key{}, err
	} else if ok {
		return o.key(hash), nil
	}

	data, deps, ok, err := fetch(hash)
	if err != nil {
		return Key{}, err
	}
	if !ok {
		return Key{}, ErrObjectNotFound
	}

	depKeys := make([]Key, len(deps))
	for i, dep := range deps {
		depKeys[i], err = o.Merge(dep, fetch)
		if err != nil {
			return Key{}, err
		}
	}

	return o.UnsafeAdd(hash, data, depKeys...)
}

func isMissingDependency(err error) bool {
	return err != nil && err.Error() == "Dependency does not exist"
}
