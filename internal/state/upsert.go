package state

type insertPos int

const (
	atFront insertPos = iota
	atBack
)

// keyed is satisfied by list elements addressable by identifier.
type keyed interface {
	key() string
}

// upsert inserts item at the given end of items when no element carries id,
// and otherwise overwrites the matching element in place, keeping its
// position. Replacement is wholesale, not a field merge. The id not being
// found is the normal insert path, not an error.
//
// upsert writes through the provided slice, so callers must pass slices
// allocated within the current reducer call, never ones shared with an
// earlier state.
func upsert[T keyed](items []T, id string, item T, at insertPos) []T {
	for i := range items {
		if items[i].key() == id {
			items[i] = item
			return items
		}
	}
	if at == atFront {
		return append([]T{item}, items...)
	}
	return append(items, item)
}

// cloneItems returns an exact-length copy of items owning its backing
// array. Elements still share nested slices with the source, so a branch
// that reaches into an element's sub-list must clone that too.
func cloneItems[T any](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	return out
}
