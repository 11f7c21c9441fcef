package diff

import (
	"strings"

	"otterdog/pkg/models"
)

// matchResult pairs configured resources with their live counterparts by
// model key and separates the unmatched remainder on both sides. Slice order
// is preserved so plans come out deterministic.
type matchResult[T any] struct {
	added   []*T
	removed []*T
	pairs   []matchPair[T]
}

type matchPair[T any] struct {
	expected *T
	current  *T
}

// matchByKey pairs elements of the expected and current slices whose key
// fields are equal.
func matchByKey[T any](expected, current []T) matchResult[T] {
	var result matchResult[T]
	used := make(map[int]bool, len(current))

	for i := range expected {
		key := models.KeyOf(&expected[i])
		found := -1
		for j := range current {
			if !used[j] && models.KeyOf(&current[j]) == key {
				found = j
				break
			}
		}
		if found < 0 {
			result.added = append(result.added, &expected[i])
			continue
		}
		used[found] = true
		result.pairs = append(result.pairs, matchPair[T]{expected: &expected[i], current: &current[found]})
	}
	for j := range current {
		if !used[j] {
			result.removed = append(result.removed, &current[j])
		}
	}
	return result
}

// equalRepoName compares repository names the way GitHub does.
func equalRepoName(a, b string) bool {
	return strings.EqualFold(a, b)
}
