package registry

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

const (
	// slugFallback stands in when a name normalizes to nothing.
	slugFallback = "world"
	// slugMaxProbes bounds the {base}-2, {base}-3 probe sequence before
	// falling back to a random suffix.
	slugMaxProbes = 50
)

// SlugAllocator assigns URL slugs. Probing is advisory only; the unique index
// on listings.slug is what actually guards against concurrent allocations.
type SlugAllocator struct {
	// Exists reports whether a slug is already taken.
	Exists func(slug string) (bool, error)
}

// Allocate turns a display name into a free slug.
func (a *SlugAllocator) Allocate(name string) (string, error) {
	base := Slugify(name)
	if base == "" {
		base = slugFallback
	}

	candidate := base
	for i := 2; i <= slugMaxProbes; i++ {
		taken, err := a.Exists(candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return fmt.Sprintf("%s-%d", base, rand.IntN(1_000_000)), nil
}

// Slugify lowercases a name and collapses every non-alphanumeric run into a
// single hyphen.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
