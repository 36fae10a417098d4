// Package scope resolves container (page) id lists into the set of containers
// a listing is restricted to.
package scope

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Outcome tells whether a parsed id list restricts anything.
type Outcome int

const (
	// Unrestricted means the input was empty or malformed; no scoping applies.
	Unrestricted Outcome = iota
	// Restricted means the input was a valid list of positive ids.
	Restricted
)

// ParseIDs parses a comma-separated list of container ids. Any token that is
// not a positive integer makes the whole list Unrestricted: malformed input
// disables the filter instead of failing.
func ParseIDs(text string) ([]int64, Outcome) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, Unrestricted
	}

	var ids []int64
	for _, token := range strings.Split(text, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(token), 10, 64)
		if err != nil || id <= 0 {
			return nil, Unrestricted
		}
		ids = append(ids, id)
	}
	return ids, Restricted
}

// Hierarchy lists the direct children of containers.
type Hierarchy interface {
	ChildrenOf(ctx context.Context, ids []int64) ([]int64, error)
}

// ContainerScope expands container ids through a Hierarchy.
type ContainerScope struct {
	hierarchy Hierarchy
}

// New constructs a ContainerScope.
func New(h Hierarchy) *ContainerScope {
	return &ContainerScope{hierarchy: h}
}

// Resolve returns ids plus all descendants up to depth levels below them, in
// ascending order. A depth of 0 returns exactly ids.
func (s *ContainerScope) Resolve(ctx context.Context, ids []int64, depth uint) ([]int64, error) {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}

	level := ids
	for d := uint(0); d < depth && len(level) > 0; d++ {
		children, err := s.hierarchy.ChildrenOf(ctx, level)
		if err != nil {
			return nil, fmt.Errorf("expand containers at depth %d: %w", d+1, err)
		}
		var next []int64
		for _, child := range children {
			if _, ok := seen[child]; ok {
				continue
			}
			seen[child] = struct{}{}
			next = append(next, child)
		}
		level = next
	}

	result := make([]int64, 0, len(seen))
	for id := range seen {
		result = append(result, id)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result, nil
}

// ResolveList parses text and resolves it. The second return value is false
// when the input did not restrict anything.
func (s *ContainerScope) ResolveList(ctx context.Context, text string, depth uint) ([]int64, bool, error) {
	ids, outcome := ParseIDs(text)
	if outcome == Unrestricted {
		return nil, false, nil
	}
	resolved, err := s.Resolve(ctx, ids, depth)
	if err != nil {
		return nil, false, err
	}
	return resolved, true, nil
}
