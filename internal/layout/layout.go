/*

This file assigns solver variable indices to catalog entries.

Every catalog entry across all selection axes receives a unique 1-based
variable index, assigned contiguously in group-declaration order. The index
blocks partition [1, NumVariables] and are never reused, which is what the
one-hot constraints and the decoder both rely on.

*/

package layout

import (
	"errors"
	"fmt"

	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/types"
)

var (
	ErrCatalogTooSmall = errors.New("position catalog requires at least 3 entries")
	ErrEmptyAxis       = errors.New("selection axis has no entries")
)

// Axis names, in declaration order.
const (
	AxisPosition  = "position"
	AxisHedge     = "hedge"
	AxisSize      = "size"
	AxisRebalance = "rebalance"
	AxisTenor     = "tenor"
)

// minimum positions for a non-degenerate choice problem
const minPositions = 3

// AxisGroup is one selection axis: its display keys and the contiguous block
// of 1-based variable indices assigned to them.
type AxisGroup struct {
	Name       string   `json:"name"`
	Keys       []string `json:"keys"`
	VarIndices []int    `json:"var_indices"`
}

// IndexOf returns the variable index for key within the group.
func (g AxisGroup) IndexOf(key string) (int, bool) {
	for i, k := range g.Keys {
		if k == key {
			return g.VarIndices[i], true
		}
	}
	return 0, false
}

// Layout is the complete variable assignment for one optimization request.
type Layout struct {
	Groups       []AxisGroup
	byName       map[string]AxisGroup
	numVariables int
}

// Build assigns variable indices to every catalog entry. Deterministic for
// identical catalog ordering. Returns ErrCatalogTooSmall when fewer than
// three positions are supplied, and ErrEmptyAxis when a mandatory axis
// carries no entries.
func Build(catalog types.Catalog) (*Layout, error) {
	if len(catalog.Positions) < minPositions {
		return nil, fmt.Errorf("%w: got %d", ErrCatalogTooSmall, len(catalog.Positions))
	}

	positionKeys := make([]string, len(catalog.Positions))
	for i, p := range catalog.Positions {
		positionKeys[i] = p.ID
	}
	hedgeKeys := make([]string, len(catalog.Hedges.Types))
	for i, h := range catalog.Hedges.Types {
		hedgeKeys[i] = h.Key
	}
	sizeKeys := make([]string, len(catalog.SizeTiers))
	for i, s := range catalog.SizeTiers {
		sizeKeys[i] = s.Key
	}
	rebalanceKeys := make([]string, len(catalog.RebalanceTiers))
	for i, r := range catalog.RebalanceTiers {
		rebalanceKeys[i] = r.Key
	}

	l := &Layout{byName: make(map[string]AxisGroup)}

	nextIndex := 1
	appendGroup := func(name string, keys []string) error {
		if len(keys) == 0 {
			return fmt.Errorf("%w: %s", ErrEmptyAxis, name)
		}
		indices := make([]int, len(keys))
		for i := range keys {
			indices[i] = nextIndex
			nextIndex++
		}
		group := AxisGroup{Name: name, Keys: keys, VarIndices: indices}
		l.Groups = append(l.Groups, group)
		l.byName[name] = group
		return nil
	}

	if err := appendGroup(AxisPosition, positionKeys); err != nil {
		return nil, err
	}
	if err := appendGroup(AxisHedge, hedgeKeys); err != nil {
		return nil, err
	}
	if err := appendGroup(AxisSize, sizeKeys); err != nil {
		return nil, err
	}
	if err := appendGroup(AxisRebalance, rebalanceKeys); err != nil {
		return nil, err
	}
	if catalog.HasTenorAxis() {
		tenorKeys := make([]string, len(catalog.Hedges.TenorTiers))
		for i, t := range catalog.Hedges.TenorTiers {
			tenorKeys[i] = t.Key
		}
		if err := appendGroup(AxisTenor, tenorKeys); err != nil {
			return nil, err
		}
	}

	l.numVariables = nextIndex - 1
	return l, nil
}

// Group returns the axis group with the given name.
func (l *Layout) Group(name string) (AxisGroup, bool) {
	g, ok := l.byName[name]
	return g, ok
}

// NumVariables returns the total variable count across all groups.
func (l *Layout) NumVariables() int {
	return l.numVariables
}

// HasTenor reports whether the optional tenor axis was present.
func (l *Layout) HasTenor() bool {
	_, ok := l.byName[AxisTenor]
	return ok
}

// MaxDegree returns the highest monomial degree the formulation produces for
// this layout: 5 when a tenor axis participates in hedge terms, 4 otherwise.
func (l *Layout) MaxDegree() int {
	if l.HasTenor() {
		return 5
	}
	return 4
}

// VariableIndex resolves an (axis, key) pair to its variable index.
func (l *Layout) VariableIndex(axis, key string) (int, error) {
	group, ok := l.byName[axis]
	if !ok {
		return 0, fmt.Errorf("unknown axis %q", axis)
	}
	idx, ok := group.IndexOf(key)
	if !ok {
		return 0, fmt.Errorf("unknown key %q in axis %q", key, axis)
	}
	return idx, nil
}
