/*

This file normalizes external catalog documents into the canonical typed
structures the formulation core consumes.

Upstream producers are loose about shapes: hedge types arrive as a list or a
map, tenor buckets as objects, strings or a map, and top-level documents as a
bare list or a keyed object. All of that tolerance lives here, at the
collaborator boundary; the core never branches on document shape.

*/

package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/types"
)

var (
	ErrInvalidCatalog   = errors.New("invalid catalog document")
	ErrScenarioNotFound = errors.New("scenario not found")
)

// DefaultSizeTiers returns the static size-bucket table used when a
// positions document carries no bucket section.
func DefaultSizeTiers() []types.SizeTier {
	return []types.SizeTier{
		{Key: "S", NotionalUSD: 1000, Multiplier: 0.5},
		{Key: "M", NotionalUSD: 5000, Multiplier: 1.0},
		{Key: "L", NotionalUSD: 20000, Multiplier: 2.0},
	}
}

// DefaultRebalanceTiers returns the static rebalance-bucket table used when
// a positions document carries no bucket section.
func DefaultRebalanceTiers() []types.RebalanceTier {
	return []types.RebalanceTier{
		{Key: "daily", RebalancePerWeek: 7, Multiplier: 1.8},
		{Key: "weekly", RebalancePerWeek: 1, Multiplier: 1.0},
	}
}

// DefaultHedgeTypes returns the fallback hedge catalog used when a hedges
// document carries no hedge_types section.
func DefaultHedgeTypes() []types.HedgeType {
	return []types.HedgeType{
		{Key: "none", DefaultCostAPR: 0.0, DefaultILMultiplier: 1.0},
		{Key: "protective_put", DefaultCostAPR: 0.06, DefaultILMultiplier: 0.65},
		{Key: "collar", DefaultCostAPR: 0.03, DefaultILMultiplier: 0.80},
	}
}

// coerceRootList accepts either a bare JSON array or an object wrapping the
// array under one of the given keys, and returns the array's raw bytes.
func coerceRootList(data []byte, keys ...string) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidCatalog)
	}
	if trimmed[0] == '[' {
		return trimmed, nil
	}
	if trimmed[0] == '{' {
		var root map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &root); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
		}
		for _, key := range keys {
			if raw, ok := root[key]; ok {
				inner := bytes.TrimSpace(raw)
				if len(inner) > 0 && inner[0] == '[' {
					return inner, nil
				}
			}
		}
	}
	return nil, fmt.Errorf("%w: expected a list or an object keyed by one of %v", ErrInvalidCatalog, keys)
}

// positionsRoot captures the optional bucket sections of a positions
// document; buckets may sit under "buckets" or at the top level.
type positionsRoot struct {
	Buckets struct {
		SizeBuckets      []types.SizeTier      `json:"size_buckets"`
		RebalanceBuckets []types.RebalanceTier `json:"rebalance_buckets"`
	} `json:"buckets"`
	SizeBuckets      []types.SizeTier      `json:"size_buckets"`
	RebalanceBuckets []types.RebalanceTier `json:"rebalance_buckets"`
}

// ParsePositionsDocument normalizes a positions document into the position
// list and the size/rebalance tier tables, applying the static defaults for
// any absent bucket table.
func ParsePositionsDocument(data []byte) ([]types.Position, []types.SizeTier, []types.RebalanceTier, error) {
	listRaw, err := coerceRootList(data, "positions", "pools")
	if err != nil {
		return nil, nil, nil, err
	}

	var positions []types.Position
	if err := json.Unmarshal(listRaw, &positions); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: positions list: %w", ErrInvalidCatalog, err)
	}
	// Legacy documents use "pool_id" instead of "id".
	var legacyIDs []struct {
		PoolID string `json:"pool_id"`
	}
	if err := json.Unmarshal(listRaw, &legacyIDs); err == nil {
		for i := range positions {
			if positions[i].ID == "" && i < len(legacyIDs) {
				positions[i].ID = legacyIDs[i].PoolID
			}
		}
	}

	sizes := DefaultSizeTiers()
	rebalances := DefaultRebalanceTiers()

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var root positionsRoot
		if err := json.Unmarshal(trimmed, &root); err != nil {
			return nil, nil, nil, fmt.Errorf("%w: bucket section: %w", ErrInvalidCatalog, err)
		}
		switch {
		case len(root.Buckets.SizeBuckets) > 0:
			sizes = root.Buckets.SizeBuckets
		case len(root.SizeBuckets) > 0:
			sizes = root.SizeBuckets
		}
		switch {
		case len(root.Buckets.RebalanceBuckets) > 0:
			rebalances = root.Buckets.RebalanceBuckets
		case len(root.RebalanceBuckets) > 0:
			rebalances = root.RebalanceBuckets
		}
	}

	return positions, sizes, rebalances, nil
}

// hedgeMapEntry is the map-shaped hedge type used by some producers.
type hedgeMapEntry struct {
	CostAPR      *float64 `json:"cost_apr"`
	ILMultiplier *float64 `json:"il_multiplier"`
}

// ParseHedgesDocument normalizes a hedges document into a HedgeBook.
// Absent sections default; a missing document entirely yields the default
// hedge types with no tenor axis.
func ParseHedgesDocument(data []byte) (types.HedgeBook, error) {
	book := types.HedgeBook{Types: DefaultHedgeTypes()}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return book, nil
	}
	if trimmed[0] != '{' {
		return types.HedgeBook{}, fmt.Errorf("%w: hedges document must be an object", ErrInvalidCatalog)
	}

	var root map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &root); err != nil {
		return types.HedgeBook{}, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}

	if raw, ok := root["hedge_types"]; ok {
		hedgeTypes, err := normalizeHedgeTypes(raw)
		if err != nil {
			return types.HedgeBook{}, err
		}
		if len(hedgeTypes) > 0 {
			book.Types = hedgeTypes
		}
	}

	if raw, ok := root["tenor_buckets"]; ok {
		tenors, err := normalizeTenorTiers(raw)
		if err != nil {
			return types.HedgeBook{}, err
		}
		book.TenorTiers = tenors
	}

	for _, key := range []string{"position_overrides", "pool_overrides"} {
		raw, ok := root[key]
		if !ok {
			continue
		}
		overrides, err := normalizeOverrides(raw)
		if err != nil {
			return types.HedgeBook{}, err
		}
		book.PositionOverrides = append(book.PositionOverrides, overrides...)
	}

	if raw, ok := root["size_scaling"]; ok {
		if err := json.Unmarshal(raw, &book.SizeScaling); err != nil {
			return types.HedgeBook{}, fmt.Errorf("%w: size_scaling: %w", ErrInvalidCatalog, err)
		}
	}

	return book, nil
}

// normalizeHedgeTypes accepts a list of hedge types or a map keyed by hedge
// key. Map form is sorted by key so index assignment stays deterministic.
func normalizeHedgeTypes(raw json.RawMessage) ([]types.HedgeType, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var list []types.HedgeType
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("%w: hedge_types list: %w", ErrInvalidCatalog, err)
		}
		return list, nil
	}

	var byKey map[string]hedgeMapEntry
	if err := json.Unmarshal(trimmed, &byKey); err != nil {
		return nil, fmt.Errorf("%w: hedge_types map: %w", ErrInvalidCatalog, err)
	}
	keys := make([]string, 0, len(byKey))
	for key := range byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	list := make([]types.HedgeType, 0, len(keys))
	for _, key := range keys {
		entry := byKey[key]
		ht := types.HedgeType{Key: key, DefaultILMultiplier: 1.0}
		if entry.CostAPR != nil {
			ht.DefaultCostAPR = *entry.CostAPR
		}
		if entry.ILMultiplier != nil {
			ht.DefaultILMultiplier = *entry.ILMultiplier
		}
		list = append(list, ht)
	}
	return list, nil
}

// normalizeTenorTiers accepts a list of tier objects, a list of strings, or
// a map keyed by tenor.
func normalizeTenorTiers(raw json.RawMessage) ([]types.TenorTier, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var objects []types.TenorTier
		if err := json.Unmarshal(trimmed, &objects); err == nil {
			valid := true
			for _, t := range objects {
				if t.Key == "" {
					valid = false
					break
				}
			}
			if valid {
				return objects, nil
			}
		}
		var strs []string
		if err := json.Unmarshal(trimmed, &strs); err != nil {
			return nil, fmt.Errorf("%w: tenor_buckets list: %w", ErrInvalidCatalog, err)
		}
		tiers := make([]types.TenorTier, len(strs))
		for i, s := range strs {
			tiers[i] = types.TenorTier{Key: s}
		}
		return tiers, nil
	}

	var byKey map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &byKey); err != nil {
		return nil, fmt.Errorf("%w: tenor_buckets: %w", ErrInvalidCatalog, err)
	}
	keys := make([]string, 0, len(byKey))
	for key := range byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	tiers := make([]types.TenorTier, len(keys))
	for i, key := range keys {
		tiers[i] = types.TenorTier{Key: key}
	}
	return tiers, nil
}

// normalizeOverrides accepts the override list shape, tolerating the legacy
// "pool_id" field name.
func normalizeOverrides(raw json.RawMessage) ([]types.PositionHedgeOverride, error) {
	var entries []struct {
		PositionID     string                                 `json:"position_id"`
		PoolID         string                                 `json:"pool_id"`
		TenorOverrides map[string]map[string]types.HedgeQuote `json:"tenor_overrides"`
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%w: hedge overrides: %w", ErrInvalidCatalog, err)
	}

	overrides := make([]types.PositionHedgeOverride, 0, len(entries))
	for _, e := range entries {
		id := e.PositionID
		if id == "" {
			id = e.PoolID
		}
		if id == "" || len(e.TenorOverrides) == 0 {
			continue
		}
		overrides = append(overrides, types.PositionHedgeOverride{
			PositionID:     id,
			TenorOverrides: e.TenorOverrides,
		})
	}
	return overrides, nil
}

// BuildCatalog assembles and validates a complete catalog from raw
// positions and hedges documents.
func BuildCatalog(positionsDoc, hedgesDoc []byte) (types.Catalog, error) {
	positions, sizes, rebalances, err := ParsePositionsDocument(positionsDoc)
	if err != nil {
		return types.Catalog{}, err
	}
	hedges, err := ParseHedgesDocument(hedgesDoc)
	if err != nil {
		return types.Catalog{}, err
	}

	c := types.Catalog{
		Positions:      positions,
		Hedges:         hedges,
		SizeTiers:      sizes,
		RebalanceTiers: rebalances,
	}
	if err := Validate(c); err != nil {
		return types.Catalog{}, err
	}
	return c, nil
}

// Validate rejects catalogs whose numeric inputs would corrupt the
// formulation. Missing optional data is not an error; broken data is.
func Validate(c types.Catalog) error {
	for _, p := range c.Positions {
		if p.ID == "" {
			return fmt.Errorf("%w: position with empty id", ErrInvalidCatalog)
		}
		values := []float64{
			p.Reward.FeeAPR, p.Reward.IncentiveAPR, p.Reward.BaseAPR,
			p.Risk.ILRiskScore, p.Risk.LiquidityUnwindCostUSD,
			p.Execution.GasCostUSDPerRebalance, p.Execution.SlippageBpsPerRebalance,
			p.Execution.MEVRiskScore, p.Execution.FailureProbPerRebalance,
		}
		for _, v := range values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: position %s has a non-finite field", ErrInvalidCatalog, p.ID)
			}
			if v < 0 {
				return fmt.Errorf("%w: position %s has a negative field", ErrInvalidCatalog, p.ID)
			}
		}
	}
	for _, s := range c.SizeTiers {
		if s.Key == "" || s.NotionalUSD <= 0 || s.Multiplier <= 0 {
			return fmt.Errorf("%w: size tier %q", ErrInvalidCatalog, s.Key)
		}
	}
	for _, r := range c.RebalanceTiers {
		if r.Key == "" || r.RebalancePerWeek <= 0 || r.Multiplier <= 0 {
			return fmt.Errorf("%w: rebalance tier %q", ErrInvalidCatalog, r.Key)
		}
	}
	for _, h := range c.Hedges.Types {
		if h.Key == "" || h.DefaultCostAPR < 0 || h.DefaultILMultiplier < 0 {
			return fmt.Errorf("%w: hedge type %q", ErrInvalidCatalog, h.Key)
		}
	}
	return nil
}
