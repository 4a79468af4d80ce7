package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/types"
)

// BuiltinScenarios returns the static market scenario table. Scenario
// multipliers scale the catalog's base figures; 1.0 everywhere is the
// neutral scenario.
func BuiltinScenarios() []types.Scenario {
	return []types.Scenario{
		{
			ID:    "CALM",
			Label: "Calm market (low costs, lower risk)",
			Notes: "Low volatility, normal gas prices, stable conditions",
			Multipliers: types.ScenarioMultipliers{
				Reward:   1.0,
				ILRisk:   0.8,
				Gas:      0.8,
				Slippage: 0.8,
				MEV:      0.7,
				Failure:  0.7,
			},
		},
		{
			ID:    "CHAOTIC",
			Label: "Chaotic market (high costs, higher risk)",
			Notes: "High volatility, elevated gas, increased MEV/slippage",
			Multipliers: types.ScenarioMultipliers{
				Reward:   1.0,
				ILRisk:   1.6,
				Gas:      1.8,
				Slippage: 1.6,
				MEV:      1.8,
				Failure:  1.5,
			},
		},
	}
}

// scenarioDoc is the external scenario shape; absent multipliers default
// to the neutral 1.0.
type scenarioDoc struct {
	ID          string `json:"scenario_id"`
	Label       string `json:"label"`
	Notes       string `json:"notes"`
	Multipliers struct {
		Reward   *float64 `json:"reward_multiplier"`
		ILRisk   *float64 `json:"il_risk_multiplier"`
		Gas      *float64 `json:"gas_multiplier"`
		Slippage *float64 `json:"slippage_multiplier"`
		MEV      *float64 `json:"mev_multiplier"`
		Failure  *float64 `json:"failure_multiplier"`
	} `json:"multipliers"`
}

func orOne(v *float64) float64 {
	if v == nil {
		return 1.0
	}
	return *v
}

// ParseScenariosDocument normalizes a scenarios document, a bare list or an
// object keyed by "scenarios". An empty document yields the builtin table.
func ParseScenariosDocument(data []byte) ([]types.Scenario, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return BuiltinScenarios(), nil
	}

	listRaw, err := coerceRootList(trimmed, "scenarios")
	if err != nil {
		return nil, err
	}
	var docs []scenarioDoc
	if err := json.Unmarshal(listRaw, &docs); err != nil {
		return nil, fmt.Errorf("%w: scenarios list: %w", ErrInvalidCatalog, err)
	}

	scenarios := make([]types.Scenario, 0, len(docs))
	for _, d := range docs {
		if d.ID == "" {
			return nil, fmt.Errorf("%w: scenario with empty id", ErrInvalidCatalog)
		}
		scenarios = append(scenarios, types.Scenario{
			ID:    d.ID,
			Label: d.Label,
			Notes: d.Notes,
			Multipliers: types.ScenarioMultipliers{
				Reward:   orOne(d.Multipliers.Reward),
				ILRisk:   orOne(d.Multipliers.ILRisk),
				Gas:      orOne(d.Multipliers.Gas),
				Slippage: orOne(d.Multipliers.Slippage),
				MEV:      orOne(d.Multipliers.MEV),
				Failure:  orOne(d.Multipliers.Failure),
			},
		})
	}
	return scenarios, nil
}

// PickScenario looks a scenario up by ID.
func PickScenario(scenarios []types.Scenario, id string) (types.Scenario, error) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, nil
		}
	}
	return types.Scenario{}, fmt.Errorf("%w: %s", ErrScenarioNotFound, id)
}
