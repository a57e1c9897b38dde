package plan

import (
	"encoding/json"
	"fmt"
	"os"
)

// ForecastItem is one ingredient's demand forecast as supplied by the caller
type ForecastItem struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Unit             string   `json:"unit"`
	RequiredQty      float64  `json:"required_qty"`
	OnHandQty        float64  `json:"on_hand_qty"`
	UnitCost         float64  `json:"unit_cost"`
	WasteCostPerUnit float64  `json:"waste_cost_per_unit"`
	UnderOrderRisk   float64  `json:"under_order_risk"`
	ShelfLifeHours   *float64 `json:"shelf_life_hours,omitempty"`
}

// OrderOutcome is one historical order record consumed by the history critic
type OrderOutcome struct {
	ItemID      string  `json:"item_id"`
	OrderedQty  float64 `json:"ordered_qty"`
	ConsumedQty float64 `json:"consumed_qty"`
	WastedQty   float64 `json:"wasted_qty"`
	StockedOut  bool    `json:"stocked_out"`
	ServiceDate string  `json:"service_date,omitempty"`
}

// Inputs is everything the engine needs for one run. It is caller-supplied;
// the engine never fetches data itself.
type Inputs struct {
	Forecast       []ForecastItem     `json:"forecast"`
	Inventory      map[string]float64 `json:"inventory,omitempty"`
	PurchaseOrders []PurchaseOrder    `json:"purchase_orders,omitempty"`
	Quality        []QualityGate      `json:"quality,omitempty"`
	PrepTasks      []PrepTask         `json:"prep_tasks,omitempty"`
	History        []OrderOutcome     `json:"history,omitempty"`
}

// OnHand resolves an item's on-hand quantity, preferring the inventory
// snapshot over the forecast's own figure
func (in *Inputs) OnHand(item ForecastItem) float64 {
	if in.Inventory != nil {
		if qty, ok := in.Inventory[item.ID]; ok {
			return qty
		}
	}
	return item.OnHandQty
}

// LoadInputs reads committee inputs from a JSON file
func LoadInputs(path string) (*Inputs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inputs file %s: %w", path, err)
	}

	var in Inputs
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("failed to parse inputs file %s: %w", path, err)
	}

	if len(in.Forecast) == 0 {
		return nil, fmt.Errorf("inputs file %s has an empty forecast", path)
	}

	return &in, nil
}
