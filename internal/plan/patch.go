package plan

import (
	"encoding/json"
	"fmt"
	"time"
)

// PatchOp discriminates patch variants in serialized form
type PatchOp string

const (
	OpAdjustPurchaseOrderQuantity PatchOp = "adjust_purchase_order_quantity"
	OpAdjustDemandRecommendation  PatchOp = "adjust_demand_recommendation"
	OpAddNote                     PatchOp = "add_note"
	OpUpdatePrepTaskWindow        PatchOp = "update_prep_task_window"
)

// Patch is a typed edit operation on a proposal. The set of variants is
// closed: the applicator dispatches on the concrete type and the decoder
// rejects unknown ops.
type Patch interface {
	Op() PatchOp
	isPatch()
}

// AdjustPurchaseOrderQuantity sets a purchase order line to a new quantity
type AdjustPurchaseOrderQuantity struct {
	PurchaseOrderID string  `json:"purchase_order_id"`
	LineID          string  `json:"line_id"`
	NewQty          float64 `json:"new_qty"`
	Reason          string  `json:"reason,omitempty"`
}

func (AdjustPurchaseOrderQuantity) Op() PatchOp { return OpAdjustPurchaseOrderQuantity }
func (AdjustPurchaseOrderQuantity) isPatch()    {}

// AdjustDemandRecommendation raises or lowers a demand item's recommended
// quantity, optionally resetting its adjusted risk
type AdjustDemandRecommendation struct {
	DemandID          string   `json:"demand_id"`
	NewRecommendedQty float64  `json:"new_recommended_qty"`
	NewUnderOrderRisk *float64 `json:"new_under_order_risk,omitempty"`
	Reason            string   `json:"reason,omitempty"`
}

func (AdjustDemandRecommendation) Op() PatchOp { return OpAdjustDemandRecommendation }
func (AdjustDemandRecommendation) isPatch()    {}

// AddNote appends a free-form note to the proposal
type AddNote struct {
	Note string `json:"note"`
}

func (AddNote) Op() PatchOp { return OpAddNote }
func (AddNote) isPatch()    {}

// UpdatePrepTaskWindow overwrites a prep task's scheduled window
type UpdatePrepTaskWindow struct {
	TaskID  string    `json:"task_id"`
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
}

func (UpdatePrepTaskWindow) Op() PatchOp { return OpUpdatePrepTaskWindow }
func (UpdatePrepTaskWindow) isPatch()    {}

// PatchList serializes a patch slice as an array of op-tagged envelopes
type PatchList []Patch

type patchEnvelope struct {
	Op PatchOp `json:"op"`
}

// MarshalJSON writes each patch with its op discriminator
func (l PatchList) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, len(l))
	for i, p := range l {
		body, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		// Splice the op field into the variant's own fields
		var fields map[string]any
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, err
		}
		fields["op"] = p.Op()
		tagged, err := json.Marshal(fields)
		if err != nil {
			return nil, err
		}
		out[i] = tagged
	}
	return json.Marshal(out)
}

// UnmarshalJSON routes each element to its variant by op
func (l *PatchList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	patches := make(PatchList, 0, len(raw))
	for i, msg := range raw {
		var env patchEnvelope
		if err := json.Unmarshal(msg, &env); err != nil {
			return fmt.Errorf("patch %d: failed to parse envelope: %w", i, err)
		}

		patch, err := decodePatch(env.Op, msg)
		if err != nil {
			return fmt.Errorf("patch %d: %w", i, err)
		}
		patches = append(patches, patch)
	}

	*l = patches
	return nil
}

func decodePatch(op PatchOp, data []byte) (Patch, error) {
	switch op {
	case OpAdjustPurchaseOrderQuantity:
		var p AdjustPurchaseOrderQuantity
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", op, err)
		}
		return p, nil

	case OpAdjustDemandRecommendation:
		var p AdjustDemandRecommendation
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", op, err)
		}
		return p, nil

	case OpAddNote:
		var p AddNote
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", op, err)
		}
		return p, nil

	case OpUpdatePrepTaskWindow:
		var p UpdatePrepTaskWindow
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", op, err)
		}
		return p, nil

	default:
		return nil, fmt.Errorf("unknown patch op: %s", op)
	}
}

// Describe renders a short human-readable summary of a patch for issues and
// console output
func Describe(p Patch) string {
	switch v := p.(type) {
	case AdjustPurchaseOrderQuantity:
		return fmt.Sprintf("%s %s/%s -> %.2f", v.Op(), v.PurchaseOrderID, v.LineID, v.NewQty)
	case AdjustDemandRecommendation:
		return fmt.Sprintf("%s %s -> %.2f", v.Op(), v.DemandID, v.NewRecommendedQty)
	case AddNote:
		return fmt.Sprintf("%s %q", v.Op(), v.Note)
	case UpdatePrepTaskWindow:
		return fmt.Sprintf("%s %s", v.Op(), v.TaskID)
	default:
		return string(p.Op())
	}
}
