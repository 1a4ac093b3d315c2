package handlers

import (
	"net/http"
	"slices"
	"time"

	"tollbooth-hq/tollbooth/pkg/config"
	"tollbooth-hq/tollbooth/pkg/pricing"
	"tollbooth-hq/tollbooth/pkg/proxy"
	"tollbooth-hq/tollbooth/pkg/proxy/types"
)

// slotOther tags catalog models that fill no recommendation slot.
const slotOther = "other"

// PriceLookup resolves the price of a model. *pricing.Calculator
// satisfies it.
type PriceLookup interface {
	Price(model string) (pricing.Price, string, error)
}

// ModelsHandler serves the model catalog, limited to models whose provider
// has credentials:
//
//	GET /v1/models              OpenAI-compatible list
//	GET /v1/models/recommended  the same list tagged with slots and prices
type ModelsHandler struct {
	list        types.ModelList
	recommended types.RecommendedModelList
}

// NewModelsHandler builds both bodies once. The configuration is immutable
// after boot, so they never change. prices may be nil.
func NewModelsHandler(models []config.ModelConfig, available []string, prices PriceLookup) *ModelsHandler {
	created := time.Now().Unix()
	h := &ModelsHandler{
		list: types.ModelList{Object: "list", Data: make([]types.Model, 0, len(models))},
		recommended: types.RecommendedModelList{
			Object: "list",
			Data:   make([]types.RecommendedModel, 0, len(models)),
			Slots:  make(map[string]string),
		},
	}

	for _, m := range models {
		if !slices.Contains(available, m.Provider) {
			continue
		}
		model := types.Model{
			ID:              m.ID,
			Object:          "model",
			Created:         created,
			OwnedBy:         m.Provider,
			DisplayName:     m.DisplayName,
			ContextWindow:   m.ContextWindow,
			MaxOutputTokens: m.MaxOutputTokens,
			SupportsTools:   m.SupportsTools,
		}
		h.list.Data = append(h.list.Data, model)

		rec := types.RecommendedModel{Model: model, Slot: slotOther}
		if m.Slot != "" {
			rec.Slot = m.Slot
			h.recommended.Slots[m.Slot] = m.ID
		}
		if prices != nil {
			if p, _, err := prices.Price(m.ID); err == nil {
				in, out := p.InputPer1K.InexactFloat64(), p.OutputPer1K.InexactFloat64()
				rec.InputCostPer1K, rec.OutputCostPer1K = &in, &out
			}
		}
		h.recommended.Data = append(h.recommended.Data, rec)
	}
	return h
}

// List handles GET /v1/models.
func (h *ModelsHandler) List(w http.ResponseWriter, r *http.Request) {
	_ = proxy.WriteJSONResponse(w, http.StatusOK, h.list)
}

// Recommended handles GET /v1/models/recommended.
func (h *ModelsHandler) Recommended(w http.ResponseWriter, r *http.Request) {
	_ = proxy.WriteJSONResponse(w, http.StatusOK, h.recommended)
}
