package models

import (
	"encoding/json"
	"fmt"
)

const (
	PolicyPromotions = "promotions"
	PolicyStopSell   = "stop_sell"
)

// PolicyLayer records a payload together with the window it applies to.
type PolicyLayer struct {
	Payload map[string]any `json:"payload"`
	From    Date           `json:"from"`
	To      *Date          `json:"to"`
}

type Window struct {
	From Date  `json:"from"`
	To   *Date `json:"to"`
}

// Policy values are held as plain JSON values so a snapshot looks the same
// before and after it has been persisted and reloaded.

func (c *Clause) ensurePolicy() *Fields {
	if c.Policy == nil {
		c.Policy = &Fields{}
	}
	return c.Policy
}

func (c Clause) Promotions() ([]PolicyLayer, error) {
	var out []PolicyLayer
	err := c.decodePolicy(PolicyPromotions, &out)
	return out, err
}

func (c *Clause) AddPromotion(layer PolicyLayer) error {
	return c.appendPolicy(PolicyPromotions, layer)
}

func (c Clause) StopSellWindows() ([]Window, error) {
	var out []Window
	err := c.decodePolicy(PolicyStopSell, &out)
	return out, err
}

func (c *Clause) AddStopSell(w Window) error {
	return c.appendPolicy(PolicyStopSell, w)
}

// PolicySlot returns the latest layer stored for a change kind.
func (c Clause) PolicySlot(kind ChangeType) (PolicyLayer, bool, error) {
	if !c.Policy.Has(string(kind)) {
		return PolicyLayer{}, false, nil
	}
	var out PolicyLayer
	if err := c.decodePolicy(string(kind), &out); err != nil {
		return PolicyLayer{}, false, err
	}
	return out, true, nil
}

// SetPolicySlot replaces the layer stored for a change kind.
func (c *Clause) SetPolicySlot(kind ChangeType, layer PolicyLayer) error {
	v, err := toGeneric(layer)
	if err != nil {
		return err
	}
	c.ensurePolicy().Set(string(kind), v)
	return nil
}

func (c *Clause) appendPolicy(key string, item any) error {
	v, err := toGeneric(item)
	if err != nil {
		return err
	}
	p := c.ensurePolicy()
	existing, _ := p.Get(key)
	list, _ := existing.([]any)
	list = append(list, v)
	p.Set(key, list)
	return nil
}

func (c Clause) decodePolicy(key string, dst any) error {
	v, ok := c.Policy.Get(key)
	if !ok || v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("policy %q: %w", key, err)
	}
	return nil
}

func toGeneric(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
