package promo

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is the storage and wire shape of a Code, with the kind spelled as a string.
type Record struct {
	Code        string     `json:"code"`
	Type        string     `json:"type"`
	Value       float64    `json:"value"`
	MinAmount   *float64   `json:"min_amount,omitempty"`
	MaxDiscount *float64   `json:"max_discount,omitempty"`
	ValidUntil  *time.Time `json:"valid_until,omitempty"`
	IsValid     bool       `json:"is_valid"`
}

func (r Record) ToCode() (Code, error) {
	kind, err := ParseKind(r.Type)
	if err != nil {
		return Code{}, fmt.Errorf("promo %s: %w", r.Code, err)
	}

	return Code{
		Code:        Normalize(r.Code),
		Kind:        kind,
		Value:       r.Value,
		MinAmount:   r.MinAmount,
		MaxDiscount: r.MaxDiscount,
		ValidUntil:  r.ValidUntil,
		IsValid:     r.IsValid,
	}, nil
}

func (c Code) Record() Record {
	var kind string
	if c.Kind != nil {
		kind = c.Kind.Name()
	}

	return Record{
		Code:        c.Code,
		Type:        kind,
		Value:       c.Value,
		MinAmount:   c.MinAmount,
		MaxDiscount: c.MaxDiscount,
		ValidUntil:  c.ValidUntil,
		IsValid:     c.IsValid,
	}
}

func (c Code) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Record())
}

func (c *Code) UnmarshalJSON(data []byte) error {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}

	code, err := r.ToCode()
	if err != nil {
		return err
	}

	*c = code

	return nil
}
