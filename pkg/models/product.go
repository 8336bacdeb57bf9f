package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Product is the normalized, chain independent form of a tracked item.
//
// Every chain adapter maps its vendor payload into this structure first;
// the diff engine and the snapshot store only ever see Products.
type Product struct {
	ProductID         string                 `json:"productId"`
	Name              string                 `json:"name"`
	ImageURL          string                 `json:"imageUrl"`
	StoreDetail       map[string]StoreDetail `json:"storeDetail"`
	AvailableAnywhere bool                   `json:"availableAnywhere"`
}

// StoreDetail is the per-store inventory view of a product.
// Values the vendor leaves out stay null / "N/A"; they are never coerced to 0.
type StoreDetail struct {
	HasInventory    bool                `json:"hasInventory"`
	BasePrice       decimal.NullDecimal `json:"basePrice"`
	UnitPrice       decimal.NullDecimal `json:"unitPrice"`
	HasDiscount     bool                `json:"hasDiscount"`
	PercentDiscount NumberOrNA          `json:"percentDiscount"`
	Hall            TextOrNA            `json:"hall"`
	Quantity        NumberOrNA          `json:"quantity"`
}

// Store is one physical store of a chain.
type Store struct {
	StoreID string `json:"storeId"`
	Name    string `json:"name"`
}

// Snapshot is the last observed availability of a chain, keyed by product id.
type Snapshot map[string]Product

// AnyInStock reports whether any store in scope has inventory. A nil scope
// means every store counts.
func (p Product) AnyInStock(scope map[string]struct{}) bool {
	for storeID, d := range p.StoreDetail {
		if !d.HasInventory {
			continue
		}
		if scope == nil {
			return true
		}
		if _, ok := scope[storeID]; ok {
			return true
		}
	}
	return false
}

// NotAvailable is the sentinel the vendors' UI uses for unknown values.
const NotAvailable = "N/A"

// NumberOrNA is a number that serializes to "N/A" when unknown.
type NumberOrNA struct {
	Value float64
	Valid bool
}

// Number returns a known NumberOrNA.
func Number(v float64) NumberOrNA { return NumberOrNA{Value: v, Valid: true} }

func (n NumberOrNA) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return json.Marshal(NotAvailable)
	}
	return json.Marshal(n.Value)
}

func (n *NumberOrNA) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = NumberOrNA{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == NotAvailable || s == "" {
			*n = NumberOrNA{}
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("number or N/A: %q", s)
		}
		*n = Number(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = Number(v)
	return nil
}

func (n NumberOrNA) String() string {
	if !n.Valid {
		return NotAvailable
	}
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}

// TextOrNA is a string that serializes to "N/A" when unknown.
type TextOrNA struct {
	Value string
	Valid bool
}

// Text returns a known TextOrNA. Empty strings and "N/A" stay unknown.
func Text(s string) TextOrNA { return TextOrNA{Value: s, Valid: s != "" && s != NotAvailable} }

func (t TextOrNA) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return json.Marshal(NotAvailable)
	}
	return json.Marshal(t.Value)
}

func (t *TextOrNA) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil || *s == NotAvailable {
		*t = TextOrNA{}
		return nil
	}
	*t = Text(*s)
	return nil
}

func (t TextOrNA) String() string {
	if !t.Valid {
		return NotAvailable
	}
	return t.Value
}
