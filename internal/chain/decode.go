package chain

import (
	"bytes"
	"encoding/json"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"stockwatch/pkg/models"
)

// Vendor payloads are loose about types: stock flags arrive as 1/0,
// true/false or "1"; ids and prices as numbers or strings. These helpers
// accept every form seen on the wire.

type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	switch strings.ToLower(s) {
	case "1", "true", "yes":
		*b = true
	default:
		// 0, false, null, "" and anything unexpected mean out of stock
		*b = false
	}
	return nil
}

type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	*f = flexString(string(data))
	return nil
}

type flexDecimal struct {
	decimal.NullDecimal
}

func (f *flexDecimal) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" || s == "N/A" {
		f.NullDecimal = decimal.NullDecimal{}
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		// an unparseable price is treated as missing, not zero
		f.NullDecimal = decimal.NullDecimal{}
		return nil
	}
	f.NullDecimal = decimal.NewNullDecimal(d)
	return nil
}

// flexNumber is a display-only number. Anything that does not parse as a
// number ("10%", "muchos", objects) becomes N/A instead of failing the payload.
type flexNumber struct {
	models.NumberOrNA
}

func (f *flexNumber) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(strings.Trim(string(bytes.TrimSpace(data)), `"`))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		f.NumberOrNA = models.NumberOrNA{}
		return nil
	}
	f.NumberOrNA = models.Number(v)
	return nil
}

// localizedText is either a plain string or a {locale: text} object.
type localizedText struct {
	plain string
	byLoc map[string]string
}

func (l *localizedText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		return json.Unmarshal(data, &l.byLoc)
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	l.plain = s
	return nil
}

func (l localizedText) In(locale string) string {
	if l.plain != "" {
		return l.plain
	}
	if v := l.byLoc[locale]; v != "" {
		return v
	}
	if i := strings.IndexByte(locale, '-'); i > 0 {
		if v := l.byLoc[locale[:i]]; v != "" {
			return v
		}
	}
	keys := make([]string, 0, len(l.byLoc))
	for k := range l.byLoc {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if v := l.byLoc[k]; v != "" {
			return v
		}
	}
	return ""
}

func centsToUnits(c flexDecimal) decimal.NullDecimal {
	if !c.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(c.Decimal.Div(decimal.NewFromInt(100)))
}
