package analytics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AttributeKind tags the variant held by an AttributeValue
type AttributeKind uint8

const (
	AttributeNull AttributeKind = iota
	AttributeString
	AttributeNumber
	AttributeBool
	AttributeMap
)

func (k AttributeKind) String() string {
	switch k {
	case AttributeNull:
		return "null"
	case AttributeString:
		return "string"
	case AttributeNumber:
		return "number"
	case AttributeBool:
		return "bool"
	case AttributeMap:
		return "map"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// AttributeValue is a flexible product attribute: string, number, bool,
// null or a nested map of further attributes. The zero value is null.
type AttributeValue struct {
	kind AttributeKind
	str  string
	num  decimal.Decimal
	b    bool
	m    Attributes
}

// Attributes is a named set of attribute values
type Attributes map[string]AttributeValue

func NullAttr() AttributeValue           { return AttributeValue{} }
func StringAttr(s string) AttributeValue { return AttributeValue{kind: AttributeString, str: s} }
func NumberAttr(n decimal.Decimal) AttributeValue {
	return AttributeValue{kind: AttributeNumber, num: n}
}
func BoolAttr(b bool) AttributeValue      { return AttributeValue{kind: AttributeBool, b: b} }
func MapAttr(m Attributes) AttributeValue { return AttributeValue{kind: AttributeMap, m: m} }

// Kind returns the variant tag
func (v AttributeValue) Kind() AttributeKind { return v.kind }

// IsNull reports whether the value is null
func (v AttributeValue) IsNull() bool { return v.kind == AttributeNull }

func (v AttributeValue) AsString() (string, bool) {
	return v.str, v.kind == AttributeString
}

func (v AttributeValue) AsNumber() (decimal.Decimal, bool) {
	return v.num, v.kind == AttributeNumber
}

func (v AttributeValue) AsBool() (bool, bool) {
	return v.b, v.kind == AttributeBool
}

func (v AttributeValue) AsMap() (Attributes, bool) {
	return v.m, v.kind == AttributeMap
}

// Equal compares two values structurally
func (v AttributeValue) Equal(o AttributeValue) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case AttributeString:
		return v.str == o.str
	case AttributeNumber:
		return v.num.Equal(o.num)
	case AttributeBool:
		return v.b == o.b
	case AttributeMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, av := range v.m {
			bv, ok := o.m[k]
			if !ok || !av.Equal(bv) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// MarshalJSON encodes the value as its natural JSON form. Numbers keep their
// exact decimal representation and map keys are emitted in sorted order.
func (v AttributeValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case AttributeNull:
		return []byte("null"), nil
	case AttributeString:
		return json.Marshal(v.str)
	case AttributeNumber:
		return []byte(v.num.String()), nil
	case AttributeBool:
		return json.Marshal(v.b)
	case AttributeMap:
		if v.m == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(map[string]AttributeValue(v.m))
	default:
		return nil, fmt.Errorf("unknown attribute kind %d", v.kind)
	}
}

// UnmarshalJSON decodes any JSON scalar or object. Arrays are rejected.
func (v *AttributeValue) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := attributeFromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func attributeFromAny(raw any) (AttributeValue, error) {
	switch val := raw.(type) {
	case nil:
		return NullAttr(), nil
	case string:
		return StringAttr(val), nil
	case bool:
		return BoolAttr(val), nil
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return AttributeValue{}, fmt.Errorf("invalid attribute number %q: %w", val, err)
		}
		return NumberAttr(d), nil
	case map[string]any:
		m := make(Attributes, len(val))
		for k, item := range val {
			av, err := attributeFromAny(item)
			if err != nil {
				return AttributeValue{}, fmt.Errorf("attribute %q: %w", k, err)
			}
			m[k] = av
		}
		return MapAttr(m), nil
	default:
		return AttributeValue{}, fmt.Errorf("unsupported attribute value of type %T", raw)
	}
}

// ProductCatalogEntry is the document-store view of a product with its
// free-form attributes
type ProductCatalogEntry struct {
	ProductID  uuid.UUID  `json:"product_id"`
	Name       string     `json:"name"`
	Attributes Attributes `json:"attributes"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
