package operator

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kzar79/massive-go/query"
)

// Kind is the semantic operator of a resolved predicate.
type Kind int

const (
	Equal Kind = iota
	NotEqual
	Greater
	GreaterOrEqual
	Less
	LessOrEqual
	In
	NotIn
	IsNull
	IsNotNull
	Contains
	ContainedBy
	Overlaps
	// MatchNone and MatchAll stand in for IN and NOT IN over an empty list.
	MatchNone
	MatchAll
)

var kindSQL = map[Kind]string{
	Equal:          "=",
	NotEqual:       "<>",
	Greater:        ">",
	GreaterOrEqual: ">=",
	Less:           "<",
	LessOrEqual:    "<=",
	In:             "IN",
	NotIn:          "NOT IN",
	IsNull:         "IS NULL",
	IsNotNull:      "IS NOT NULL",
	Contains:       "@>",
	ContainedBy:    "<@",
	Overlaps:       "&&",
	MatchNone:      "1=0",
	MatchAll:       "1=1",
}

// SQL returns the operator text.
func (k Kind) SQL() string {
	return kindSQL[k]
}

func (k Kind) String() string {
	return k.SQL()
}

// IsArray reports whether k is an array set operator.
func (k Kind) IsArray() bool {
	return k == Contains || k == ContainedBy || k == Overlaps
}

// Form describes how the right-hand side of an array operator is bound.
type Form int

const (
	FormNone Form = iota
	// FormLiteral binds a caller-written array literal such as '{a,b}'.
	FormLiteral
	// FormList renders Values as an array literal.
	FormList
	// FormJSON binds Value as a JSON document for jsonb containment.
	FormJSON
	// FormValue binds a driver.Valuer unchanged.
	FormValue
)

// Resolution is a descriptor entry resolved to an operator and operands.
type Resolution struct {
	Key    Key
	Kind   Kind
	Form   Form
	Value  any
	Values []any
}

var comparisons = map[Token]Kind{
	TokenGreater:   Greater,
	TokenGreaterEq: GreaterOrEqual,
	TokenLess:      Less,
	TokenLessEq:    LessOrEqual,
}

var arrayOps = map[Token]Kind{
	TokenContains:    Contains,
	TokenContainedBy: ContainedBy,
	TokenOverlaps:    Overlaps,
}

// Resolve maps a parsed key and its value to an operator. JSON extraction
// takes precedence, then array operators, then comparisons, then equality.
func Resolve(key Key, value any) (Resolution, error) {
	if key.Column == "" {
		return Resolution{}, shapeError(key, "empty column name")
	}
	shape, items := query.Classify(value)
	if shape == query.ShapeObject && !key.Token.IsArray() {
		return Resolution{}, shapeError(key, "object values are only accepted by @> and <@")
	}

	switch {
	case key.IsJSON():
		return resolveJSON(key, value, shape, items)
	case key.Token.IsArray():
		return resolveArray(key, value, shape, items)
	}
	return resolveScalar(key, value, shape, items)
}

func resolveJSON(key Key, value any, shape query.Shape, items []any) (Resolution, error) {
	if key.Token.IsArray() {
		return Resolution{}, shapeError(key, "array operators cannot follow JSON text extraction")
	}
	switch shape {
	case query.ShapeScalar:
		text, err := Text(value)
		if err != nil {
			return Resolution{}, shapeError(key, err.Error())
		}
		value = text
	case query.ShapeList:
		texts := make([]any, len(items))
		for i, item := range items {
			if item == nil {
				continue
			}
			text, err := Text(item)
			if err != nil {
				return Resolution{}, shapeError(key, err.Error())
			}
			texts[i] = text
		}
		items = texts
	}
	return resolveScalar(key, value, shape, items)
}

func resolveArray(key Key, value any, shape query.Shape, items []any) (Resolution, error) {
	kind := arrayOps[key.Token]
	r := Resolution{Key: key, Kind: kind}

	switch shape {
	case query.ShapeNull:
		return Resolution{}, shapeError(key, "array operators require a value")
	case query.ShapeList:
		r.Form = FormList
		r.Values = items
	case query.ShapeObject:
		if kind == Overlaps {
			return Resolution{}, shapeError(key, "&& does not accept an object")
		}
		doc, err := json.Marshal(value)
		if err != nil {
			return Resolution{}, shapeError(key, err.Error())
		}
		r.Form = FormJSON
		r.Value = string(doc)
	default:
		switch v := value.(type) {
		case string:
			r.Form = FormLiteral
			r.Value = v
		case driver.Valuer:
			r.Form = FormValue
			r.Value = v
		default:
			return Resolution{}, shapeError(key, fmt.Sprintf("array operators need a list or an array literal, got %T", value))
		}
	}
	return r, nil
}

func resolveScalar(key Key, value any, shape query.Shape, items []any) (Resolution, error) {
	r := Resolution{Key: key}

	if kind, ok := comparisons[key.Token]; ok {
		if shape != query.ShapeScalar {
			return Resolution{}, shapeError(key, fmt.Sprintf("%s requires a scalar, got %s", key.Token, shape))
		}
		r.Kind = kind
		r.Value = value
		return r, nil
	}

	negated := key.Token.IsNegation()
	switch shape {
	case query.ShapeNull:
		r.Kind = IsNull
		if negated {
			r.Kind = IsNotNull
		}
	case query.ShapeList:
		r.Values = items
		switch {
		case negated && len(items) == 0:
			r.Kind = MatchAll
		case negated:
			r.Kind = NotIn
		case len(items) == 0:
			r.Kind = MatchNone
		default:
			r.Kind = In
		}
	default:
		r.Kind = Equal
		if negated {
			r.Kind = NotEqual
		}
		r.Value = value
	}
	return r, nil
}

// Text renders a scalar the way PostgreSQL's ->> operator would print it.
func Text(v any) (string, error) {
	if valuer, ok := v.(driver.Valuer); ok {
		dv, err := valuer.Value()
		if err != nil {
			return "", err
		}
		if dv == nil {
			return "", fmt.Errorf("cannot compare extracted text with NULL valuer")
		}
		v = dv
	}
	switch val := v.(type) {
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int8, int16, int32, int64:
		return fmt.Sprintf("%d", val), nil
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case fmt.Stringer:
		return val.String(), nil
	}
	return fmt.Sprint(v), nil
}

func shapeError(key Key, reason string) error {
	return &query.PredicateShapeError{Key: key.Raw, Reason: reason}
}
