package store

import (
	"fmt"
	"strings"
)

// AttrCondType selects how an attribute condition matches.
type AttrCondType int

const (
	AttrCondEq AttrCondType = iota
	AttrCondLike
)

// AttrCond matches one attribute (or special field) against an expression.
// LIKE expressions use "*" as the wildcard.
type AttrCond struct {
	Schema     string
	Type       AttrCondType
	Expression string
}

// AnyTypeCond restricts a search to one any-type.
type AnyTypeCond struct {
	AnyTypeKey string
}

// SearchCond is a node of a condition tree: either a leaf (attribute or
// any-type condition) or a conjunction of two subtrees. A nil *SearchCond
// matches everything.
type SearchCond struct {
	Attr    *AttrCond
	AnyType *AnyTypeCond
	Left    *SearchCond
	Right   *SearchCond
}

func LeafCond(attr *AttrCond) *SearchCond {
	return &SearchCond{Attr: attr}
}

func AnyTypeLeafCond(anyTypeKey string) *SearchCond {
	return &SearchCond{AnyType: &AnyTypeCond{AnyTypeKey: anyTypeKey}}
}

func AndCond(left, right *SearchCond) *SearchCond {
	return &SearchCond{Left: left, Right: right}
}

func (c *SearchCond) IsAnd() bool {
	return c != nil && c.Left != nil && c.Right != nil
}

// ConvertSearchCond parses a FIQL-flavored condition string into a
// condition tree. Terms are "attr==expression", joined by ";" (AND); an
// expression containing "*" matches as a wildcard pattern.
func ConvertSearchCond(fiql string) (*SearchCond, error) {
	fiql = strings.TrimSpace(fiql)
	if fiql == "" {
		return nil, nil
	}

	var cond *SearchCond
	for _, term := range strings.Split(fiql, ";") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}

		schema, expr, found := strings.Cut(term, "==")
		if !found || schema == "" || expr == "" {
			return nil, fmt.Errorf("invalid search condition term %q", term)
		}

		condType := AttrCondEq
		if strings.Contains(expr, "*") {
			condType = AttrCondLike
		}

		leaf := LeafCond(&AttrCond{Schema: schema, Type: condType, Expression: expr})
		if cond == nil {
			cond = leaf
		} else {
			cond = AndCond(cond, leaf)
		}
	}

	if cond == nil {
		return nil, fmt.Errorf("invalid search condition %q", fiql)
	}
	return cond, nil
}
