package control

import (
	"fmt"
	"strconv"
)

// Desc is a plain description of a node, suited to encoding as JSON or
// comparing two trees
type Desc struct {
	Base
	Kind     string      `json:"kind"`
	Value    interface{} `json:"value,omitempty"`
	Choices  []string    `json:"choices,omitempty"`
	Min      float32     `json:"min,omitempty"`
	Max      float32     `json:"max,omitempty"`
	Step     float32     `json:"step,omitempty"`
	Children []Desc      `json:"children,omitempty"`
}

// Describe returns the description of n and its descendants
func Describe(n Node) Desc {
	d := Desc{Base: *n.Common(), Kind: n.Kind().String()}
	switch v := n.(type) {
	case *Group:
		d.Children = make([]Desc, 0, len(v.children))
		for _, c := range v.children {
			d.Children = append(d.Children, Describe(c))
		}
	case *Choice:
		d.Value = v.value
		d.Choices = append([]string(nil), v.Choices...)
	case *Range:
		d.Value = v.value
		d.Min, d.Max, d.Step = v.Min, v.Max, v.Step
	case *Text:
		d.Value = v.value
	case *Toggle:
		d.Value = v.value
	case *Date:
		d.Value = v.value
	}
	return d
}

// SetString parses s according to the kind of n and sets its value.
// Only Choice, Range, Text and Toggle can be set.
func SetString(n Node, s string) error {
	switch v := n.(type) {
	case *Choice:
		return v.SetValue(s)
	case *Text:
		return v.SetValue(s)
	case *Range:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return err
		}
		return v.SetValue(float32(f))
	case *Toggle:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		return v.SetValue(b)
	}
	return fmt.Errorf("%s controls can not be set", n.Kind())
}
