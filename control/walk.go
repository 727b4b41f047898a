package control

import "errors"

// ErrStop may be returned by a WalkFunc to end a walk early without error
var ErrStop = errors.New("stop walk")

// WalkFunc is called for each node of a tree
type WalkFunc func(n Node) error

// Walk visits n and its descendants depth first, parents before children
func Walk(n Node, fn WalkFunc) error {
	err := walk(n, fn)
	if err == ErrStop {
		return nil
	}
	return err
}

func walk(n Node, fn WalkFunc) error {
	if n == nil {
		return nil
	}
	if err := fn(n); err != nil {
		return err
	}
	if g, ok := n.(*Group); ok {
		for _, c := range g.children {
			if err := walk(c, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Find returns the node with the given path, or nil
func Find(root Node, path string) Node {
	var out Node
	Walk(root, func(n Node) error {
		if n.Common().Path == path {
			out = n
			return ErrStop
		}
		return nil
	})
	return out
}

// FindByID returns the first node with the given device id, or nil
func FindByID(root Node, id int) Node {
	var out Node
	Walk(root, func(n Node) error {
		if n.Common().ID == id {
			out = n
			return ErrStop
		}
		return nil
	})
	return out
}
