// Package avl provides a case-insensitive ordered string dictionary backed by
// a self-balancing AVL tree.
package avl

import (
	"errors"
	"strings"
)

// Errors returned by tree operations. All of them are recoverable.
var (
	ErrDuplicateKey = errors.New("avl: duplicate key")
	ErrKeyNotFound  = errors.New("avl: key not found")
	ErrNotFound     = errors.New("avl: no match for prefix")
)

// Node is a single entry in the tree.
type Node[V any] struct {
	Key   string
	Value V

	left, right *Node[V]
	height      int
}

// Tree maps case-insensitively unique string keys to values of type V.
// The zero value is an empty tree. A Tree is not safe for concurrent use.
type Tree[V any] struct {
	root *Node[V]
	n    int
}

// Len returns the number of keys in the tree.
func (t *Tree[V]) Len() int {
	return t.n
}

// Height returns the height of the tree; an empty tree has height 0.
func (t *Tree[V]) Height() int {
	return height(t.root)
}

// Insert adds key with value. If a key equal under case-insensitive comparison
// already exists, the tree is left unchanged and ErrDuplicateKey is returned.
func (t *Tree[V]) Insert(key string, value V) error {
	root, err := insert(t.root, key, value)
	if err != nil {
		return err
	}
	t.root = root
	t.n++
	return nil
}

// Remove deletes the node matching key case-insensitively.
// Returns ErrKeyNotFound without modifying the tree if no such node exists.
func (t *Tree[V]) Remove(key string) error {
	root, err := remove(t.root, key)
	if err != nil {
		return err
	}
	t.root = root
	t.n--
	return nil
}

// Get returns the value stored under key.
func (t *Tree[V]) Get(key string) (V, bool) {
	n := t.root
	for n != nil {
		switch c := compare(key, n.Key); {
		case c < 0:
			n = n.left
		case c > 0:
			n = n.right
		default:
			return n.Value, true
		}
	}
	var zero V
	return zero, false
}

// FindPrefix searches for a node whose key starts with prefix, ignoring case.
//
// The search is a plain descent that compares only the first len(prefix)
// bytes of each key, so it returns the first match reached on the way down.
// That node is not necessarily the lexicographically smallest key carrying
// the prefix.
func (t *Tree[V]) FindPrefix(prefix string) (*Node[V], error) {
	n := t.root
	for n != nil {
		switch c := comparePrefix(prefix, n.Key); {
		case c < 0:
			n = n.left
		case c > 0:
			n = n.right
		default:
			return n, nil
		}
	}
	return nil, ErrNotFound
}

// Walk visits every node in key order until fn returns false.
func (t *Tree[V]) Walk(fn func(*Node[V]) bool) {
	walk(t.root, fn)
}

// Keys returns all keys in order.
func (t *Tree[V]) Keys() []string {
	keys := make([]string, 0, t.n)
	t.Walk(func(n *Node[V]) bool {
		keys = append(keys, n.Key)
		return true
	})
	return keys
}

// Clear releases every node.
func (t *Tree[V]) Clear() {
	release(t.root)
	t.root = nil
	t.n = 0
}

func walk[V any](n *Node[V], fn func(*Node[V]) bool) bool {
	if n == nil {
		return true
	}
	return walk(n.left, fn) && fn(n) && walk(n.right, fn)
}

// release detaches nodes post-order so values held by the tree become
// unreachable together with it.
func release[V any](n *Node[V]) {
	if n == nil {
		return
	}
	release(n.left)
	release(n.right)
	var zero V
	n.left, n.right, n.Value = nil, nil, zero
}

func compare(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// comparePrefix compares prefix against the first len(prefix) bytes of key.
func comparePrefix(prefix, key string) int {
	if len(key) > len(prefix) {
		key = key[:len(prefix)]
	}
	return compare(prefix, key)
}

func height[V any](n *Node[V]) int {
	if n == nil {
		return 0
	}
	return n.height
}

func (n *Node[V]) update() {
	n.height = max(height(n.left), height(n.right)) + 1
}

func (n *Node[V]) balance() int {
	return height(n.left) - height(n.right)
}

// rotateRight rotates root r with pivot p:
//
//	    r          p
//	   / \   ->   / \
//	  p   c      a   r
//	 / \            / \
//	a   b          b   c
func rotateRight[V any](r *Node[V]) *Node[V] {
	p := r.left
	r.left = p.right
	p.right = r
	r.update()
	p.update()
	return p
}

// rotateLeft rotates root r with pivot p:
//
//	  r            p
//	 / \    ->    / \
//	a   p        r   c
//	   / \      / \
//	  b   c    a   b
func rotateLeft[V any](r *Node[V]) *Node[V] {
	p := r.right
	r.right = p.left
	p.left = r
	r.update()
	p.update()
	return p
}

func insert[V any](n *Node[V], key string, value V) (*Node[V], error) {
	if n == nil {
		return &Node[V]{Key: key, Value: value, height: 1}, nil
	}

	var err error
	switch c := compare(key, n.Key); {
	case c == 0:
		return nil, ErrDuplicateKey
	case c > 0:
		var r *Node[V]
		if r, err = insert(n.right, key, value); err != nil {
			return nil, err
		}
		n.right = r
	default:
		var l *Node[V]
		if l, err = insert(n.left, key, value); err != nil {
			return nil, err
		}
		n.left = l
	}

	n.update()

	switch b := n.balance(); {
	case b > 1:
		if compare(key, n.left.Key) > 0 {
			n.left = rotateLeft(n.left)
		}
		return rotateRight(n), nil
	case b < -1:
		if compare(n.right.Key, key) > 0 {
			n.right = rotateRight(n.right)
		}
		return rotateLeft(n), nil
	}
	return n, nil
}

func remove[V any](n *Node[V], key string) (*Node[V], error) {
	if n == nil {
		return nil, ErrKeyNotFound
	}

	var err error
	switch c := compare(key, n.Key); {
	case c == 0:
		if n.left == nil || n.right == nil {
			child := n.left
			if child == nil {
				child = n.right
			}
			n.left, n.right = nil, nil
			return child, nil
		}

		// Two children: swap with the in-order successor, then remove the
		// successor's old position from the right subtree.
		next := n.right
		for next.left != nil {
			next = next.left
		}
		n.Key, next.Key = next.Key, n.Key
		n.Value, next.Value = next.Value, n.Value

		var r *Node[V]
		if r, err = remove(n.right, key); err != nil {
			return nil, err
		}
		n.right = r
	case c > 0:
		var r *Node[V]
		if r, err = remove(n.right, key); err != nil {
			return nil, err
		}
		n.right = r
	default:
		var l *Node[V]
		if l, err = remove(n.left, key); err != nil {
			return nil, err
		}
		n.left = l
	}

	n.update()

	switch b := n.balance(); {
	case b > 1:
		if n.left.balance() < 0 {
			n.left = rotateLeft(n.left)
		}
		return rotateRight(n), nil
	case b < -1:
		if n.right.balance() > 0 {
			n.right = rotateRight(n.right)
		}
		return rotateLeft(n), nil
	}
	return n, nil
}
