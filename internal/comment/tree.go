package comment

import (
	"errors"
	"fmt"
)

var ErrDepthMismatch = errors.New("depth does not match parent chain")

// Tree is the render projection of a flat comment list. It owns nothing and is rebuilt
// from scratch on every change.
type Tree struct {
	TopLevel []Comment
	Replies  map[string][]Comment
}

// BuildTree partitions comments into top-level entries and replies grouped by parent id,
// preserving input order within every group. Depth is taken from the comments as stored.
func BuildTree(comments []Comment) Tree {
	tree := Tree{
		TopLevel: []Comment{},
		Replies:  make(map[string][]Comment),
	}
	for _, c := range comments {
		if c.ParentID == "" {
			tree.TopLevel = append(tree.TopLevel, c)
			continue
		}
		tree.Replies[c.ParentID] = append(tree.Replies[c.ParentID], c)
	}
	return tree
}

func (t Tree) RepliesTo(commentID string) []Comment {
	return t.Replies[commentID]
}

// Walk visits comments depth-first in display order. Replies whose ancestors are not in
// the tree are never reached.
func (t Tree) Walk(visit func(c Comment, level int)) {
	visited := make(map[string]struct{})
	var walk func(c Comment, level int)
	walk = func(c Comment, level int) {
		if _, ok := visited[c.ID]; ok {
			return
		}
		visited[c.ID] = struct{}{}
		visit(c, level)
		for _, reply := range t.Replies[c.ID] {
			walk(reply, level+1)
		}
	}
	for _, c := range t.TopLevel {
		walk(c, 0)
	}
}

// VerifyDepths checks the stored depth of every comment against its parent chain.
// Comments whose parent is not in the list are skipped.
func VerifyDepths(comments []Comment) error {
	byID := make(map[string]Comment, len(comments))
	for _, c := range comments {
		byID[c.ID] = c
	}

	for _, c := range comments {
		if c.ParentID == "" {
			if c.Depth != 0 {
				return fmt.Errorf("%w: comment %s is top-level with depth %d", ErrDepthMismatch, c.ID, c.Depth)
			}
			continue
		}
		parent, ok := byID[c.ParentID]
		if !ok {
			continue
		}
		if c.Depth != parent.Depth+1 {
			return fmt.Errorf("%w: comment %s has depth %d, parent %s has depth %d", ErrDepthMismatch, c.ID, c.Depth, parent.ID, parent.Depth)
		}
	}
	return nil
}
