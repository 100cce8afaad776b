package main

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commentpkg "github.com/stormhead-org/fairway/internal/comment"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want commandLine
	}{
		{"Great round today", commandLine{name: "post", text: "Great round today"}},
		{"/reply c1 Thanks!", commandLine{name: "reply", id: "c1", text: "Thanks!"}},
		{"/edit c1   Fixed typo ", commandLine{name: "edit", id: "c1", text: "Fixed typo"}},
		{"/delete c1", commandLine{name: "delete", id: "c1"}},
		{"/like c2", commandLine{name: "like", id: "c2"}},
	}
	for _, tt := range tests {
		got, err := parseLine(tt.line)
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}

	for _, line := range []string{"/reply c1", "/edit", "/delete", "/like", "/shout hi"} {
		_, err := parseLine(line)
		assert.Error(t, err, line)
	}
}

func TestPrintThread(t *testing.T) {
	root := commentpkg.Comment{ID: "c1", AuthorID: "alice", Content: "Par", ReplyCount: 1, CreatedAt: time.Unix(1, 0)}
	reply := commentpkg.Comment{ID: "pending-1", AuthorID: "bob", Content: "Nice", ParentID: "c1", Depth: 1, IsPending: true, CreatedAt: time.Unix(2, 0)}
	comments := []commentpkg.Comment{root, reply}

	var out bytes.Buffer
	printThread(&out, commentpkg.State{Comments: comments, Tree: commentpkg.BuildTree(comments)})

	assert.Contains(t, out.String(), "--- 2 comments")
	assert.Contains(t, out.String(), "[c1] alice: Par")
	assert.Contains(t, out.String(), "  [pending-1] bob: Nice")
	assert.Contains(t, out.String(), "(sending)")
}

func TestDescribeError(t *testing.T) {
	err := fmt.Errorf("submit: %w", &commentpkg.RateLimitedError{Remaining: 6500 * time.Millisecond})
	assert.Equal(t, "slow down, you can comment again in 7 seconds", describeError(err))
}
