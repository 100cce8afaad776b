package comment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingComment(id string, token string, content string) Pending {
	return Pending{
		Comment: Comment{
			ID:          id,
			AuthorID:    "alice",
			Content:     content,
			ClientToken: token,
			IsPending:   true,
		},
	}
}

func TestReconcileMatchesClientToken(t *testing.T) {
	confirmed := []Comment{
		{ID: "c1", AuthorID: "alice", Content: "Nice shot", ClientToken: "t1"},
	}
	pending := []Pending{pendingComment("pending-1", "t1", "Nice shot")}

	visible, unmatched := Reconcile("alice", confirmed, pending, NewOverlays())

	require.Len(t, visible, 1)
	assert.Equal(t, "c1", visible[0].ID)
	assert.False(t, visible[0].IsPending)
	assert.Empty(t, unmatched)
}

func TestReconcileTokenMismatchKeepsPending(t *testing.T) {
	// Same author and content, but the record carries a different token.
	confirmed := []Comment{
		{ID: "c1", AuthorID: "alice", Content: "Nice shot", ClientToken: "other"},
	}
	pending := []Pending{pendingComment("pending-1", "t1", "Nice shot")}

	visible, unmatched := Reconcile("alice", confirmed, pending, NewOverlays())

	require.Len(t, visible, 2)
	assert.True(t, visible[1].IsPending)
	require.Len(t, unmatched, 1)
}

func TestReconcileFallsBackToAuthorAndContent(t *testing.T) {
	confirmed := []Comment{
		{ID: "c1", AuthorID: "alice", Content: "Nice shot"},
	}
	pending := []Pending{pendingComment("pending-1", "t1", "Nice shot")}

	visible, unmatched := Reconcile("alice", confirmed, pending, NewOverlays())

	require.Len(t, visible, 1)
	assert.Equal(t, "c1", visible[0].ID)
	assert.Empty(t, unmatched)
}

func TestReconcileIgnoresPreexistingLookalikes(t *testing.T) {
	confirmed := []Comment{
		{ID: "old", AuthorID: "alice", Content: "Nice shot"},
	}
	p := pendingComment("pending-1", "t1", "Nice shot")
	p.Preexisting = map[string]struct{}{"old": {}}

	visible, unmatched := Reconcile("alice", confirmed, []Pending{p}, NewOverlays())

	require.Len(t, visible, 2)
	assert.Equal(t, "old", visible[0].ID)
	assert.Equal(t, "pending-1", visible[1].ID)
	assert.Len(t, unmatched, 1)
}

func TestReconcileConfirmsAtMostOnePendingPerRecord(t *testing.T) {
	confirmed := []Comment{
		{ID: "c1", AuthorID: "alice", Content: "Again"},
	}
	pending := []Pending{
		pendingComment("pending-1", "t1", "Again"),
		pendingComment("pending-2", "t2", "Again"),
	}

	visible, unmatched := Reconcile("alice", confirmed, pending, NewOverlays())

	require.Len(t, visible, 2)
	assert.Equal(t, "c1", visible[0].ID)
	assert.Equal(t, "pending-2", visible[1].ID)
	require.Len(t, unmatched, 1)
	assert.Equal(t, "pending-2", unmatched[0].Comment.ID)
}

func TestReconcileAppendsPendingLast(t *testing.T) {
	later := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	confirmed := []Comment{
		{ID: "c1", AuthorID: "bob", Content: "First", CreatedAt: later.Add(time.Hour)},
	}
	p := pendingComment("pending-1", "t1", "Mine")
	p.Comment.CreatedAt = later

	visible, _ := Reconcile("alice", confirmed, []Pending{p}, NewOverlays())

	require.Len(t, visible, 2)
	assert.Equal(t, "c1", visible[0].ID)
	assert.Equal(t, "pending-1", visible[1].ID)
}

func TestReconcileAppliesOverlays(t *testing.T) {
	confirmed := []Comment{
		{ID: "c1", AuthorID: "alice", Content: "Typo"},
		{ID: "c2", AuthorID: "alice", Content: "Remove me"},
		{ID: "c3", AuthorID: "bob", Content: "Like me", LikeCount: 2, LikedBy: []string{"carol", "dave"}},
	}
	overlays := NewOverlays()
	overlays.Edits["c1"] = EditOverlay{Content: "Fixed", Seq: 1}
	overlays.Deletes["c2"] = DeleteOverlay{Seq: 2}
	overlays.Likes["c3"] = LikeOverlay{Liked: true, Seq: 3}

	visible, _ := Reconcile("alice", confirmed, nil, overlays)

	require.Len(t, visible, 2)
	assert.Equal(t, "Fixed", visible[0].Content)
	assert.Equal(t, "c3", visible[1].ID)
	assert.Equal(t, 3, visible[1].LikeCount)
	assert.True(t, visible[1].LikedByUser("alice"))

	// The confirmed cache is never mutated by overlays.
	assert.Equal(t, "Typo", confirmed[0].Content)
	assert.Len(t, confirmed[2].LikedBy, 2)
}

func TestOverlaysSettle(t *testing.T) {
	acked := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	confirmed := []Comment{
		{ID: "c1", Content: "Fixed"},
		{ID: "c3", LikedBy: []string{"alice"}},
		{ID: "c4", Content: "Stale"},
	}

	overlays := NewOverlays()
	overlays.Edits["c1"] = EditOverlay{Content: "Fixed", AckedAt: acked}
	overlays.Edits["c4"] = EditOverlay{Content: "New", AckedAt: acked}
	overlays.Deletes["c2"] = DeleteOverlay{AckedAt: acked}
	overlays.Likes["c3"] = LikeOverlay{Liked: true, AckedAt: acked}

	settled := overlays.Settle("alice", confirmed)

	assert.NotContains(t, settled.Edits, "c1")
	assert.Contains(t, settled.Edits, "c4")
	assert.Empty(t, settled.Deletes)
	assert.Empty(t, settled.Likes)
}

func TestOverlaysSettleKeepsUnacknowledged(t *testing.T) {
	confirmed := []Comment{{ID: "c1", Content: "Fixed"}}

	overlays := NewOverlays()
	overlays.Edits["c1"] = EditOverlay{Content: "Fixed"}

	settled := overlays.Settle("alice", confirmed)
	assert.Contains(t, settled.Edits, "c1")
}

func TestOverlaysExpire(t *testing.T) {
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

	overlays := NewOverlays()
	overlays.Edits["old"] = EditOverlay{AckedAt: now.Add(-time.Minute)}
	overlays.Edits["fresh"] = EditOverlay{AckedAt: now.Add(-time.Second)}
	overlays.Likes["inflight"] = LikeOverlay{Liked: true}

	kept, expired := overlays.Expire(now, 30*time.Second)

	assert.Equal(t, 1, expired)
	assert.Equal(t, 2, kept.Len())
	assert.Contains(t, kept.Edits, "fresh")
	assert.Contains(t, kept.Likes, "inflight")
}
