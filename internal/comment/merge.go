package comment

import (
	"slices"
	"time"
)

// Pending is a locally created comment the store has not yet shown in a snapshot.
type Pending struct {
	Comment Comment
	// Preexisting holds confirmed ids that looked identical when the entry was created;
	// they can never confirm it.
	Preexisting map[string]struct{}
	// AckedAt is set once the store accepted the write.
	AckedAt time.Time
}

type EditOverlay struct {
	Content string
	Seq     uint64
	AckedAt time.Time
}

type DeleteOverlay struct {
	Seq     uint64
	AckedAt time.Time
}

type LikeOverlay struct {
	Liked   bool
	Seq     uint64
	AckedAt time.Time
}

// Overlays are in-flight optimistic intents on confirmed comments, applied on top of
// the confirmed cache until a snapshot reflects them or the write fails.
type Overlays struct {
	Edits   map[string]EditOverlay
	Deletes map[string]DeleteOverlay
	Likes   map[string]LikeOverlay
}

func NewOverlays() Overlays {
	return Overlays{
		Edits:   make(map[string]EditOverlay),
		Deletes: make(map[string]DeleteOverlay),
		Likes:   make(map[string]LikeOverlay),
	}
}

func (o Overlays) Len() int {
	return len(o.Edits) + len(o.Deletes) + len(o.Likes)
}

// matches reports whether a confirmed record is the counterpart of a pending entry.
// A record carrying a client token matches on the token alone; records without one
// fall back to author and content equality.
func matches(p Pending, c Comment) bool {
	if c.ClientToken != "" {
		return c.ClientToken == p.Comment.ClientToken
	}
	if _, ok := p.Preexisting[c.ID]; ok {
		return false
	}
	return c.AuthorID == p.Comment.AuthorID && c.Content == p.Comment.Content
}

// Reconcile merges the confirmed snapshot, the pending buffer and the overlays into the
// visible list. It returns the visible comments and the pending entries still waiting
// for a counterpart. Each confirmed record confirms at most one pending entry.
func Reconcile(userID string, confirmed []Comment, pending []Pending, overlays Overlays) ([]Comment, []Pending) {
	used := make([]bool, len(confirmed))
	unmatched := make([]Pending, 0, len(pending))
	for _, p := range pending {
		found := false
		for i, c := range confirmed {
			if used[i] || !matches(p, c) {
				continue
			}
			used[i] = true
			found = true
			break
		}
		if !found {
			unmatched = append(unmatched, p)
		}
	}

	visible := make([]Comment, 0, len(confirmed)+len(unmatched))
	for _, c := range confirmed {
		if _, ok := overlays.Deletes[c.ID]; ok {
			continue
		}
		c = c.Clone()
		c.IsPending = false
		if edit, ok := overlays.Edits[c.ID]; ok {
			c.Content = edit.Content
		}
		if like, ok := overlays.Likes[c.ID]; ok {
			c = applyLike(c, userID, like.Liked)
		}
		visible = append(visible, c)
	}
	for _, p := range unmatched {
		c := p.Comment.Clone()
		c.IsPending = true
		visible = append(visible, c)
	}
	return visible, unmatched
}

func applyLike(c Comment, userID string, liked bool) Comment {
	index := slices.Index(c.LikedBy, userID)
	switch {
	case liked && index < 0:
		c.LikedBy = append(c.LikedBy, userID)
		c.LikeCount++
	case !liked && index >= 0:
		c.LikedBy = slices.Delete(c.LikedBy, index, index+1)
		if c.LikeCount > 0 {
			c.LikeCount--
		}
	}
	return c
}

// Settle drops acknowledged overlays the confirmed snapshot already reflects, and
// overlays on comments that are gone.
func (o Overlays) Settle(userID string, confirmed []Comment) Overlays {
	byID := make(map[string]Comment, len(confirmed))
	for _, c := range confirmed {
		byID[c.ID] = c
	}

	result := NewOverlays()
	for id, edit := range o.Edits {
		c, ok := byID[id]
		if !ok {
			continue
		}
		if !edit.AckedAt.IsZero() && c.Content == edit.Content {
			continue
		}
		result.Edits[id] = edit
	}
	for id, del := range o.Deletes {
		_, ok := byID[id]
		if !del.AckedAt.IsZero() && !ok {
			continue
		}
		result.Deletes[id] = del
	}
	for id, like := range o.Likes {
		c, ok := byID[id]
		if !ok {
			continue
		}
		if !like.AckedAt.IsZero() && c.LikedByUser(userID) == like.Liked {
			continue
		}
		result.Likes[id] = like
	}
	return result
}

// Expire drops acknowledged overlays older than window.
func (o Overlays) Expire(now time.Time, window time.Duration) (Overlays, int) {
	result := NewOverlays()
	expired := 0
	stale := func(acked time.Time) bool {
		return !acked.IsZero() && now.Sub(acked) > window
	}
	for id, edit := range o.Edits {
		if stale(edit.AckedAt) {
			expired++
			continue
		}
		result.Edits[id] = edit
	}
	for id, del := range o.Deletes {
		if stale(del.AckedAt) {
			expired++
			continue
		}
		result.Deletes[id] = del
	}
	for id, like := range o.Likes {
		if stale(like.AckedAt) {
			expired++
			continue
		}
		result.Likes[id] = like
	}
	return result, expired
}
