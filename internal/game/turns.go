package game

import (
	"errors"
	"sort"
	"strings"

	"github.com/storyloom/storyloom/internal/types"
)

// segmentSeparator joins turn submissions into the combined story text.
// Splitting on it recovers the original segments in submission order.
const segmentSeparator = "\n\n"

var ErrNotParticipant = errors.New("player not found in session")

// TurnOrder returns participant account ids sorted by join time. Ties are
// broken by account id so the order is stable across reloads.
func TurnOrder(participants []types.Participant) []int {
	sorted := make([]types.Participant, len(participants))
	copy(sorted, participants)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].JoinedAt.Equal(sorted[j].JoinedAt) {
			return sorted[i].Id < sorted[j].Id
		}
		return sorted[i].JoinedAt.Before(sorted[j].JoinedAt)
	})

	order := make([]int, len(sorted))
	for i, p := range sorted {
		order[i] = p.Id
	}
	return order
}

// NextTurn returns the account id following current in the rotation,
// wrapping from the last participant back to the first.
func NextTurn(order []int, current int) (int, error) {
	if len(order) == 0 {
		return 0, ErrNotParticipant
	}

	for i, id := range order {
		if id == current {
			return order[(i+1)%len(order)], nil
		}
	}

	return 0, ErrNotParticipant
}

// AppendContent adds a submission to the combined story text.
func AppendContent(content, text string) string {
	if content == "" {
		return text
	}
	return content + segmentSeparator + text
}

// SplitContent breaks combined story text back into per-turn segments.
func SplitContent(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(content, segmentSeparator)
}

// ReconstructSegments rebuilds segment records from combined story text by
// replaying the rotation: the segment at position i belongs to the
// participant at i modulo the roster size. Used for story rows written
// before per-segment authorship was recorded.
func ReconstructSegments(content string, participants []types.Participant) []types.Segment {
	parts := SplitContent(content)
	if len(parts) == 0 {
		return nil
	}

	byId := make(map[int]types.Participant, len(participants))
	for _, p := range participants {
		byId[p.Id] = p
	}
	order := TurnOrder(participants)

	segments := make([]types.Segment, len(parts))
	for i, text := range parts {
		seg := types.Segment{
			Position: i,
			Content:  text,
		}
		if len(order) > 0 {
			authorId := order[i%len(order)]
			seg.AuthorId = authorId
			seg.AuthorName = byId[authorId].Username
		}
		segments[i] = seg
	}
	return segments
}
