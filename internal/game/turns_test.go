package game

import (
	"testing"
	"time"

	"github.com/storyloom/storyloom/internal/types"
	"github.com/stretchr/testify/assert"
)

func Test_TurnOrder(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("sorts by join time", func(t *testing.T) {
		participants := []types.Participant{
			{Id: 3, JoinedAt: base.Add(2 * time.Minute)},
			{Id: 1, JoinedAt: base},
			{Id: 2, JoinedAt: base.Add(time.Minute)},
		}

		assert.Equal(t, []int{1, 2, 3}, TurnOrder(participants))
	})

	t.Run("breaks ties by account id", func(t *testing.T) {
		participants := []types.Participant{
			{Id: 9, JoinedAt: base},
			{Id: 4, JoinedAt: base},
		}

		assert.Equal(t, []int{4, 9}, TurnOrder(participants))
	})

	t.Run("empty roster", func(t *testing.T) {
		assert.Empty(t, TurnOrder(nil))
	})
}

func Test_NextTurn(t *testing.T) {
	t.Run("advances through the rotation", func(t *testing.T) {
		order := []int{1, 2, 3}

		next, err := NextTurn(order, 1)
		assert.NoError(t, err)
		assert.Equal(t, 2, next)

		next, err = NextTurn(order, 2)
		assert.NoError(t, err)
		assert.Equal(t, 3, next)
	})

	t.Run("wraps from last back to first", func(t *testing.T) {
		next, err := NextTurn([]int{1, 2, 3}, 3)
		assert.NoError(t, err)
		assert.Equal(t, 1, next)
	})

	t.Run("two players alternate", func(t *testing.T) {
		order := []int{1, 2}

		next, err := NextTurn(order, 2)
		assert.NoError(t, err)
		assert.Equal(t, 1, next)
	})

	t.Run("unknown player", func(t *testing.T) {
		_, err := NextTurn([]int{1, 2}, 42)
		assert.ErrorIs(t, err, ErrNotParticipant)
	})

	t.Run("empty order", func(t *testing.T) {
		_, err := NextTurn(nil, 1)
		assert.ErrorIs(t, err, ErrNotParticipant)
	})
}

func Test_AppendContent(t *testing.T) {
	content := AppendContent("", "Once upon a time")
	assert.Equal(t, "Once upon a time", content)

	content = AppendContent(content, "there was a fox")
	assert.Equal(t, "Once upon a time\n\nthere was a fox", content)
}

func Test_SplitContent(t *testing.T) {
	assert.Nil(t, SplitContent(""))
	assert.Equal(t, []string{"a"}, SplitContent("a"))
	assert.Equal(t, []string{"a", "b", "c"}, SplitContent("a\n\nb\n\nc"))
}

func Test_ReconstructSegments(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	participants := []types.Participant{
		{Id: 1, Username: "p1", JoinedAt: base},
		{Id: 2, Username: "p2", JoinedAt: base.Add(time.Minute)},
		{Id: 3, Username: "p3", JoinedAt: base.Add(2 * time.Minute)},
	}

	t.Run("attributes segments in join order", func(t *testing.T) {
		segments := ReconstructSegments("a\n\nb\n\nc", participants)

		assert.Len(t, segments, 3)
		assert.Equal(t, 1, segments[0].AuthorId)
		assert.Equal(t, "p1", segments[0].AuthorName)
		assert.Equal(t, "a", segments[0].Content)
		assert.Equal(t, 2, segments[1].AuthorId)
		assert.Equal(t, "b", segments[1].Content)
		assert.Equal(t, 3, segments[2].AuthorId)
		assert.Equal(t, "c", segments[2].Content)
	})

	t.Run("wraps around the roster", func(t *testing.T) {
		segments := ReconstructSegments("a\n\nb\n\nc\n\nd", participants[:2])

		assert.Len(t, segments, 4)
		assert.Equal(t, 1, segments[0].AuthorId)
		assert.Equal(t, 2, segments[1].AuthorId)
		assert.Equal(t, 1, segments[2].AuthorId)
		assert.Equal(t, 2, segments[3].AuthorId)
	})

	t.Run("positions are sequential", func(t *testing.T) {
		segments := ReconstructSegments("a\n\nb\n\nc", participants)
		for i, seg := range segments {
			assert.Equal(t, i, seg.Position)
		}
	})

	t.Run("empty content", func(t *testing.T) {
		assert.Nil(t, ReconstructSegments("", participants))
	})
}
