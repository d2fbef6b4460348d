package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageRequestNormalize(t *testing.T) {
	req := PageRequest{Page: 0, Limit: 0}.Normalize()
	assert.Equal(t, 1, req.Page)
	assert.Equal(t, DefaultPageSize, req.Limit)
	assert.Equal(t, 0, req.Offset())

	req = PageRequest{Page: 3, Limit: 1000}.Normalize()
	assert.Equal(t, MaxPageSize, req.Limit)
	assert.Equal(t, 200, req.Offset())
}

func TestPageRequestNormalizeCapsHugePages(t *testing.T) {
	req := PageRequest{Page: math.MaxInt64 / 50, Limit: 1000}.Normalize()

	assert.Equal(t, MaxPage, req.Page)
	assert.Equal(t, MaxPageSize, req.Limit)
	assert.Positive(t, req.Offset())
	assert.LessOrEqual(t, req.Offset(), math.MaxInt32)
}

func TestNewPageNavigation(t *testing.T) {
	page := NewPage([]int{4, 5, 6}, 7, PageRequest{Page: 2, Limit: 3})

	assert.Equal(t, 3, page.TotalPages)
	assert.True(t, page.HasPrevPage)
	assert.True(t, page.HasNextPage)
	require.NotNil(t, page.PrevPage)
	require.NotNil(t, page.NextPage)
	assert.Equal(t, 1, *page.PrevPage)
	assert.Equal(t, 3, *page.NextPage)

	last := NewPage([]int{7}, 7, PageRequest{Page: 3, Limit: 3})
	assert.False(t, last.HasNextPage)
	assert.Nil(t, last.NextPage)
}

func TestNewPageEmpty(t *testing.T) {
	page := NewPage[string](nil, 0, PageRequest{Page: 1, Limit: 10})

	assert.NotNil(t, page.Docs)
	assert.Empty(t, page.Docs)
	assert.Equal(t, 0, page.TotalPages)
	assert.False(t, page.HasNextPage)
	assert.False(t, page.HasPrevPage)
}

func TestLikeKindValid(t *testing.T) {
	assert.True(t, LikeKindVideo.Valid())
	assert.True(t, LikeKindTweet.Valid())
	assert.False(t, LikeKind("playlist").Valid())
}

func TestParseSortDirection(t *testing.T) {
	assert.Equal(t, SortAsc, ParseSortDirection("asc"))
	assert.Equal(t, SortDesc, ParseSortDirection("ASC"))
	assert.Equal(t, SortDesc, ParseSortDirection(""))
}
