package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "42", CreatedAt: "2024-01-01T00:00:00Z"})
	require.NoError(t, err)

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "42", cursor.ID)

	_, err = DecodeCursor("not base64!")
	assert.Error(t, err)
}

func TestLimit(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Limit())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Limit())
	assert.Equal(t, 10, Pagination{PageSize: 10}.Limit())
}

func TestBuildCursorPageInfo(t *testing.T) {
	a, b, c := 1, 2, 3
	info := BuildCursorPageInfo([]*int{&a, &b, &c}, 2, func(v *int) string {
		if *v == 2 {
			return "cursor-2"
		}
		return "wrong"
	})
	assert.True(t, info.HasMore)
	assert.Equal(t, "cursor-2", info.NextPageToken)

	info = BuildCursorPageInfo([]*int{&a}, 2, func(*int) string { return "x" })
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}
