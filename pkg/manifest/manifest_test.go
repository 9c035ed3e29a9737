// pkg/manifest/manifest_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: None
// PURPOSE: Test manifest schema parsing across both shapes

package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlatShape(t *testing.T) {
	data := []byte(`{
		"version": "2024.06.01",
		"books": [
			{"id": "alpha", "cover": "cover.png", "content": [
				{"type": "image", "src": "page1.png"},
				{"type": "paragraph", "text": "Once upon a time", "audio": "p1.mp3"}
			]}
		]
	}`)

	m, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "2024.06.01", m.Version)
	require.Len(t, m.Books, 1)
	assert.Equal(t, "alpha", m.Books[0].ID.String())
	assert.Equal(t, "cover.png", m.Books[0].Cover)
	require.Len(t, m.Books[0].Content, 2)
	assert.Equal(t, ItemImage, m.Books[0].Content[0].Type)
	assert.Equal(t, "p1.mp3", m.Books[0].Content[1].Audio)
}

func TestParseNestedShape(t *testing.T) {
	data := []byte(`{
		"version": "7",
		"collections": [
			{"title": "shelf one", "books": [{"id": 1, "cover": "a.png"}]},
			{"books": [{"id": 2}]}
		]
	}`)

	m, err := Parse(data)
	require.NoError(t, err)

	books := m.AllBooks()
	require.Len(t, books, 2)
	// numeric ids survive as their decimal string form
	assert.Equal(t, "1", books[0].ID.String())
	assert.Equal(t, "2", books[1].ID.String())
}

func TestAllBooksMergesShapes(t *testing.T) {
	data := []byte(`{
		"version": "v",
		"books": [{"id": "flat"}],
		"collections": [{"books": [{"id": "nested"}]}]
	}`)

	m, err := Parse(data)
	require.NoError(t, err)

	books := m.AllBooks()
	require.Len(t, books, 2)
	assert.Equal(t, "flat", books[0].ID.String())
	assert.Equal(t, "nested", books[1].ID.String())
}

func TestParseExplicitFiles(t *testing.T) {
	data := []byte(`{
		"version": "3",
		"files": [
			{"url": "http://cdn.local/big.mp4", "relativePath": "media/big.mp4", "size": 1048576},
			{"path": "styles/site.css"}
		]
	}`)

	m, err := Parse(data)
	require.NoError(t, err)

	require.Len(t, m.Files, 2)
	assert.Equal(t, "http://cdn.local/big.mp4", m.Files[0].URL)
	assert.Equal(t, "media/big.mp4", m.Files[0].RelativePath)
	assert.Equal(t, int64(1048576), m.Files[0].Size)
	assert.Equal(t, "styles/site.css", m.Files[1].Path)
}

func TestParseRejectsMalformed(t *testing.T) {
	_, err := Parse([]byte(`{"version": `))
	assert.Error(t, err)
}
