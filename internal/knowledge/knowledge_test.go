package knowledge

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
)

func TestLoadDir(t *testing.T) {
	pages, err := LoadDir(filepath.Join("testdata", "pdfs"))
	require.NoError(t, err)
	require.Len(t, pages, 3)

	assert.Equal(t, "cardiology.pdf", pages[0].Source)
	assert.Equal(t, 1, pages[0].Number)
	assert.Contains(t, pages[0].Text, "troponin")
	assert.Equal(t, 2, pages[1].Number)
	assert.Equal(t, "neurology.pdf", pages[2].Source)
	assert.Contains(t, pages[2].Text, "Migraine")
}

func TestLoadDir_Missing(t *testing.T) {
	pages, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestLoadDir_Corrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.pdf"), []byte("not a pdf"), 0o600))

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.pdf")
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(64)
	vecs, err := e.Embed(context.Background(), []string{"Chest pain", "chest PAIN!", "", "migraine"})
	require.NoError(t, err)
	require.Len(t, vecs, 4)

	assert.Len(t, vecs[0], 64)
	assert.Equal(t, vecs[0], vecs[1], "embedding ignores case and punctuation")

	var norm float64
	for _, v := range vecs[0] {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)

	for _, v := range vecs[2] {
		assert.Zero(t, v)
	}
	assert.Equal(t, "hash/64", e.Name())
}

func TestIndex_Search(t *testing.T) {
	ix := &Index{}
	ix.Add(domain.Document{Source: "a"}, []float32{1, 0, 0})
	ix.Add(domain.Document{Source: "b"}, []float32{0.7, 0.7, 0})
	ix.Add(domain.Document{Source: "c"}, []float32{0, 0, 1})
	ix.Add(domain.Document{Source: "zero"}, []float32{0, 0, 0})

	got := ix.Search([]float32{1, 0, 0}, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Source)
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)
	assert.Equal(t, "b", got[1].Source)
	assert.Greater(t, got[0].Score, got[1].Score)

	assert.Nil(t, ix.Search([]float32{0, 0, 0}, 2))
	assert.Nil(t, ix.Search([]float32{1, 0, 0}, 0))
	assert.Len(t, ix.Search([]float32{1, 1, 1}, 10), 3)
}

func TestBase_LoadAndSearch(t *testing.T) {
	base, err := New(Config{Path: filepath.Join("testdata", "pdfs"), ChunkTokens: 32, ChunkOverlap: 4, TopK: 2}, NewHashEmbedder(0), nil)
	require.NoError(t, err)
	assert.False(t, base.Ready())

	_, err = base.Search(context.Background(), "headache", 1)
	require.Error(t, err, "search before load")

	require.NoError(t, base.Load(context.Background()))
	assert.True(t, base.Ready())
	assert.Equal(t, []string{"cardiology.pdf", "neurology.pdf"}, base.Sources())

	docs, err := base.Search(context.Background(), "throbbing headache photophobia migraine", 0)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "neurology.pdf", docs[0].Source)
	assert.True(t, strings.Contains(docs[0].Content, "headache"))

	docs, err = base.Search(context.Background(), "troponin ECG chest pain", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "cardiology.pdf", docs[0].Source)
}

func TestBase_EmptyDirectory(t *testing.T) {
	base, err := New(Config{Path: t.TempDir()}, NewHashEmbedder(0), nil)
	require.NoError(t, err)
	require.NoError(t, base.Load(context.Background()))

	assert.True(t, base.Ready())
	docs, err := base.Search(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

type failingEmbedder struct{}

func (failingEmbedder) Name() string { return "failing" }

func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("quota exceeded")
}

func TestBase_EmbedFailure(t *testing.T) {
	base, err := New(Config{Path: filepath.Join("testdata", "pdfs")}, failingEmbedder{}, nil)
	require.NoError(t, err)

	err = base.Load(context.Background())
	require.Error(t, err)
	assert.False(t, base.Ready())
}

func TestNew_InvalidOverlap(t *testing.T) {
	_, err := New(Config{ChunkTokens: 10, ChunkOverlap: 10}, NewHashEmbedder(0), nil)
	require.Error(t, err)
}

func TestGeminiEmbedder(t *testing.T) {
	key := os.Getenv("GOOGLE_API_KEY")
	if key == "" {
		t.Skip("Skipping test: GOOGLE_API_KEY not set")
	}

	e, err := NewGeminiEmbedder(context.Background(), key, "text-embedding-004")
	require.NoError(t, err)
	defer e.Close()

	vecs, err := e.Embed(context.Background(), []string{"fever", "cough"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.NotEmpty(t, vecs[0])
}
