package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"coursequiz/internal/cache"
	"coursequiz/internal/config"
	"coursequiz/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testGenerationConfig = config.GenerationConfig{
	ChunkSize:            3000,
	MaxChunks:            4,
	MinBlockLength:       20,
	StandbyQuestionCount: 20,
	ValidationAttempts:   3,
}

func newTestExtractor(storage domain.Storage, parser domain.DocumentParser, materials domain.MaterialRepository, c domain.Cache) *TextExtractor {
	return NewTextExtractor(storage, parser, materials, c, testGenerationConfig, time.Hour, zap.NewNop())
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"compatibility forms", "ﬁnal ｓｃｏｒｅ", "final score"},
		{"control characters", "cell\u0000 wall\u0007", "cell wall"},
		{"horizontal whitespace", "mito  \t chondria", "mito chondria"},
		{"paragraph breaks", "first\n\n\n\nsecond\n \n  \nthird", "first\n\nsecond\n\nthird"},
		{"single line breaks kept", "line one  \n  line two", "line one\nline two"},
		{"trimmed", "  \n text \n ", "text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestChunk_LongParagraphSplitsIntoThree(t *testing.T) {
	text := strings.Repeat("a", 9000)
	chunks := Chunk(text, 3000, 4)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.Equal(t, 3000, len(c))
	}
	assert.Equal(t, []int{7, 7, 6}, Shares(20, len(chunks)))
}

func TestChunk_BoundAndPrefix(t *testing.T) {
	var paragraphs []string
	for i := 0; i < 40; i++ {
		paragraphs = append(paragraphs, strings.Repeat(string(rune('a'+i%26)), 100+(i*137)%900))
	}
	text := strings.Join(paragraphs, "\n\n")

	chunks := Chunk(text, 3000, 4)
	require.Len(t, chunks, 4)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 3000)
	}
	assert.True(t, strings.HasPrefix(text, strings.Join(chunks, "\n\n")))
}

func TestChunk_PacksSmallParagraphsTogether(t *testing.T) {
	p := strings.Repeat("x", 1499)
	chunks := Chunk(p+"\n\n"+p+"\n\n"+p, 3000, 4)
	require.Len(t, chunks, 2)
	assert.Equal(t, p+"\n\n"+p, chunks[0])
	assert.Equal(t, p, chunks[1])
}

func TestChunk_RuneSafe(t *testing.T) {
	chunks := Chunk(strings.Repeat("é", 25), 10, 4)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c))
	}
	assert.Equal(t, 5, utf8.RuneCountInString(chunks[2]))
}

func TestChunk_Empty(t *testing.T) {
	assert.Empty(t, Chunk("", 3000, 4))
	assert.Empty(t, Chunk("text", 0, 4))
}

func TestExtract_OrdersBlocksAndKeepsMaterialOrder(t *testing.T) {
	storage := new(MockStorage)
	parser := new(MockDocumentParser)
	storage.On("Download", mock.Anything, "materials/one.pdf").Return([]byte("one"), nil)
	storage.On("Download", mock.Anything, "materials/two.pdf").Return([]byte("two"), nil)
	parser.On("Pages", []byte("one")).Return([][]domain.TextBlock{{
		{X: 300, Y: 100, Text: "Right column sentence of the first page."},
		{X: 10, Y: 100, Text: "Left column sentence of the first page."},
		{X: 10, Y: 10, Text: "Title of the first document page"},
		{X: 10, Y: 500, Text: "p. 1"},
	}}, nil)
	parser.On("Pages", []byte("two")).Return([][]domain.TextBlock{
		{{X: 0, Y: 0, Text: "Second material, page one content."}},
		{{X: 0, Y: 0, Text: "Second material, page two content."}},
	}, nil)

	e := newTestExtractor(storage, parser, nil, nil)
	text, err := e.Extract(context.Background(), []*domain.Material{
		{ID: "m1", FilePath: "materials/one.pdf"},
		{ID: "m2", FilePath: "materials/two.pdf"},
	})
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"Title of the first document page",
		"Left column sentence of the first page.",
		"Right column sentence of the first page.",
		"Second material, page one content.",
		"Second material, page two content.",
	}, "\n\n"), text)
}

func TestExtract_DownloadFailureFailsWholeCall(t *testing.T) {
	storage := new(MockStorage)
	parser := new(MockDocumentParser)
	storage.On("Download", mock.Anything, "ok.pdf").Return([]byte("ok"), nil).Maybe()
	storage.On("Download", mock.Anything, "missing.pdf").Return(nil, errors.New("object not found"))
	parser.On("Pages", mock.Anything).Return([][]domain.TextBlock{{{Text: "Enough text to survive the block filter."}}}, nil).Maybe()

	e := newTestExtractor(storage, parser, nil, nil)
	_, err := e.Extract(context.Background(), []*domain.Material{{FilePath: "ok.pdf"}, {FilePath: "missing.pdf"}})
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.ErrFetch))
}

func TestExtract_NoContent(t *testing.T) {
	storage := new(MockStorage)
	parser := new(MockDocumentParser)
	storage.On("Download", mock.Anything, "scan.pdf").Return([]byte("scan"), nil)
	parser.On("Pages", []byte("scan")).Return([][]domain.TextBlock{{{Text: "short"}}}, nil)

	_, err := newTestExtractor(storage, parser, nil, nil).Extract(context.Background(), []*domain.Material{{FilePath: "scan.pdf"}})
	assert.True(t, domain.HasCode(err, domain.ErrNoContent))
}

func TestChunksForQuiz_CacheHit(t *testing.T) {
	materials := new(MockMaterialRepository)
	storage := new(MockStorage)
	c := new(MockCache)
	materials.On("ListMaterialsByQuiz", mock.Anything, "quiz-1").Return([]*domain.Material{{ID: "m1"}, {ID: "m2"}}, nil)
	key := cache.ChunksKey([]string{"m1", "m2"}, 3000, 4)
	c.On("Get", mock.Anything, key).Return(`["cached chunk"]`, nil)

	chunks, err := newTestExtractor(storage, nil, materials, c).ChunksForQuiz(context.Background(), "quiz-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"cached chunk"}, chunks)
	storage.AssertNotCalled(t, "Download", mock.Anything, mock.Anything)
}

func TestChunksForQuiz_CacheMissExtractsAndStores(t *testing.T) {
	materials := new(MockMaterialRepository)
	storage := new(MockStorage)
	parser := new(MockDocumentParser)
	c := new(MockCache)
	materials.On("ListMaterialsByQuiz", mock.Anything, "quiz-1").Return([]*domain.Material{{ID: "m1", FilePath: "m1.pdf"}}, nil)
	storage.On("Download", mock.Anything, "m1.pdf").Return([]byte("pdf"), nil).Once()
	parser.On("Pages", []byte("pdf")).Return([][]domain.TextBlock{{{Text: "Photosynthesis converts light into chemical energy."}}}, nil)
	key := cache.ChunksKey([]string{"m1"}, 3000, 4)
	c.On("Get", mock.Anything, key).Return("", domain.ErrCacheMiss)

	want := []string{"Photosynthesis converts light into chemical energy."}
	raw, _ := json.Marshal(want)
	c.On("Set", mock.Anything, key, string(raw), time.Hour).Return(nil).Once()

	chunks, err := newTestExtractor(storage, parser, materials, c).ChunksForQuiz(context.Background(), "quiz-1")
	require.NoError(t, err)
	assert.Equal(t, want, chunks)
	c.AssertExpectations(t)
	storage.AssertExpectations(t)
}

func TestChunksForQuiz_NoMaterials(t *testing.T) {
	materials := new(MockMaterialRepository)
	materials.On("ListMaterialsByQuiz", mock.Anything, "quiz-1").Return([]*domain.Material{}, nil)

	_, err := newTestExtractor(nil, nil, materials, nil).ChunksForQuiz(context.Background(), "quiz-1")
	assert.True(t, domain.HasCode(err, domain.ErrNoContent))
}
