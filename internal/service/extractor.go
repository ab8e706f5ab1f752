package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"coursequiz/internal/cache"
	"coursequiz/internal/config"
	"coursequiz/internal/domain"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/unicode/norm"
)

const paragraphBreak = "\n\n"

var (
	horizontalSpace = regexp.MustCompile(`[ \t\f\v\r]+`)
	spaceAroundLF   = regexp.MustCompile(` ?\n ?`)
	blankLines      = regexp.MustCompile(`\n{2,}`)
)

// TextExtractor turns stored materials into normalized text and generation chunks.
type TextExtractor struct {
	storage   domain.Storage
	parser    domain.DocumentParser
	materials domain.MaterialRepository
	cache     domain.Cache
	cfg       config.GenerationConfig
	chunkTTL  time.Duration
	logger    *zap.Logger

	sf singleflight.Group
}

// NewTextExtractor creates an extractor. cache may be nil.
func NewTextExtractor(
	storage domain.Storage,
	parser domain.DocumentParser,
	materials domain.MaterialRepository,
	cache domain.Cache,
	cfg config.GenerationConfig,
	chunkTTL time.Duration,
	logger *zap.Logger,
) *TextExtractor {
	return &TextExtractor{
		storage:   storage,
		parser:    parser,
		materials: materials,
		cache:     cache,
		cfg:       cfg,
		chunkTTL:  chunkTTL,
		logger:    logger,
	}
}

// Extract downloads the materials in parallel and returns their text in input order.
// One failed download fails the call.
func (e *TextExtractor) Extract(ctx context.Context, materials []*domain.Material) (string, error) {
	texts := make([]string, len(materials))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range materials {
		g.Go(func() error {
			data, err := e.storage.Download(gctx, m.FilePath)
			if err != nil {
				if domain.HasCode(err, domain.ErrFetch) {
					return err
				}
				return domain.NewFetchError(m.FilePath, err)
			}
			pages, err := e.parser.Pages(data)
			if err != nil {
				return domain.NewFetchError(m.FilePath, fmt.Errorf("unreadable pdf: %w", err))
			}
			texts[i] = e.documentText(pages)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	text := Normalize(strings.Join(texts, paragraphBreak))
	if text == "" {
		return "", domain.NewNoContentError("no text could be extracted from the materials")
	}
	return text, nil
}

// documentText orders each page's blocks top-to-bottom then left-to-right and drops
// blocks shorter than the configured minimum.
func (e *TextExtractor) documentText(pages [][]domain.TextBlock) string {
	var kept []string
	for _, blocks := range pages {
		sorted := make([]domain.TextBlock, len(blocks))
		copy(sorted, blocks)
		sort.SliceStable(sorted, func(i, j int) bool {
			if sorted[i].Y != sorted[j].Y {
				return sorted[i].Y < sorted[j].Y
			}
			return sorted[i].X < sorted[j].X
		})
		for _, b := range sorted {
			t := strings.TrimSpace(b.Text)
			if utf8.RuneCountInString(t) < e.cfg.MinBlockLength {
				continue
			}
			kept = append(kept, t)
		}
	}
	return strings.Join(kept, paragraphBreak)
}

// Normalize applies NFKC, drops non-printable characters and collapses whitespace so
// that paragraphs are separated by exactly one blank line.
func Normalize(text string) string {
	text = norm.NFKC.String(text)
	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || unicode.IsPrint(r) {
			return r
		}
		return -1
	}, text)
	text = horizontalSpace.ReplaceAllString(text, " ")
	text = spaceAroundLF.ReplaceAllString(text, "\n")
	text = blankLines.ReplaceAllString(text, paragraphBreak)
	return strings.TrimSpace(text)
}

// Chunk packs paragraphs greedily into chunks of at most chunkSize characters and
// returns at most maxChunks of them; the rest of the text is dropped. A paragraph
// longer than chunkSize is cut at chunkSize boundaries.
func Chunk(text string, chunkSize, maxChunks int) []string {
	if chunkSize <= 0 || maxChunks <= 0 {
		return nil
	}
	var (
		chunks  []string
		current string
	)
	seal := func() {
		if current != "" {
			chunks = append(chunks, current)
			current = ""
		}
	}

	for _, p := range strings.Split(text, paragraphBreak) {
		if len(chunks) >= maxChunks {
			break
		}
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if utf8.RuneCountInString(p) > chunkSize {
			seal()
			pieces := splitRunes(p, chunkSize)
			chunks = append(chunks, pieces[:len(pieces)-1]...)
			current = pieces[len(pieces)-1]
			continue
		}
		if current == "" {
			current = p
			continue
		}
		if utf8.RuneCountInString(current)+len(paragraphBreak)+utf8.RuneCountInString(p) > chunkSize {
			seal()
			current = p
			continue
		}
		current += paragraphBreak + p
	}
	seal()

	if len(chunks) > maxChunks {
		chunks = chunks[:maxChunks]
	}
	return chunks
}

func splitRunes(s string, size int) []string {
	runes := []rune(s)
	out := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		out = append(out, string(runes[start:end]))
	}
	return out
}

// ChunksForQuiz returns the generation chunks for a quiz's materials. Results are
// cached per material set and concurrent identical extractions share one run.
func (e *TextExtractor) ChunksForQuiz(ctx context.Context, quizID string) ([]string, error) {
	materials, err := e.materials.ListMaterialsByQuiz(ctx, quizID)
	if err != nil {
		return nil, domain.NewInternalError("failed to load quiz materials", err)
	}
	if len(materials) == 0 {
		return nil, domain.NewNoContentError(fmt.Sprintf("quiz %s has no materials", quizID))
	}

	ids := make([]string, len(materials))
	for i, m := range materials {
		ids[i] = m.ID
	}
	key := cache.ChunksKey(ids, e.cfg.ChunkSize, e.cfg.MaxChunks)

	if chunks, ok := e.cachedChunks(ctx, key); ok {
		return chunks, nil
	}

	v, err, shared := e.sf.Do(key, func() (interface{}, error) {
		text, err := e.Extract(ctx, materials)
		if err != nil {
			return nil, err
		}
		chunks := Chunk(text, e.cfg.ChunkSize, e.cfg.MaxChunks)
		e.storeChunks(ctx, key, chunks)
		return chunks, nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Debug("Extracted material chunks",
		zap.String("quiz_id", quizID),
		zap.Strings("material_ids", ids),
		zap.Int("chunks", len(v.([]string))),
		zap.Bool("shared", shared))
	return v.([]string), nil
}

func (e *TextExtractor) cachedChunks(ctx context.Context, key string) ([]string, bool) {
	if e.cache == nil {
		return nil, false
	}
	raw, err := e.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			e.logger.Warn("Failed to read chunk cache", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var chunks []string
	if err := json.Unmarshal([]byte(raw), &chunks); err != nil {
		e.logger.Warn("Discarding corrupt chunk cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return chunks, true
}

func (e *TextExtractor) storeChunks(ctx context.Context, key string, chunks []string) {
	if e.cache == nil {
		return
	}
	raw, err := json.Marshal(chunks)
	if err != nil {
		e.logger.Warn("Failed to encode chunks for cache", zap.String("key", key), zap.Error(err))
		return
	}
	if err := e.cache.Set(ctx, key, string(raw), e.chunkTTL); err != nil {
		e.logger.Warn("Failed to cache chunks", zap.String("key", key), zap.Error(err))
	}
}
