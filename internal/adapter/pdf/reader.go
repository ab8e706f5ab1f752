// Package pdf extracts positioned text blocks from PDF binaries.
package pdf

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"

	"coursequiz/internal/domain"

	"github.com/ledongthuc/pdf"
)

const (
	// Glyphs whose baselines differ by less than this share of the font size are on one line.
	lineTolerance = 0.5
	// A horizontal gap wider than this share of the font size becomes a space.
	wordGap = 0.2
	// A vertical gap taller than this many font sizes starts a new block.
	blockGap = 1.5
)

// Parser implements domain.DocumentParser.
type Parser struct{}

func NewParser() domain.DocumentParser {
	return Parser{}
}

// Pages returns each page's text blocks. Blocks carry top-left coordinates with Y
// growing downwards.
func (Parser) Pages(data []byte) (pages [][]domain.TextBlock, err error) {
	defer func() {
		// The PDF library panics on some malformed content streams.
		if p := recover(); p != nil {
			pages, err = nil, fmt.Errorf("malformed pdf: %v", p)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, nil)
			continue
		}
		pages = append(pages, groupBlocks(page.Content().Text))
	}
	return pages, nil
}

type line struct {
	y, x, size float64
	text       string
}

// groupBlocks assembles glyph runs into lines and lines into blocks.
func groupBlocks(texts []pdf.Text) []domain.TextBlock {
	glyphs := make([]pdf.Text, 0, len(texts))
	for _, t := range texts {
		if t.S != "" {
			glyphs = append(glyphs, t)
		}
	}
	if len(glyphs) == 0 {
		return nil
	}
	// PDF space has its origin at the bottom left: higher Y is nearer the top.
	sort.SliceStable(glyphs, func(i, j int) bool {
		if math.Abs(glyphs[i].Y-glyphs[j].Y) > tolerance(glyphs[i], glyphs[j]) {
			return glyphs[i].Y > glyphs[j].Y
		}
		return glyphs[i].X < glyphs[j].X
	})

	var lines []line
	var cur []pdf.Text
	flush := func() {
		if len(cur) > 0 {
			lines = append(lines, buildLine(cur))
			cur = nil
		}
	}
	for _, g := range glyphs {
		if len(cur) > 0 && math.Abs(cur[0].Y-g.Y) > tolerance(cur[0], g) {
			flush()
		}
		cur = append(cur, g)
	}
	flush()

	var blocks []domain.TextBlock
	var parts []string
	var top, left, prevY, prevSize float64
	for i, l := range lines {
		if i > 0 && prevY-l.y > blockGap*math.Max(prevSize, 1) {
			blocks = append(blocks, domain.TextBlock{X: left, Y: -top, Text: strings.Join(parts, "\n")})
			parts = nil
		}
		if len(parts) == 0 {
			top, left = l.y, l.x
		}
		parts = append(parts, l.text)
		left = math.Min(left, l.x)
		prevY, prevSize = l.y, l.size
	}
	if len(parts) > 0 {
		blocks = append(blocks, domain.TextBlock{X: left, Y: -top, Text: strings.Join(parts, "\n")})
	}
	return blocks
}

func tolerance(a, b pdf.Text) float64 {
	return lineTolerance * math.Max(math.Max(a.FontSize, b.FontSize), 1)
}

func buildLine(glyphs []pdf.Text) line {
	sort.SliceStable(glyphs, func(i, j int) bool { return glyphs[i].X < glyphs[j].X })
	var sb strings.Builder
	l := line{y: glyphs[0].Y, x: glyphs[0].X}
	for i, g := range glyphs {
		if g.FontSize > l.size {
			l.size = g.FontSize
		}
		if i > 0 {
			prev := glyphs[i-1]
			gap := g.X - (prev.X + prev.W)
			if gap > wordGap*math.Max(g.FontSize, 1) && !strings.HasSuffix(sb.String(), " ") && !strings.HasPrefix(g.S, " ") {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(g.S)
	}
	l.text = strings.TrimSpace(sb.String())
	return l
}
