// Package chunker splits page text into overlapping fixed-size windows.
package chunker

import "strings"

const (
	DefaultSize    = 900
	DefaultOverlap = 100
)

// Page is the extracted text of one source page. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// Chunk is one window with a chapter-global ordinal.
type Chunk struct {
	Index      int
	PageNumber int
	Content    string
}

type Chunker struct {
	size    int
	overlap int
}

type Option func(*Chunker)

func WithSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

func New(opts ...Option) *Chunker {
	c := &Chunker{
		size:    DefaultSize,
		overlap: DefaultOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}
	return c
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// Split windows every page in order. Windows are measured in runes and trimmed;
// blank windows are dropped before an index is assigned, so indices stay contiguous.
func (c *Chunker) Split(pages []Page) []Chunk {
	step := c.size - c.overlap
	var chunks []Chunk
	for _, page := range pages {
		runes := []rune(strings.TrimSpace(page.Text))
		if len(runes) == 0 {
			continue
		}
		for start := 0; start < len(runes); start += step {
			end := start + c.size
			if end > len(runes) {
				end = len(runes)
			}
			content := strings.TrimSpace(string(runes[start:end]))
			if content == "" {
				continue
			}
			chunks = append(chunks, Chunk{
				Index:      len(chunks),
				PageNumber: page.Number,
				Content:    content,
			})
		}
	}
	return chunks
}
