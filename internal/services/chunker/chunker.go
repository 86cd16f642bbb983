// Package chunker splits normalized text into heading-bounded,
// size-capped segments with stable indices, the unit of embedding for
// both the web and reference corpora. Chunking is stateless and
// deterministic: the same input always yields identical boundaries.
package chunker

import (
	"strings"
)

// Options configures the chunking behaviour.
type Options struct {
	// MaxChars is the maximum chunk size in characters. Default: 2400.
	MaxChars int
	// MinChars is the minimum buffer size below which the next paragraph
	// is force-included rather than flushed. Default: 400.
	MinChars int
}

func (o *Options) defaults() {
	if o.MaxChars <= 0 {
		o.MaxChars = 2400
	}
	if o.MinChars <= 0 {
		o.MinChars = 400
	}
}

// Chunk is one text segment with its stable position.
type Chunk struct {
	Index         int    // 0-based position in the sequence
	Content       string // chunk text
	TokenEstimate int    // length/4, a rough cost proxy only
}

// Split divides text into chunks at H1/H2 heading boundaries, re-splitting
// oversized blocks by blank-line-delimited paragraphs.
func Split(text string, opts Options) []Chunk {
	opts.defaults()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []Chunk
	add := func(content string) {
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}
		chunks = append(chunks, Chunk{
			Index:         len(chunks),
			Content:       content,
			TokenEstimate: len(content) / 4,
		})
	}

	for _, block := range splitAtHeadings(text) {
		if len(block) <= opts.MaxChars {
			add(block)
			continue
		}
		for _, part := range splitByParagraphs(block, opts) {
			add(part)
		}
	}

	return chunks
}

// splitAtHeadings breaks text into blocks starting at H1/H2 headings. A
// heading starts a new block only when the current block is non-empty,
// so a leading heading never produces an empty first block.
func splitAtHeadings(text string) []string {
	var blocks []string
	var current strings.Builder

	for _, line := range strings.Split(text, "\n") {
		if isHeading(line) && strings.TrimSpace(current.String()) != "" {
			blocks = append(blocks, current.String())
			current.Reset()
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	if strings.TrimSpace(current.String()) != "" {
		blocks = append(blocks, current.String())
	}

	return blocks
}

func isHeading(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "# ") || strings.HasPrefix(trimmed, "## ")
}

// splitByParagraphs greedily accumulates blank-line-delimited paragraphs
// into a buffer, flushing when appending the next paragraph would exceed
// MaxChars - unless the buffer is still below MinChars, in which case the
// paragraph is force-included to avoid a run of tiny chunks.
func splitByParagraphs(block string, opts Options) []string {
	var parts []string
	var buffer strings.Builder

	flush := func() {
		if strings.TrimSpace(buffer.String()) != "" {
			parts = append(parts, buffer.String())
		}
		buffer.Reset()
	}

	for _, para := range strings.Split(block, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if buffer.Len() > 0 && buffer.Len()+len(para)+2 > opts.MaxChars && buffer.Len() >= opts.MinChars {
			flush()
		}

		if buffer.Len() > 0 {
			buffer.WriteString("\n\n")
		}
		buffer.WriteString(para)
	}
	flush()

	return parts
}
