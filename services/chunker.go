package services

import (
	"regexp"
	"strings"

	"knowledgebase-platform/models"
)

// Chunker splits extracted text into overlapping, word-bounded chunks on
// sentence boundaries. Splitting is deterministic: identical input yields
// identical chunk boundaries and overlap content.
type Chunker struct {
	maxWords         int
	overlapSentences int
	sentenceRegex    *regexp.Regexp
}

// NewChunker creates a chunker. maxWords bounds each chunk's word count;
// overlapSentences is how many trailing sentences of a closed chunk seed the
// next one.
func NewChunker(maxWords, overlapSentences int) *Chunker {
	if maxWords <= 0 {
		maxWords = 500
	}
	if overlapSentences < 0 {
		overlapSentences = 2
	}

	return &Chunker{
		maxWords:         maxWords,
		overlapSentences: overlapSentences,
		// Sentences end at ./!/? runs plus trailing whitespace; the final
		// alternative catches an unterminated tail so spans cover all of text.
		sentenceRegex: regexp.MustCompile(`[^.!?]+[.!?]+[\s]*|[^.!?]+$`),
	}
}

// Split chunks text. StartChar/EndChar span the fresh portion of each chunk
// in the source text; spans are contiguous across chunks, so concatenating
// Content[OverlapChars:] reconstructs the text without omission.
func (c *Chunker) Split(text string) []models.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	spans := c.sentenceRegex.FindAllStringIndex(text, -1)
	if len(spans) == 0 {
		return nil
	}

	var (
		chunks  []models.Chunk
		fresh   []int  // indices into spans for the current chunk
		overlap string // trailing sentences carried from the previous chunk
		words   int    // word count of overlap + fresh sentences
	)

	flush := func() {
		if len(fresh) == 0 {
			return
		}

		start := spans[fresh[0]][0]
		end := spans[fresh[len(fresh)-1]][1]

		chunks = append(chunks, models.Chunk{
			Index:        len(chunks),
			Content:      overlap + text[start:end],
			StartChar:    start,
			EndChar:      end,
			OverlapChars: len(overlap),
		})

		// Seed the next chunk with the last sentences of this one so context
		// survives the boundary. Zero overlap carries nothing forward.
		oi := len(fresh) - c.overlapSentences
		if oi < 0 {
			oi = 0
		}
		if oi < len(fresh) {
			overlap = text[spans[fresh[oi]][0]:end]
			words = len(strings.Fields(overlap))
		} else {
			overlap = ""
			words = 0
		}
		fresh = fresh[:0]
	}

	for i, sp := range spans {
		w := len(strings.Fields(text[sp[0]:sp[1]]))
		if len(fresh) > 0 && words+w > c.maxWords {
			flush()
		}
		fresh = append(fresh, i)
		words += w
	}
	flush()

	return chunks
}
