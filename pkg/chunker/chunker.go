// Package chunker splits extracted document text into overlapping chunks
// along paragraph, line, word, and character boundaries.
package chunker

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/papercomputeco/docchat/pkg/errs"
	"github.com/papercomputeco/docchat/pkg/logger"
)

const (
	// DefaultChunkSize is the maximum number of characters per chunk.
	DefaultChunkSize = 1500

	// DefaultOverlap is the number of characters carried into the next chunk.
	DefaultOverlap = 200
)

// DefaultSeparators are tried in order: paragraph, line, word, character.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Piece is a chunk together with its position in the source text.
// Start and End are character (rune) offsets, End exclusive.
type Piece struct {
	Text  string
	Start int
	End   int
}

// Splitter is a recursive character splitter. The zero value is not usable;
// construct one with New.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
	logger     *slog.Logger
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithChunkSize sets the maximum chunk length in characters.
func WithChunkSize(n int) Option {
	return func(s *Splitter) { s.chunkSize = n }
}

// WithOverlap sets how many characters adjacent chunks may share.
func WithOverlap(n int) Option {
	return func(s *Splitter) { s.overlap = n }
}

// WithSeparators replaces the separator priority list. Without a trailing
// "" entry, spans that contain none of the separators may exceed the
// chunk size.
func WithSeparators(seps ...string) Option {
	return func(s *Splitter) { s.separators = seps }
}

// WithLogger sets the logger used to report recovered splitter failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Splitter) { s.logger = l }
}

// New returns a Splitter with DefaultChunkSize, DefaultOverlap, and
// DefaultSeparators unless overridden.
func New(opts ...Option) (*Splitter, error) {
	s := &Splitter{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultOverlap,
		separators: DefaultSeparators,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.chunkSize <= 0 {
		return nil, errs.Validation("chunk size must be positive, got %d", s.chunkSize)
	}
	if s.overlap < 0 {
		return nil, errs.Validation("overlap must not be negative, got %d", s.overlap)
	}
	if s.overlap >= s.chunkSize {
		return nil, errs.Validation("overlap %d must be smaller than chunk size %d", s.overlap, s.chunkSize)
	}
	if len(s.separators) == 0 {
		return nil, errs.Validation("at least one separator is required")
	}

	return s, nil
}

// Split chunks text with the given size and overlap using the default
// separators. Empty text yields a nil slice.
func Split(text string, chunkSize, overlap int) ([]string, error) {
	s, err := New(WithChunkSize(chunkSize), WithOverlap(overlap))
	if err != nil {
		return nil, err
	}
	return s.Split(text), nil
}

// ChunkSize returns the configured maximum chunk length.
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// Overlap returns the configured overlap.
func (s *Splitter) Overlap() int { return s.overlap }

// Split returns the chunk texts for text. Empty text yields a nil slice.
func (s *Splitter) Split(text string) []string {
	pieces := s.Pieces(text)
	if pieces == nil {
		return nil
	}

	out := make([]string, len(pieces))
	for i, p := range pieces {
		out[i] = p.Text
	}
	return out
}

// Pieces returns the chunks of text with their source offsets. If splitting
// fails internally the whole text is returned as a single piece.
func (s *Splitter) Pieces(text string) (pieces []Piece) {
	if text == "" {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("splitter failed, keeping text as a single chunk",
				"panic", fmt.Sprint(r),
				"length", utf8.RuneCountInString(text),
			)
			pieces = []Piece{{Text: text, Start: 0, End: utf8.RuneCountInString(text)}}
		}
	}()

	units := s.units(text, 0, s.separators, nil)
	return s.pack(units)
}

// unit is an indivisible span produced by recursive splitting.
type unit struct {
	text  string
	start int
	size  int
}

// units breaks text into spans no longer than the chunk size, trying the
// separators in order. Each separator stays attached to the span before it,
// so the spans concatenate back to text.
func (s *Splitter) units(text string, offset int, seps []string, out []unit) []unit {
	sep, rest := pickSeparator(text, seps)

	var parts []string
	if sep == "" {
		parts = splitRunes(text)
	} else {
		parts = strings.SplitAfter(text, sep)
	}

	for _, part := range parts {
		if part == "" {
			continue
		}

		size := utf8.RuneCountInString(part)
		switch {
		case size <= s.chunkSize:
			out = append(out, unit{text: part, start: offset, size: size})
		case len(rest) > 0:
			out = s.units(part, offset, rest, out)
		default:
			// No finer separator left; keep the oversized span whole.
			out = append(out, unit{text: part, start: offset, size: size})
		}
		offset += size
	}

	return out
}

// pack greedily merges units into chunks of at most chunkSize characters,
// carrying trailing units totalling at most overlap characters into the
// next chunk.
func (s *Splitter) pack(units []unit) []Piece {
	var (
		pieces []Piece
		window []unit
		total  int
		fresh  bool
	)

	emit := func() {
		var b strings.Builder
		for _, u := range window {
			b.WriteString(u.text)
		}
		last := window[len(window)-1]
		pieces = append(pieces, Piece{
			Text:  b.String(),
			Start: window[0].start,
			End:   last.start + last.size,
		})
		fresh = false
	}

	for _, u := range units {
		if len(window) > 0 && total+u.size > s.chunkSize {
			if fresh {
				emit()
			}
			for len(window) > 0 && (total > s.overlap || total+u.size > s.chunkSize) {
				total -= window[0].size
				window = window[1:]
			}
		}

		window = append(window, u)
		total += u.size
		fresh = true
	}

	if fresh {
		emit()
	}

	return pieces
}

// pickSeparator returns the first separator present in text and the
// separators after it. The empty separator always matches.
func pickSeparator(text string, seps []string) (string, []string) {
	for i, sep := range seps {
		if sep == "" || strings.Contains(text, sep) {
			return sep, seps[i+1:]
		}
	}
	return seps[len(seps)-1], nil
}

func splitRunes(text string) []string {
	out := make([]string, 0, utf8.RuneCountInString(text))
	for len(text) > 0 {
		_, n := utf8.DecodeRuneInString(text)
		out = append(out, text[:n])
		text = text[n:]
	}
	return out
}

// Merge reconstructs the source text from pieces produced by Pieces,
// dropping the overlapping prefix of each piece.
func Merge(pieces []Piece) string {
	var (
		b       strings.Builder
		written int
	)

	for _, p := range pieces {
		if p.End <= written {
			continue
		}

		skip := written - p.Start
		text := p.Text
		for skip > 0 && len(text) > 0 {
			_, n := utf8.DecodeRuneInString(text)
			text = text[n:]
			skip--
		}

		b.WriteString(text)
		written = p.End
	}

	return b.String()
}
