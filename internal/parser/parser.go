// Package parser recovers MCQ question records from loosely formatted quiz text.
//
// Two conventions are recognized:
//
//	Format A: "N. question" / "a) option" / "Correct option:-x" / "ex: text"
//	Format B: "Q.N question" / "(a) option" / "Answer: (x)" or "Answer: x"
//
// Parsing is best effort: blocks that cannot be turned into a question are
// dropped and only show up as a lower recovered count.
//
// A secondary-language line that itself starts like an option marker (for
// example "(b) ...") is read as a new option rather than a continuation of the
// previous one. This is a known limitation of line classification.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"quizbook-service/internal/domain"
)

// MaxInputBytes caps how much quiz text ParseReader accepts.
const MaxInputBytes = 1 << 20

const minBlockLines = 3

// ErrInputTooLarge is returned by ParseReader when the input exceeds MaxInputBytes.
var ErrInputTooLarge = errors.New("quiz text too large")

// Parse splits text into question blocks and returns the records it could
// recover together with their count.
func Parse(text string) ([]domain.QuestionRecord, int) {
	var records []domain.QuestionRecord
	for _, block := range splitBlocks(text) {
		if record, ok := parseBlock(block); ok {
			records = append(records, record)
		}
	}
	return records, len(records)
}

// ParseReader reads UTF-8 quiz text from r and parses it.
func ParseReader(r io.Reader) ([]domain.QuestionRecord, int, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxInputBytes+1))
	if err != nil {
		return nil, 0, fmt.Errorf("read quiz text: %w", err)
	}
	if len(data) > MaxInputBytes {
		return nil, 0, ErrInputTooLarge
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	records, n := Parse(string(data))
	return records, n, nil
}

// splitBlocks groups classified lines into blocks. Blank lines end a block, and
// so does the start of a new question even without a blank line in between.
func splitBlocks(text string) [][]Line {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var (
		blocks  [][]Line
		current []Line
	)
	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, current)
			current = nil
		}
	}

	for _, raw := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			flush()
			continue
		}
		line := Classify(trimmed)
		if line.IsQuestionStart() {
			flush()
		}
		current = append(current, line)
	}
	flush()
	return blocks
}

func parseBlock(lines []Line) (domain.QuestionRecord, bool) {
	var record domain.QuestionRecord
	if len(lines) < minBlockLines {
		return record, false
	}

	var question []string
	i := 0
	if lines[0].IsQuestionStart() {
		question = append(question, lines[0].Text)
		i = 1
	}
	for ; i < len(lines) && lines[i].Kind != KindOption; i++ {
		question = append(question, lines[i].Raw)
	}
	record.Text = join(question...)

	collected := 0
collect:
	for i < len(lines) && collected < domain.MaxOptions {
		switch lines[i].Kind {
		case KindOption:
			text := lines[i].Text
			i++
			if i < len(lines) && lines[i].Kind == KindContinuation {
				text = join(text, lines[i].Raw)
				i++
			}
			record.Options[collected] = text
			collected++
		case KindContinuation:
			i++
		default:
			break collect
		}
	}

	for _, line := range lines[i:] {
		if line.Kind == KindAnswer && line.AnswerIndex() > 0 {
			record.Correct = line.AnswerIndex()
			break
		}
	}
	if !record.HasOption(record.Correct) {
		record.Correct = 0
	}

	var explanations []string
	for _, line := range lines {
		if line.Kind == KindExplanation {
			explanations = append(explanations, line.Text)
		}
	}
	record.Explanation = join(explanations...)

	if !record.Valid() {
		return domain.QuestionRecord{}, false
	}
	return record, true
}

// join concatenates the non-empty parts with the line-break marker.
func join(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, domain.LineBreak)
}
