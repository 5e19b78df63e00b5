package parser

import (
	"regexp"
	"strings"
)

// Kind is the role a single line plays inside a question block.
type Kind int

const (
	// KindContinuation is any line that matches none of the other roles.
	KindContinuation Kind = iota
	// KindQuestionNumbered is a "N. question" line.
	KindQuestionNumbered
	// KindQuestionLabelled is a "Q.N question" line.
	KindQuestionLabelled
	// KindOption is an "a)", "(a)" or "a." option line.
	KindOption
	// KindAnswer is a "Correct option:-x" or "Answer: (x)" line.
	KindAnswer
	// KindExplanation is an "ex:" line.
	KindExplanation
)

func (k Kind) String() string {
	switch k {
	case KindQuestionNumbered:
		return "question(numbered)"
	case KindQuestionLabelled:
		return "question(labelled)"
	case KindOption:
		return "option"
	case KindAnswer:
		return "answer"
	case KindExplanation:
		return "explanation"
	default:
		return "continuation"
	}
}

// OptionStyle records which marker an option line used.
type OptionStyle int

const (
	OptionNone   OptionStyle = iota
	OptionParen              // a)
	OptionBraced             // (a)
	OptionDot                // a.
)

// AnswerStyle records which convention an answer line used.
type AnswerStyle int

const (
	AnswerNone        AnswerStyle = iota
	AnswerCorrect                 // Correct option:-x
	AnswerParenthesed             // Answer: (x)
	AnswerBare                    // Answer: x
)

// Line is a classified input line. Text holds the payload with any marker or
// keyword prefix stripped; Raw is the trimmed line as written.
type Line struct {
	Kind   Kind
	Option OptionStyle
	Answer AnswerStyle
	// Letter is the option letter for KindOption and the referenced letter for
	// KindAnswer, lower-cased. Zero when the answer line names no letter.
	Letter byte
	Text   string
	Raw    string
}

// IsQuestionStart reports whether the line opens a new question.
func (l Line) IsQuestionStart() bool {
	return l.Kind == KindQuestionNumbered || l.Kind == KindQuestionLabelled
}

// AnswerIndex maps the answer letter a..e to 1..5, or 0 if absent.
func (l Line) AnswerIndex() int {
	if l.Kind != KindAnswer || l.Letter < 'a' || l.Letter > 'e' {
		return 0
	}
	return int(l.Letter-'a') + 1
}

var (
	correctRe     = regexp.MustCompile(`(?i)^correct\s*(?:option)?\s*[:-]`)
	correctLetter = regexp.MustCompile(`(?i)[:-]\s*\(?([a-e])\)?(?:[^a-z]|$)`)
	answerRe      = regexp.MustCompile(`(?i)^answer\s*[:-]`)
	answerBraced  = regexp.MustCompile(`(?i)\(([a-e])\)`)
	answerBare    = regexp.MustCompile(`(?i)[:-]\s*([a-e])(?:[^a-z]|$)`)
	explanationRe = regexp.MustCompile(`(?i)^ex:\s*`)
	labelledRe    = regexp.MustCompile(`(?i)^Q\.\s*\d+[.):]?\s*`)
	numberedRe    = regexp.MustCompile(`^\d+\.\s*`)
	optParenRe    = regexp.MustCompile(`(?i)^([a-e])\)\s*`)
	optBracedRe   = regexp.MustCompile(`(?i)^\(([a-e])\)\s*`)
	optDotRe      = regexp.MustCompile(`(?i)^([a-e])\.\s*`)
)

// Classify tags a single trimmed, non-empty line with its role.
func Classify(line string) Line {
	line = strings.TrimSpace(line)
	out := Line{Kind: KindContinuation, Text: line, Raw: line}

	switch {
	case correctRe.MatchString(line):
		out.Kind = KindAnswer
		out.Answer = AnswerCorrect
		if m := correctLetter.FindStringSubmatch(line); m != nil {
			out.Letter = lower(m[1])
		}
		return out
	case answerRe.MatchString(line):
		out.Kind = KindAnswer
		if m := answerBraced.FindStringSubmatch(line); m != nil {
			out.Answer = AnswerParenthesed
			out.Letter = lower(m[1])
		} else if m := answerBare.FindStringSubmatch(line); m != nil {
			out.Answer = AnswerBare
			out.Letter = lower(m[1])
		}
		return out
	case explanationRe.MatchString(line):
		out.Kind = KindExplanation
		out.Text = explanationRe.ReplaceAllString(line, "")
		return out
	case labelledRe.MatchString(line):
		out.Kind = KindQuestionLabelled
		out.Text = labelledRe.ReplaceAllString(line, "")
		return out
	case isNumbered(line):
		out.Kind = KindQuestionNumbered
		out.Text = numberedRe.ReplaceAllString(line, "")
		return out
	}

	for _, opt := range []struct {
		re    *regexp.Regexp
		style OptionStyle
	}{
		{optBracedRe, OptionBraced},
		{optParenRe, OptionParen},
		{optDotRe, OptionDot},
	} {
		if m := opt.re.FindStringSubmatch(line); m != nil {
			out.Kind = KindOption
			out.Option = opt.style
			out.Letter = lower(m[1])
			out.Text = line[len(m[0]):]
			return out
		}
	}
	return out
}

// isNumbered matches "12. text" but not decimals such as "2.5 kg".
func isNumbered(line string) bool {
	loc := numberedRe.FindStringIndex(line)
	if loc == nil {
		return false
	}
	rest := line[loc[1]:]
	spaced := loc[1] > 0 && line[loc[1]-1] != '.'
	return spaced || rest == "" || rest[0] < '0' || rest[0] > '9'
}

func lower(s string) byte {
	return strings.ToLower(s)[0]
}
