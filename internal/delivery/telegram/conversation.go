package telegram

import (
	"strconv"
	"strings"

	"quizbook-service/internal/app"
	"quizbook-service/internal/parser"
)

type step int

const (
	stepIdle step = iota
	stepFile
	stepName
	stepMinutes
	stepMarks
	stepNegative
	stepCreator
)

// conversation collects one operator's publish request step by step. It has
// no Telegram dependency; the handler feeds it text and files.
type conversation struct {
	step      step
	questions int
	req       app.PublishRequest
}

// outcome is what the handler should do after a step: reply with text and,
// when publish is set, publish the collected request.
type outcome struct {
	reply   string
	publish *app.PublishRequest
}

func (c *conversation) active() bool {
	return c.step != stepIdle
}

func (c *conversation) start() outcome {
	*c = conversation{step: stepFile}
	return outcome{reply: msgWelcome}
}

func (c *conversation) cancel() outcome {
	if !c.active() {
		return outcome{reply: msgNothingToCancel}
	}
	*c = conversation{}
	return outcome{reply: msgCancelled}
}

// file accepts the uploaded quiz text.
func (c *conversation) file(text string) outcome {
	if c.step != stepFile {
		if !c.active() {
			return outcome{reply: msgUseStart}
		}
		return outcome{reply: c.prompt()}
	}
	_, n := parser.Parse(text)
	if n == 0 {
		return outcome{reply: msgNothingParsed}
	}
	c.req.Text = text
	c.questions = n
	c.step = stepName
	return outcome{reply: msgParsed(n)}
}

// text accepts a typed answer for the current step.
func (c *conversation) text(input string) outcome {
	input = strings.TrimSpace(input)
	switch c.step {
	case stepIdle:
		return outcome{reply: msgUseStart}
	case stepFile:
		return outcome{reply: msgSendFile}
	case stepName:
		if input == "" {
			return outcome{reply: msgAskName}
		}
		c.req.Title = input
		c.step = stepMinutes
		return outcome{reply: msgAskMinutes}
	case stepMinutes:
		minutes, err := strconv.Atoi(input)
		if err != nil || minutes <= 0 {
			return outcome{reply: msgBadMinutes}
		}
		c.req.Minutes = minutes
		c.step = stepMarks
		return outcome{reply: msgAskMarks}
	case stepMarks:
		marks, err := strconv.ParseFloat(input, 64)
		if err != nil || marks <= 0 {
			return outcome{reply: msgBadMarks}
		}
		c.req.CorrectScore = &marks
		c.step = stepNegative
		return outcome{reply: msgAskNegative}
	case stepNegative:
		negative, err := strconv.ParseFloat(input, 64)
		if err != nil || negative < 0 {
			return outcome{reply: msgBadNegative}
		}
		c.req.NegativeScore = &negative
		c.step = stepCreator
		return outcome{reply: msgAskCreator}
	case stepCreator:
		c.req.Creator = input
		req := c.req
		*c = conversation{}
		return outcome{publish: &req}
	}
	return outcome{reply: msgUseStart}
}

func (c *conversation) prompt() string {
	switch c.step {
	case stepFile:
		return msgSendFile
	case stepName:
		return msgAskName
	case stepMinutes:
		return msgAskMinutes
	case stepMarks:
		return msgAskMarks
	case stepNegative:
		return msgAskNegative
	case stepCreator:
		return msgAskCreator
	}
	return msgUseStart
}
