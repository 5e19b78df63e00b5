package telegram

import (
	"fmt"
	"html"
	"strconv"

	"quizbook-service/internal/domain"
)

const (
	msgWelcome = "<b>Quiz generator</b>\n\nSend me a quiz as a text file (.txt) and I will publish it.\n" +
		"Use /cancel at any time to stop."
	msgHelp = "<b>How to publish a quiz</b>\n\n" +
		"1. /start\n" +
		"2. Upload the quiz as a .txt file\n" +
		"3. Answer the questions about name, time and marking\n\n" +
		"Supported formats:\n" +
		"<code>1. Question</code> / <code>a) option</code> / <code>Correct option:-a</code>\n" +
		"<code>Q.1 Question</code> / <code>(a) option</code> / <code>Answer: (a)</code>\n\n" +
		"A second line under each question or option is read as its translation."

	msgSendFile        = "Please send a text file (.txt)"
	msgNothingParsed   = "Could not parse any questions from the file. Please check the format."
	msgAskMinutes      = "Enter time in minutes:"
	msgAskMarks        = "Enter marks per question:"
	msgAskNegative     = "Enter negative marking per wrong answer (0 for none):"
	msgAskCreator      = "Enter creator name:"
	msgAskName         = "Please enter the quiz name:"
	msgBadMinutes      = "Please enter a valid number (minutes):"
	msgBadMarks        = "Please enter a valid number for marks:"
	msgBadNegative     = "Please enter a valid number for negative marking:"
	msgCancelled       = "Operation cancelled."
	msgNothingToCancel = "Nothing to cancel. Send /start to publish a quiz."
	msgUseStart        = "Send /start to publish a quiz."
	msgNotAllowed      = "You are not allowed to publish quizzes."
	msgFileTooLarge    = "The file is too large."
	msgDownloadFailed  = "Could not download the file, please try again."
	msgPublishFailed   = "Could not publish the quiz, please try again later."
	msgUnknownCommand  = "Unknown command. Send /help for usage."
)

func msgParsed(n int) string {
	return fmt.Sprintf("Parsed %d questions successfully! Now enter the quiz name:", n)
}

func msgStatus(live int) string {
	return fmt.Sprintf("Bot is running.\nLive quiz sessions: %d", live)
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func quizSummary(quiz domain.Quiz, n int) string {
	creator := quiz.Creator
	if creator == "" {
		creator = "-"
	}
	return fmt.Sprintf(
		"<b>Quiz Summary</b>\n\n"+
			"<b>Quiz ID:</b> <code>%s</code>\n"+
			"<b>Title:</b> %s\n"+
			"<b>Total questions:</b> %d\n"+
			"<b>Time:</b> %d minutes\n"+
			"<b>Each question mark:</b> %s\n"+
			"<b>Negative marking:</b> %s\n"+
			"<b>Created by:</b> %s",
		html.EscapeString(quiz.ID),
		html.EscapeString(quiz.Title),
		n,
		quiz.TimeLimitSeconds/60,
		formatScore(quiz.CorrectScore),
		formatScore(quiz.NegativeScore),
		html.EscapeString(creator),
	)
}
