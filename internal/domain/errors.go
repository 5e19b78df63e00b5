package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates the chosen option slot is empty or out of range.
	ErrOptionNotFound = errors.New("option not found")
	// ErrNothingRecognized is returned when quiz text yields no questions at all.
	ErrNothingRecognized = errors.New("no questions recognized in quiz text")
	// ErrIdentityUnresolved is returned when submitting before the taker is known.
	ErrIdentityUnresolved = errors.New("identity not resolved")
	// ErrNotActive is returned for operations that need an active session.
	ErrNotActive = errors.New("quiz session is not active")
	// ErrNotSubmitted is returned when re-attempting a session that was never submitted.
	ErrNotSubmitted = errors.New("quiz session has not been submitted")
	// ErrUnauthenticated is returned when a token is missing or invalid.
	ErrUnauthenticated = errors.New("unauthenticated")
)
