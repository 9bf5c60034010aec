package chat

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrTimeout is returned when a request exceeded the client deadline.
	ErrTimeout = errors.New("request timed out")

	// ErrNetwork is returned for transport failures other than timeouts.
	ErrNetwork = errors.New("network error")

	// ErrParseResponse is returned when a response body or stream line is
	// not valid JSON in the expected shape.
	ErrParseResponse = errors.New("could not parse response")

	// ErrMissingUsageData is returned when a non-streaming response lacks
	// the usage block needed for token accounting.
	ErrMissingUsageData = errors.New("response is missing usage data")

	// ErrNoCharacterPrompts is returned when a multi-character chat is
	// built from a prompt set without any characters.
	ErrNoCharacterPrompts = errors.New("no character prompts configured")

	// ErrNoCharacterSelected is returned when a multi-character chat is
	// asked to speak before a character was chosen.
	ErrNoCharacterSelected = errors.New("no character selected")
)

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error with status code: %d", e.StatusCode)
}

// UndefinedCharacterError is returned when a character name has no prompt.
type UndefinedCharacterError struct {
	Name string
}

func (e *UndefinedCharacterError) Error() string {
	return fmt.Sprintf("character %q is not defined", e.Name)
}
