package chat

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Nickname identifies a registered session. Nicknames are case-sensitive.
type Nickname string

// ChannelName identifies a channel. Any token is accepted, no sigil required.
type ChannelName string

var validate = validator.New()

// validateName checks a nickname or channel name: any non-empty token.
// Names come out of strings.Fields, so they never contain whitespace, and
// their length is bounded by the transport's line limit.
func validateName(name string) error {
	if err := validate.Var(name, "required"); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
