// Package prompt loads prompt-template documents, renders them against a
// chain context and parses the result into an ordered message list.
package prompt

import "errors"

// ErrPromptFormat reports a prompt document that does not render to a
// role/content mapping or a list of such mappings.
var ErrPromptFormat = errors.New("prompt format error")

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is one role/content fragment of a composed prompt.
type Message struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}
