package types

import (
	"fmt"
	"strings"
)

// DateLayout is the format of Document.Date.
const DateLayout = "2006-01-02"

// Document is the synthesized, publishable post.
type Document struct {
	Title   string         `json:"title"`
	Author  string         `json:"author"`
	Date    string         `json:"date"`
	Tags    []string       `json:"tags"`
	Summary string         `json:"summary"`
	Body    []ContentBlock `json:"body"`
}

// PublishChoice is the terminal decision made at the publish-decision stage.
type PublishChoice string

// Publishing choices. The zero value means no choice has been made.
const (
	PublishNone    PublishChoice = ""
	PublishGhost   PublishChoice = "ghost"
	PublishNotion  PublishChoice = "notion"
	PublishLocal   PublishChoice = "local"
	PublishDiscard PublishChoice = "discard"
)

// PublishChoices lists the valid tokens in menu order.
var PublishChoices = []PublishChoice{PublishGhost, PublishNotion, PublishLocal, PublishDiscard}

// ParsePublishChoice normalizes a user-supplied token. Only the four
// recognized tokens are accepted.
func ParsePublishChoice(s string) (PublishChoice, error) {
	c := PublishChoice(strings.ToLower(strings.TrimSpace(s)))
	if c.Valid() {
		return c, nil
	}
	return PublishNone, fmt.Errorf("invalid publishing choice %q (want one of %s)", s, choiceList())
}

// Valid reports whether c is one of the four recognized tokens.
func (c PublishChoice) Valid() bool {
	switch c {
	case PublishGhost, PublishNotion, PublishLocal, PublishDiscard:
		return true
	default:
		return false
	}
}

func choiceList() string {
	names := make([]string, len(PublishChoices))
	for i, c := range PublishChoices {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
