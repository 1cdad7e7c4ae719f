package render

import (
	"strings"

	"github.com/domini04/bluestar/runtime/types"
)

// Notion caps a rich text object at 2000 characters.
const notionTextLimit = 2000

// NotionBlock is one child block of a Notion page.
type NotionBlock struct {
	Object           string      `json:"object"`
	Type             string      `json:"type"`
	Paragraph        *NotionText `json:"paragraph,omitempty"`
	Heading1         *NotionText `json:"heading_1,omitempty"`
	Heading2         *NotionText `json:"heading_2,omitempty"`
	Heading3         *NotionText `json:"heading_3,omitempty"`
	BulletedListItem *NotionText `json:"bulleted_list_item,omitempty"`
	Code             *NotionCode `json:"code,omitempty"`
}

// NotionText is the body of a text-like block.
type NotionText struct {
	RichText []RichText `json:"rich_text"`
}

// NotionCode is the body of a code block.
type NotionCode struct {
	RichText []RichText `json:"rich_text"`
	Language string     `json:"language"`
}

// RichText is a plain text run.
type RichText struct {
	Type string      `json:"type"`
	Text TextContent `json:"text"`
}

// TextContent holds the characters of a RichText run.
type TextContent struct {
	Content string `json:"content"`
}

// NewRichText splits s into runs that respect Notion's length limit.
func NewRichText(s string) []RichText {
	var out []RichText
	for len(s) > notionTextLimit {
		cut := notionTextLimit
		// Do not split a UTF-8 sequence.
		for cut > 0 && !startsRune(s[cut]) {
			cut--
		}
		out = append(out, RichText{Type: "text", Text: TextContent{Content: s[:cut]}})
		s = s[cut:]
	}
	return append(out, RichText{Type: "text", Text: TextContent{Content: s}})
}

func startsRune(b byte) bool { return b&0xC0 != 0x80 }

type notionWriter struct {
	blocks []NotionBlock
}

var _ types.BlockVisitor = (*notionWriter)(nil)

func (w *notionWriter) Paragraph(content string) error {
	w.blocks = append(w.blocks, NotionBlock{Object: "block", Type: "paragraph", Paragraph: text(content)})
	return nil
}

func (w *notionWriter) Heading(level int, content string) error {
	b := NotionBlock{Object: "block"}
	switch clampLevel(level, 3) {
	case 1:
		b.Type, b.Heading1 = "heading_1", text(content)
	case 2:
		b.Type, b.Heading2 = "heading_2", text(content)
	default:
		b.Type, b.Heading3 = "heading_3", text(content)
	}
	w.blocks = append(w.blocks, b)
	return nil
}

func (w *notionWriter) List(items []string) error {
	for _, item := range items {
		w.blocks = append(w.blocks, NotionBlock{Object: "block", Type: "bulleted_list_item", BulletedListItem: text(item)})
	}
	return nil
}

func (w *notionWriter) Code(language, content string) error {
	lang := strings.ToLower(strings.TrimSpace(language))
	if lang == "" {
		lang = "plain text"
	}
	w.blocks = append(w.blocks, NotionBlock{
		Object: "block",
		Type:   "code",
		Code:   &NotionCode{RichText: NewRichText(content), Language: lang},
	})
	return nil
}

func text(s string) *NotionText {
	return &NotionText{RichText: NewRichText(s)}
}

// NotionBlocks converts body blocks to Notion children. A list becomes one
// bulleted item per entry; heading levels above 3 are clamped.
func NotionBlocks(blocks []types.ContentBlock) ([]NotionBlock, error) {
	w := &notionWriter{}
	if err := types.Walk(blocks, w); err != nil {
		return nil, err
	}
	return w.blocks, nil
}
