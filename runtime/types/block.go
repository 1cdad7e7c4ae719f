package types

import (
	"errors"
	"fmt"
)

// BlockType is the discriminant of a ContentBlock.
type BlockType string

// Content block kinds. The set is closed: renderers implement BlockVisitor,
// so adding a kind means adding a visitor method every renderer must provide.
const (
	BlockParagraph BlockType = "paragraph"
	BlockHeading   BlockType = "heading"
	BlockList      BlockType = "list"
	BlockCode      BlockType = "code"
)

// BlockTypes lists every kind in declaration order.
var BlockTypes = []BlockType{BlockParagraph, BlockHeading, BlockList, BlockCode}

// ErrUnknownBlock is returned when a block carries an unrecognized discriminant.
var ErrUnknownBlock = errors.New("unknown content block type")

// ContentBlock is one element of a document body. Type selects which of the
// remaining fields are meaningful:
//
//	paragraph: Content
//	heading:   Level (1-6), Content
//	list:      Items
//	code:      Language, Content
type ContentBlock struct {
	Type     BlockType `json:"type"`
	Content  string    `json:"content,omitempty"`
	Level    int       `json:"level,omitempty"`
	Items    []string  `json:"items,omitempty"`
	Language string    `json:"language,omitempty"`
}

// BlockVisitor receives one call per block kind.
type BlockVisitor interface {
	Paragraph(content string) error
	Heading(level int, content string) error
	List(items []string) error
	Code(language, content string) error
}

// Accept dispatches the block to the visitor method for its kind.
func (b ContentBlock) Accept(v BlockVisitor) error {
	switch b.Type {
	case BlockParagraph:
		return v.Paragraph(b.Content)
	case BlockHeading:
		return v.Heading(b.Level, b.Content)
	case BlockList:
		return v.List(b.Items)
	case BlockCode:
		return v.Code(b.Language, b.Content)
	default:
		return fmt.Errorf("%w: %q (want one of %v)", ErrUnknownBlock, b.Type, BlockTypes)
	}
}

// Walk visits every block in order and stops at the first error.
func Walk(blocks []ContentBlock, v BlockVisitor) error {
	for i, b := range blocks {
		if err := b.Accept(v); err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
	}
	return nil
}

// Paragraph builds a paragraph block.
func Paragraph(content string) ContentBlock {
	return ContentBlock{Type: BlockParagraph, Content: content}
}

// Heading builds a heading block.
func Heading(level int, content string) ContentBlock {
	return ContentBlock{Type: BlockHeading, Level: level, Content: content}
}

// List builds a list block.
func List(items ...string) ContentBlock {
	return ContentBlock{Type: BlockList, Items: items}
}

// Code builds a code block.
func Code(language, content string) ContentBlock {
	return ContentBlock{Type: BlockCode, Language: language, Content: content}
}
