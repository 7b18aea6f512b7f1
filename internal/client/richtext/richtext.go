// Package richtext converts editor content to and from the portable payload
// stored on drafts and exchanged with the backend: structured JSON wrapped in
// standard base64 so it survives text-only transports.
package richtext

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// BlockType names the kind of a content block.
type BlockType string

const (
	Paragraph BlockType = "paragraph"
	Heading   BlockType = "heading"
	Quote     BlockType = "quote"
	ListItem  BlockType = "list-item"
	Code      BlockType = "code"
)

var ErrMalformed = errors.New("malformed rich text payload")

// Block is one unit of editor content. Level is the heading level or the
// list nesting depth and is zero for other block types.
type Block struct {
	Type  BlockType `json:"type"`
	Text  string    `json:"text"`
	Level int       `json:"level,omitempty"`
}

// Document is the editor state as far as the draft is concerned.
type Document struct {
	Blocks []Block `json:"blocks"`
}

// IsEmpty reports whether the document has no blocks at all.
func (d Document) IsEmpty() bool { return len(d.Blocks) == 0 }

// Encode serializes doc. An empty document encodes to "" so a draft without
// a description keeps the "no text yet" value.
func Encode(doc Document) string {
	if doc.IsEmpty() {
		return ""
	}
	blocks := make([]Block, len(doc.Blocks))
	for i, b := range doc.Blocks {
		blocks[i] = normalize(b)
	}
	raw, err := json.Marshal(Document{Blocks: blocks})
	if err != nil {
		// Block holds only strings and ints.
		panic(fmt.Sprintf("richtext: marshal: %v", err))
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// Decode parses payload and returns an empty document for an empty or
// malformed payload.
func Decode(payload string) Document {
	doc, err := DecodeStrict(payload)
	if err != nil {
		return Document{}
	}
	return doc
}

// DecodeStrict is Decode that reports why a payload could not be parsed.
func DecodeStrict(payload string) (Document, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return Document{}, nil
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for i, b := range doc.Blocks {
		doc.Blocks[i] = normalize(b)
	}
	if len(doc.Blocks) == 0 {
		doc.Blocks = nil
	}
	return doc, nil
}

// HasVisibleText reports whether any block carries a rune that renders as
// something other than blank space.
func HasVisibleText(doc Document) bool {
	for _, b := range doc.Blocks {
		for _, r := range b.Text {
			if visible(r) {
				return true
			}
		}
	}
	return false
}

// Equal reports whether a and b hold the same content.
func Equal(a, b Document) bool {
	if len(a.Blocks) != len(b.Blocks) {
		return false
	}
	for i := range a.Blocks {
		if normalize(a.Blocks[i]) != normalize(b.Blocks[i]) {
			return false
		}
	}
	return true
}

// FromPlainText builds a document with one paragraph per line. Blank input
// yields an empty document.
func FromPlainText(s string) Document {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if strings.TrimSpace(s) == "" {
		return Document{}
	}
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	doc := Document{Blocks: make([]Block, 0, len(lines))}
	for _, l := range lines {
		doc.Blocks = append(doc.Blocks, Block{Type: Paragraph, Text: l})
	}
	return doc
}

// PlainText flattens the document to one line per block.
func PlainText(doc Document) string {
	var sb strings.Builder
	for i, b := range doc.Blocks {
		if i > 0 {
			sb.WriteByte('\n')
		}
		switch b.Type {
		case Heading:
			sb.WriteString(strings.Repeat("#", max(b.Level, 1)))
			sb.WriteByte(' ')
		case ListItem:
			sb.WriteString(strings.Repeat("  ", b.Level))
			sb.WriteString("- ")
		case Quote:
			sb.WriteString("> ")
		}
		sb.WriteString(b.Text)
	}
	return sb.String()
}

func normalize(b Block) Block {
	switch b.Type {
	case Heading, Quote, ListItem, Code:
	default:
		b.Type = Paragraph
	}
	switch {
	case b.Level < 0:
		b.Level = 0
	case b.Type != Heading && b.Type != ListItem:
		b.Level = 0
	}
	return b
}

func visible(r rune) bool {
	switch r {
	case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff', '\u00ad':
		return false
	}
	return !unicode.IsSpace(r) && !unicode.IsControl(r)
}
