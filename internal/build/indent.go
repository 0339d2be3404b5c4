package build

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
)

const indentUnit = "  "

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// Content of these elements is whitespace sensitive or not markup.
var verbatimElements = map[string]bool{
	"pre": true, "textarea": true, "script": true, "style": true,
}

type markupToken struct {
	kind html.TokenType
	raw  string
	name string
}

// IndentHTML re-renders markup with one element per line, nested elements
// indented by two spaces. An element holding only text stays on one line.
// Text is trimmed except inside pre, textarea, script and style.
func IndentHTML(src []byte) ([]byte, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	depth := 0
	line := func(parts ...string) {
		buf.WriteString(strings.Repeat(indentUnit, depth))
		for _, p := range parts {
			buf.WriteString(p)
		}
		buf.WriteByte('\n')
	}

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]

		switch tok.kind {
		case html.DoctypeToken, html.CommentToken, html.SelfClosingTagToken:
			line(tok.raw)

		case html.TextToken:
			if text := strings.TrimSpace(tok.raw); text != "" {
				line(text)
			}

		case html.StartTagToken:
			switch {
			case voidElements[tok.name]:
				line(tok.raw)

			case verbatimElements[tok.name]:
				parts := []string{tok.raw}
				for i+1 < len(tokens) {
					i++
					parts = append(parts, tokens[i].raw)
					if tokens[i].kind == html.EndTagToken && tokens[i].name == tok.name {
						break
					}
				}
				line(parts...)

			case closes(tokens, i+1, tok.name):
				line(tok.raw, tokens[i+1].raw)
				i++

			case i+2 < len(tokens) && tokens[i+1].kind == html.TextToken && closes(tokens, i+2, tok.name):
				line(tok.raw, strings.TrimSpace(tokens[i+1].raw), tokens[i+2].raw)
				i += 2

			default:
				line(tok.raw)
				depth++
			}

		case html.EndTagToken:
			if depth > 0 {
				depth--
			}
			line(tok.raw)
		}
	}

	return buf.Bytes(), nil
}

func closes(tokens []markupToken, i int, name string) bool {
	return i < len(tokens) && tokens[i].kind == html.EndTagToken && tokens[i].name == name
}

func tokenize(src []byte) ([]markupToken, error) {
	z := html.NewTokenizer(bytes.NewReader(src))
	var tokens []markupToken

	for {
		kind := z.Next()
		if kind == html.ErrorToken {
			if errors.Is(z.Err(), io.EOF) {
				return tokens, nil
			}
			return nil, z.Err()
		}

		// Raw must be copied before TagName, which lower-cases in place.
		tok := markupToken{kind: kind, raw: string(z.Raw())}
		switch kind {
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tok.name = string(name)
		}
		tokens = append(tokens, tok)
	}
}
