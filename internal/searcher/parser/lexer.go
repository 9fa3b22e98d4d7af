package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokString
	tokOp
)

type token struct {
	kind   tokenKind
	text   string // source text, quotes included for strings
	value  string // unescaped string contents; equal to text otherwise
	offset int
}

// lower returns the keyword form of a bare word; other tokens never match
// keywords, so a quoted "fetch" stays a value.
func (t token) lower() string {
	if t.kind != tokWord {
		return ""
	}
	return strings.ToLower(t.text)
}

func (t token) describe() string {
	switch t.kind {
	case tokEOF:
		return "end of query"
	case tokString:
		return "string " + t.text
	default:
		return "\"" + t.text + "\""
	}
}

func isOpByte(c byte) bool {
	return c == '=' || c == '!' || c == '<' || c == '>'
}

func isQuote(c byte) bool {
	return c == '"' || c == '\''
}

// lex splits text into tokens. Whitespace separates tokens but is otherwise
// ignored; operators need no surrounding whitespace.
func lex(text string) ([]token, error) {
	tokens := make([]token, 0, 8)
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) {
			i += size
			continue
		}
		c := text[i]
		switch {
		case isQuote(c):
			tok, next, err := lexString(text, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = next
		case isOpByte(c):
			tok, next, err := lexOp(text, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = next
		default:
			start := i
			for i < len(text) {
				r, size := utf8.DecodeRuneInString(text[i:])
				if unicode.IsSpace(r) || isOpByte(text[i]) || isQuote(text[i]) {
					break
				}
				i += size
			}
			word := text[start:i]
			tokens = append(tokens, token{kind: tokWord, text: word, value: word, offset: start})
		}
	}
	tokens = append(tokens, token{kind: tokEOF, offset: len(text)})
	return tokens, nil
}

func lexOp(text string, start int) (token, int, error) {
	c := text[start]
	two := start+1 < len(text) && text[start+1] == '='
	switch {
	case c == '!' && two:
		return token{kind: tokOp, text: "!=", value: "!=", offset: start}, start + 2, nil
	case c == '!':
		return token{}, 0, &ParseError{Offset: start, Expected: "\"!=\"", Found: "\"!\""}
	case (c == '<' || c == '>') && two:
		op := text[start : start+2]
		return token{kind: tokOp, text: op, value: op, offset: start}, start + 2, nil
	default:
		op := text[start : start+1]
		return token{kind: tokOp, text: op, value: op, offset: start}, start + 1, nil
	}
}

// lexString reads a quoted string starting at the opening quote. A backslash
// escapes the next character.
func lexString(text string, start int) (token, int, error) {
	quote := text[start]
	var b strings.Builder
	i := start + 1
	for i < len(text) {
		c := text[i]
		switch {
		case c == '\\' && i+1 < len(text):
			b.WriteByte(text[i+1])
			i += 2
		case c == quote:
			return token{kind: tokString, text: text[start : i+1], value: b.String(), offset: start}, i + 1, nil
		default:
			b.WriteByte(c)
			i++
		}
	}
	return token{}, 0, &ParseError{Offset: start, Expected: "closing " + string(quote), Found: "end of query"}
}
