// Package lexer turns PHP source text into a flat token stream. It knows just
// enough of the lexical grammar to keep keywords inside strings, comments and
// heredocs from leaking into the structural scans built on top of it.
package lexer

import (
	"bytes"
	"errors"
	"strings"
)

// ErrNotSourceFile is returned when the content does not begin with an open tag.
var ErrNotSourceFile = errors.New("content does not start with <?php open tag")

const openTag = "<?php"

// multi-character operators, longest first so that prefix matching is greedy.
var operators = []string{
	"?->", "...", "<=>", "**=", "===", "!==", "<<=", ">>=", "??=",
	"::", "->", "=>", "==", "!=", "<>", "<=", ">=", "&&", "||", "??",
	"++", "--", "+=", "-=", "*=", "/=", ".=", "%=", "&=", "|=", "^=",
	"<<", ">>", "**", "#[",
}

// HasOpenTag reports whether src starts with a PHP open tag.
func HasOpenTag(src []byte) bool {
	if len(src) < len(openTag) {
		return false
	}
	if !strings.EqualFold(string(src[:len(openTag)]), openTag) {
		return false
	}
	return len(src) == len(openTag) || isSpace(src[len(openTag)])
}

// Tokenize converts src into tokens. Whitespace is discarded; comments are kept
// with their own kinds so that callers can decide whether to look at them.
func Tokenize(src []byte) ([]Token, error) {
	if !HasOpenTag(src) {
		return nil, ErrNotSourceFile
	}
	l := &lexer{src: src, line: 1}
	l.run()
	return l.tokens, nil
}

type lexer struct {
	src    []byte
	pos    int
	line   int
	tokens []Token
	// index of the last significant token, -1 when none
	lastSig int
}

func (l *lexer) run() {
	l.lastSig = -1
	l.lexOpenTag()
	for l.pos < len(l.src) {
		l.step()
	}
}

func (l *lexer) emit(kind Kind, start, startLine int) {
	tok := Token{Kind: kind, Text: string(l.src[start:l.pos]), Line: startLine}
	l.push(tok)
}

func (l *lexer) push(tok Token) {
	l.tokens = append(l.tokens, tok)
	if tok.IsSignificant() {
		l.lastSig = len(l.tokens) - 1
	}
}

func (l *lexer) advance(n int) {
	end := l.pos + n
	if end > len(l.src) {
		end = len(l.src)
	}
	l.line += bytes.Count(l.src[l.pos:end], []byte{'\n'})
	l.pos = end
}

func (l *lexer) peek(offset int) byte {
	if l.pos+offset >= len(l.src) {
		return 0
	}
	return l.src[l.pos+offset]
}

func (l *lexer) hasPrefix(s string) bool {
	return bytes.HasPrefix(l.src[l.pos:], []byte(s))
}

// lexOpenTag consumes "<?php" (or "<?=") plus one trailing whitespace byte.
func (l *lexer) lexOpenTag() {
	start, startLine := l.pos, l.line
	if l.hasPrefix("<?=") {
		l.advance(3)
	} else {
		l.advance(len(openTag))
		if l.pos < len(l.src) && isSpace(l.src[l.pos]) {
			l.advance(1)
		}
	}
	l.emit(KindOpenTag, start, startLine)
}

// lexInlineHTML consumes everything up to the next open tag.
func (l *lexer) lexInlineHTML() {
	start, startLine := l.pos, l.line
	rest := l.src[l.pos:]
	idx := -1
	for i := 0; i+1 < len(rest); i++ {
		if rest[i] == '<' && rest[i+1] == '?' {
			tail := rest[i:]
			if bytes.HasPrefix(tail, []byte("<?=")) || (len(tail) >= len(openTag) && strings.EqualFold(string(tail[:len(openTag)]), openTag)) {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		l.advance(len(rest))
		if l.pos > start {
			l.emit(KindInlineHTML, start, startLine)
		}
		return
	}
	l.advance(idx)
	if l.pos > start {
		l.emit(KindInlineHTML, start, startLine)
	}
	l.lexOpenTag()
}

func (l *lexer) step() {
	c := l.src[l.pos]
	switch {
	case isSpace(c):
		l.advance(1)
	case c == '?' && l.peek(1) == '>':
		start, startLine := l.pos, l.line
		l.advance(2)
		if l.peek(0) == '\n' {
			l.advance(1)
		} else if l.peek(0) == '\r' && l.peek(1) == '\n' {
			l.advance(2)
		}
		l.emit(KindCloseTag, start, startLine)
		l.lexInlineHTML()
	case c == '#' && l.peek(1) == '[':
		start, startLine := l.pos, l.line
		l.advance(2)
		l.emit(KindPunct, start, startLine)
	case c == '#' || (c == '/' && l.peek(1) == '/'):
		l.lexLineComment()
	case c == '/' && l.peek(1) == '*':
		l.lexBlockComment()
	case c == '$' && isIdentStart(l.peek(1)):
		start, startLine := l.pos, l.line
		l.advance(1)
		for l.pos < len(l.src) && isIdentChar(l.src[l.pos]) {
			l.advance(1)
		}
		l.emit(KindVariable, start, startLine)
	case c == '\'':
		l.lexSingleQuoted()
	case c == '"':
		l.lexDoubleQuoted()
	case c == '`':
		l.lexBacktick()
	case c == '<' && l.hasPrefix("<<<") && l.lexHeredoc():
	case isDigit(c) || (c == '.' && isDigit(l.peek(1))):
		l.lexNumber()
	case isIdentStart(c) || (c == '\\' && isIdentStart(l.peek(1))):
		l.lexName()
	default:
		l.lexPunct()
	}
}

func (l *lexer) lexLineComment() {
	start, startLine := l.pos, l.line
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '\n' {
			break
		}
		if c == '?' && l.peek(1) == '>' {
			break
		}
		l.pos++
	}
	l.emit(KindComment, start, startLine)
}

func (l *lexer) lexBlockComment() {
	start, startLine := l.pos, l.line
	kind := KindComment
	if l.hasPrefix("/**") && isSpace(l.peek(3)) {
		kind = KindDocComment
	}
	end := bytes.Index(l.src[l.pos+2:], []byte("*/"))
	if end < 0 {
		l.advance(len(l.src) - l.pos)
	} else {
		l.advance(end + 4)
	}
	l.emit(kind, start, startLine)
}

func (l *lexer) lexSingleQuoted() {
	start, startLine := l.pos, l.line
	var value strings.Builder
	l.advance(1)
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '\\' && (l.peek(1) == '\\' || l.peek(1) == '\'') {
			value.WriteByte(l.peek(1))
			l.advance(2)
			continue
		}
		if c == '\'' {
			l.advance(1)
			break
		}
		value.WriteByte(c)
		l.advance(1)
	}
	l.push(Token{Kind: KindString, Text: string(l.src[start:l.pos]), Value: value.String(), Line: startLine})
}

func (l *lexer) lexDoubleQuoted() {
	start, startLine := l.pos, l.line
	interpolated := false
	l.advance(1)
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '\\' {
			l.advance(2)
			continue
		}
		if c == '"' {
			l.advance(1)
			break
		}
		if c == '$' && (isIdentStart(l.peek(1)) || l.peek(1) == '{') {
			interpolated = true
		}
		if c == '{' && l.peek(1) == '$' {
			interpolated = true
		}
		l.advance(1)
	}
	text := string(l.src[start:l.pos])
	if interpolated {
		l.push(Token{Kind: KindTemplate, Text: text, Line: startLine})
		return
	}
	body := strings.TrimPrefix(text, `"`)
	body = strings.TrimSuffix(body, `"`)
	l.push(Token{Kind: KindString, Text: text, Value: decodeDoubleQuoted(body), Line: startLine})
}

func (l *lexer) lexBacktick() {
	start, startLine := l.pos, l.line
	l.advance(1)
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '\\' {
			l.advance(2)
			continue
		}
		l.advance(1)
		if c == '`' {
			break
		}
	}
	l.emit(KindTemplate, start, startLine)
}

// lexHeredoc consumes a heredoc or nowdoc. It returns false, consuming nothing,
// when "<<<" is not followed by a valid label line.
func (l *lexer) lexHeredoc() bool {
	i := l.pos + 3
	for i < len(l.src) && (l.src[i] == ' ' || l.src[i] == '\t') {
		i++
	}
	quote := byte(0)
	if i < len(l.src) && (l.src[i] == '"' || l.src[i] == '\'') {
		quote = l.src[i]
		i++
	}
	labelStart := i
	if i >= len(l.src) || !isIdentStart(l.src[i]) {
		return false
	}
	for i < len(l.src) && isIdentChar(l.src[i]) {
		i++
	}
	label := l.src[labelStart:i]
	if quote != 0 {
		if i >= len(l.src) || l.src[i] != quote {
			return false
		}
		i++
	}
	if i < len(l.src) && l.src[i] == '\r' {
		i++
	}
	if i >= len(l.src) || l.src[i] != '\n' {
		return false
	}
	i++

	end := len(l.src)
	for lineStart := i; lineStart < len(l.src); {
		j := lineStart
		for j < len(l.src) && (l.src[j] == ' ' || l.src[j] == '\t') {
			j++
		}
		if bytes.HasPrefix(l.src[j:], label) {
			after := j + len(label)
			if after >= len(l.src) || !isIdentChar(l.src[after]) {
				end = after
				break
			}
		}
		nl := bytes.IndexByte(l.src[lineStart:], '\n')
		if nl < 0 {
			break
		}
		lineStart += nl + 1
	}

	start, startLine := l.pos, l.line
	l.advance(end - l.pos)
	l.emit(KindHeredoc, start, startLine)
	return true
}

func (l *lexer) lexNumber() {
	start, startLine := l.pos, l.line
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if isIdentChar(c) || (c == '.' && isDigit(l.peek(1))) {
			l.advance(1)
			continue
		}
		break
	}
	l.emit(KindNumber, start, startLine)
}

func (l *lexer) lexName() {
	start, startLine := l.pos, l.line
	if l.src[l.pos] == '\\' {
		l.advance(1)
	}
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if isIdentChar(c) {
			l.advance(1)
			continue
		}
		if c == '\\' && isIdentStart(l.peek(1)) {
			l.advance(1)
			continue
		}
		break
	}
	text := string(l.src[start:l.pos])
	kind := KindIdentifier
	if !strings.Contains(text, `\`) && !l.inMemberPosition() {
		if kw, ok := keywords[strings.ToLower(text)]; ok {
			kind = kw
		}
	}
	l.push(Token{Kind: kind, Text: text, Line: startLine})
}

// inMemberPosition reports whether the next word names a member or a declared
// function, where reserved words are legal identifiers.
func (l *lexer) inMemberPosition() bool {
	if l.lastSig < 0 {
		return false
	}
	prev := l.tokens[l.lastSig]
	switch {
	case prev.IsPunct("->"), prev.IsPunct("?->"), prev.IsPunct("::"):
		return true
	case prev.Kind == KindFunction, prev.Kind == KindConst:
		return true
	}
	return false
}

func (l *lexer) lexPunct() {
	start, startLine := l.pos, l.line
	for _, op := range operators {
		if l.hasPrefix(op) {
			l.advance(len(op))
			l.emit(KindPunct, start, startLine)
			return
		}
	}
	l.advance(1)
	l.emit(KindPunct, start, startLine)
}

func decodeDoubleQuoted(body string) string {
	if !strings.Contains(body, `\`) {
		return body
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 >= len(body) {
			b.WriteByte(c)
			continue
		}
		next := body[i+1]
		switch next {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'v':
			b.WriteByte('\v')
		case 'f':
			b.WriteByte('\f')
		case 'e':
			b.WriteByte(0x1b)
		case '\\', '"', '$':
			b.WriteByte(next)
		default:
			b.WriteByte(c)
			b.WriteByte(next)
		}
		i++
	}
	return b.String()
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
