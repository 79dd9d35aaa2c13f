package lexer

import "strings"

// Kind classifies a token produced by Tokenize.
type Kind int

const (
	KindPunct Kind = iota
	KindOpenTag
	KindCloseTag
	KindInlineHTML
	KindComment
	KindDocComment
	KindVariable
	KindIdentifier
	KindString
	KindTemplate
	KindHeredoc
	KindNumber

	KindNamespace
	KindUse
	KindClass
	KindInterface
	KindTrait
	KindExtends
	KindImplements
	KindFunction
	KindFn
	KindNew
	KindInstanceof
	KindAs
	KindConst
	KindInsteadof
	KindCatch
	KindKeyword
)

var kindNames = map[Kind]string{
	KindPunct:      "punct",
	KindOpenTag:    "open_tag",
	KindCloseTag:   "close_tag",
	KindInlineHTML: "inline_html",
	KindComment:    "comment",
	KindDocComment: "doc_comment",
	KindVariable:   "variable",
	KindIdentifier: "identifier",
	KindString:     "string",
	KindTemplate:   "template",
	KindHeredoc:    "heredoc",
	KindNumber:     "number",
	KindNamespace:  "namespace",
	KindUse:        "use",
	KindClass:      "class",
	KindInterface:  "interface",
	KindTrait:      "trait",
	KindExtends:    "extends",
	KindImplements: "implements",
	KindFunction:   "function",
	KindFn:         "fn",
	KindNew:        "new",
	KindInstanceof: "instanceof",
	KindAs:         "as",
	KindConst:      "const",
	KindInsteadof:  "insteadof",
	KindCatch:      "catch",
	KindKeyword:    "keyword",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Token is a single lexical unit. Value is only set for KindString and holds
// the literal body with quotes removed and escapes decoded.
type Token struct {
	Kind  Kind
	Text  string
	Value string
	Line  int
}

// IsPunct reports whether t is the punctuation s.
func (t Token) IsPunct(s string) bool {
	return t.Kind == KindPunct && t.Text == s
}

// IsKeyword reports whether t is a reserved word equal to word (case-insensitive).
func (t Token) IsKeyword(word string) bool {
	return t.Kind >= KindNamespace && strings.EqualFold(t.Text, word)
}

// IsSignificant is false for comments and inline HTML.
func (t Token) IsSignificant() bool {
	switch t.Kind {
	case KindComment, KindDocComment, KindInlineHTML, KindOpenTag, KindCloseTag:
		return false
	}
	return true
}

// keywords maps lower-cased reserved words to their kinds. Words absent from the
// dedicated kinds are KindKeyword.
var keywords = map[string]Kind{
	"namespace":  KindNamespace,
	"use":        KindUse,
	"class":      KindClass,
	"interface":  KindInterface,
	"trait":      KindTrait,
	"extends":    KindExtends,
	"implements": KindImplements,
	"function":   KindFunction,
	"fn":         KindFn,
	"new":        KindNew,
	"instanceof": KindInstanceof,
	"as":         KindAs,
	"const":      KindConst,
	"insteadof":  KindInsteadof,
	"catch":      KindCatch,

	"abstract": KindKeyword, "and": KindKeyword, "array": KindKeyword, "break": KindKeyword,
	"callable": KindKeyword, "case": KindKeyword, "clone": KindKeyword, "continue": KindKeyword,
	"declare": KindKeyword, "default": KindKeyword, "do": KindKeyword, "echo": KindKeyword,
	"else": KindKeyword, "elseif": KindKeyword, "empty": KindKeyword, "enddeclare": KindKeyword,
	"endfor": KindKeyword, "endforeach": KindKeyword, "endif": KindKeyword, "endswitch": KindKeyword,
	"endwhile": KindKeyword, "eval": KindKeyword, "exit": KindKeyword, "die": KindKeyword,
	"final": KindKeyword, "finally": KindKeyword, "for": KindKeyword, "foreach": KindKeyword,
	"global": KindKeyword, "goto": KindKeyword, "if": KindKeyword, "include": KindKeyword,
	"include_once": KindKeyword, "isset": KindKeyword, "list": KindKeyword, "match": KindKeyword,
	"or": KindKeyword, "print": KindKeyword, "private": KindKeyword, "protected": KindKeyword,
	"public": KindKeyword, "readonly": KindKeyword, "require": KindKeyword, "require_once": KindKeyword,
	"return": KindKeyword, "static": KindKeyword, "switch": KindKeyword, "throw": KindKeyword,
	"try": KindKeyword, "unset": KindKeyword, "var": KindKeyword, "while": KindKeyword,
	"xor": KindKeyword, "yield": KindKeyword,
}
