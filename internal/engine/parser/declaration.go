package parser

import (
	"microscope/internal/engine/lexer"
	"strings"
)

type declState int

const (
	stateSeeking declState = iota
	stateInNamespace
	stateInTypeHeader
	stateAfterExtends
	stateAfterImplements
	stateDone
)

// ExtractDeclaration finds the first namespace statement and the first
// class/interface/trait header in tokens. Only the first type declaration of a
// file is considered; scanning stops once its header is complete.
func ExtractDeclaration(tokens []lexer.Token) DeclarationInfo {
	var info DeclarationInfo
	var ns strings.Builder
	namespaceSeen := false

	sig := significant(tokens)
	state := stateSeeking

	for i := 0; i < len(sig) && state != stateDone; i++ {
		tok := sig[i]
		switch state {
		case stateSeeking:
			switch tok.Kind {
			case lexer.KindNamespace:
				if namespaceSeen {
					continue
				}
				namespaceSeen = true
				info.NamespaceLine = tok.Line
				state = stateInNamespace
			case lexer.KindClass, lexer.KindInterface, lexer.KindTrait:
				if !opensDeclaration(sig, i) {
					continue
				}
				info.Kind = declarationKind(tok.Kind)
				info.TypeLine = tok.Line
				state = stateInTypeHeader
			}

		case stateInNamespace:
			if tok.Kind == lexer.KindIdentifier {
				ns.WriteString(tok.Text)
				continue
			}
			info.Namespace = TrimSeparators(ns.String())
			state = stateSeeking
			if tok.Kind == lexer.KindClass || tok.Kind == lexer.KindInterface || tok.Kind == lexer.KindTrait {
				i--
			}

		case stateInTypeHeader:
			switch {
			case tok.Kind == lexer.KindIdentifier && info.TypeName == "":
				info.TypeName = tok.Text
			case tok.Kind == lexer.KindExtends:
				state = stateAfterExtends
			case tok.Kind == lexer.KindImplements:
				state = stateAfterImplements
			case tok.IsPunct("{"):
				state = stateDone
			}

		case stateAfterExtends:
			switch {
			case tok.Kind == lexer.KindIdentifier:
				// interfaces may extend several parents; the first one is the parent
				if info.Parent == "" {
					info.Parent = tok.Text
				} else {
					info.Interfaces = append(info.Interfaces, tok.Text)
				}
			case tok.Kind == lexer.KindImplements:
				state = stateAfterImplements
			case tok.IsPunct("{"):
				state = stateDone
			}

		case stateAfterImplements:
			switch {
			case tok.Kind == lexer.KindIdentifier:
				info.Interfaces = append(info.Interfaces, tok.Text)
			case tok.IsPunct("{"):
				state = stateDone
			}
		}
	}

	if state == stateInNamespace {
		info.Namespace = TrimSeparators(ns.String())
	}
	if info.TypeName == "" {
		info.Kind = KindNone
		info.TypeLine = 0
		info.Parent = ""
		info.Interfaces = nil
	}
	return info
}

// opensDeclaration is false for anonymous classes and for keywords not
// followed by a name.
func opensDeclaration(sig []lexer.Token, i int) bool {
	if i+1 >= len(sig) || sig[i+1].Kind != lexer.KindIdentifier {
		return false
	}
	if IsQualified(sig[i+1].Text) {
		return false
	}
	if i > 0 && sig[i-1].Kind == lexer.KindNew {
		return false
	}
	return true
}

func declarationKind(kind lexer.Kind) DeclarationKind {
	switch kind {
	case lexer.KindClass:
		return KindClass
	case lexer.KindInterface:
		return KindInterface
	case lexer.KindTrait:
		return KindTrait
	}
	return KindNone
}
