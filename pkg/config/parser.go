package config

import "fmt"

// Parser turns lexer tokens into a ConfigTree using the brace/semicolon
// hierarchical form ("system { host-name dhcpd1; }"), the form a config
// file is persisted in. The flat "set"/"delete" administrative form is
// handled separately by ParseSetCommand.
type Parser struct {
	lex    *Lexer
	peeked *Token
}

// NewParser creates a Parser over the given configuration text.
func NewParser(input string) *Parser {
	return &Parser{lex: NewLexer(input)}
}

func (p *Parser) next() Token {
	if p.peeked != nil {
		t := *p.peeked
		p.peeked = nil
		return t
	}
	return p.lex.Next()
}

func (p *Parser) peek() Token {
	if p.peeked == nil {
		t := p.lex.Next()
		p.peeked = &t
	}
	return *p.peeked
}

// Parse consumes the entire input and returns the resulting tree.
func (p *Parser) Parse() (*ConfigTree, error) {
	children, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ConfigTree{Children: children}, nil
}

// parseBlock parses statements until a '}' or EOF is reached (the '}'
// itself is left unconsumed, for the caller to check).
func (p *Parser) parseBlock() ([]*Node, error) {
	var nodes []*Node
	for {
		tok := p.peek()
		if tok.Type == TokenEOF || tok.Type == TokenRBrace {
			return nodes, nil
		}
		node, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
}

func (p *Parser) parseStatement() (*Node, error) {
	var keys []string
	first := p.peek()
	line, col := first.Line, first.Column

	for {
		tok := p.peek()
		switch tok.Type {
		case TokenIdentifier, TokenString:
			keys = append(keys, tok.Value)
			p.next()
		case TokenSemicolon:
			p.next()
			if len(keys) == 0 {
				return nil, fmt.Errorf("line %d: empty statement", tok.Line)
			}
			return &Node{Keys: keys, IsLeaf: true, Line: line, Column: col}, nil
		case TokenLBrace:
			p.next()
			children, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			closing := p.next()
			if closing.Type != TokenRBrace {
				return nil, fmt.Errorf("line %d: expected '}'", closing.Line)
			}
			if len(keys) == 0 {
				return nil, fmt.Errorf("line %d: block with no name", tok.Line)
			}
			return &Node{Keys: keys, Children: children, Line: line, Column: col}, nil
		case TokenEOF:
			return nil, fmt.Errorf("line %d: unexpected end of input, expected ';' or '{'", tok.Line)
		case TokenError:
			return nil, fmt.Errorf("line %d: %s", tok.Line, tok.Value)
		default:
			return nil, fmt.Errorf("line %d: unexpected token %s", tok.Line, tok.Type)
		}
	}
}

// ParseSetCommand tokenizes one administrative "set ..." or "delete ..."
// line into a flat path, stripping the leading verb. The verb itself is
// the caller's concern (Store.Set/Delete dispatch on it); this just
// produces the path SetPath/DeletePath consume.
func ParseSetCommand(line string) ([]string, error) {
	lex := NewLexer(line)
	var tokens []string

loop:
	for {
		tok := lex.Next()
		switch tok.Type {
		case TokenEOF:
			break loop
		case TokenIdentifier, TokenString:
			tokens = append(tokens, tok.Value)
		case TokenSemicolon:
			// tolerate a trailing terminator on a one-line command
		case TokenError:
			return nil, fmt.Errorf("line %d: %s", tok.Line, tok.Value)
		default:
			return nil, fmt.Errorf("line %d: unexpected token %s in command", tok.Line, tok.Type)
		}
	}

	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	switch tokens[0] {
	case "set", "delete", "deactivate", "activate":
		tokens = tokens[1:]
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("missing path after %q", line)
	}
	return tokens, nil
}
