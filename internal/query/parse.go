package query

import (
	"strconv"
	"strings"
)

// Parse turns a client query string into a predicate tree plus an optional
// sort clause. The grammar is a small CQL-style subset:
//
//	expr    := or
//	or      := and ("or" and)*
//	and     := unary ("and" unary)*
//	unary   := "not" unary | primary
//	primary := "(" expr ")" | "*" | field REL value
//	REL     := "==" | "=" | "<>" | "<" | ">" | "<=" | ">="
//
// followed by an optional "sortBy field[/sort.descending|/sort.ascending]".
// Values may be double-quoted; fields are dot paths. An empty query matches
// everything.
func Parse(input string) (Expr, *Sort, error) {
	if strings.TrimSpace(input) == "" {
		return MatchAll{}, nil, nil
	}
	tokens, err := lex(input)
	if err != nil {
		return nil, nil, err
	}
	p := &parser{tokens: tokens}
	expr, err := p.parseOr()
	if err != nil {
		return nil, nil, err
	}
	sort, err := p.parseSort()
	if err != nil {
		return nil, nil, err
	}
	if tok, ok := p.peek(); ok {
		return nil, nil, parseErrorf(tok.text, "unexpected trailing input")
	}
	return expr, sort, nil
}

// ParseFacets validates facet parameter syntax: a comma-separated list of
// field[:topN] items. Blank items (leading/trailing commas) and non-positive
// counts are rejected.
func ParseFacets(values []string) ([]FacetRequest, error) {
	out := make([]FacetRequest, 0, len(values))
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			return nil, parseErrorf(value, "facet list must not be empty")
		}
		for _, item := range strings.Split(value, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				return nil, parseErrorf(value, "facet list contains an empty item")
			}
			req := FacetRequest{TopN: DefaultFacetTopN}
			if field, countRaw, ok := strings.Cut(item, ":"); ok {
				n, err := strconv.Atoi(strings.TrimSpace(countRaw))
				if err != nil {
					return nil, parseErrorf(item, "facet count must be an integer")
				}
				if n < 1 {
					return nil, parseErrorf(item, "facet count must be >= 1")
				}
				req.Field = strings.TrimSpace(field)
				req.TopN = n
			} else {
				req.Field = item
			}
			if req.Field == "" {
				return nil, parseErrorf(item, "facet field is required")
			}
			out = append(out, req)
		}
	}
	return out, nil
}

type tokenKind int

const (
	tokWord tokenKind = iota
	tokString
	tokOp
	tokLParen
	tokRParen
	tokStar
)

type token struct {
	kind tokenKind
	text string
}

func lex(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			tokens = append(tokens, token{tokLParen, "("})
			i++
		case c == ')':
			tokens = append(tokens, token{tokRParen, ")"})
			i++
		case c == '"':
			j := i + 1
			var b strings.Builder
			for j < len(input) && input[j] != '"' {
				if input[j] == '\\' && j+1 < len(input) {
					j++
				}
				b.WriteByte(input[j])
				j++
			}
			if j >= len(input) {
				return nil, parseErrorf(input[i:], "unterminated quoted value")
			}
			tokens = append(tokens, token{tokString, b.String()})
			i = j + 1
		case c == '=' || c == '<' || c == '>':
			op := string(c)
			if i+1 < len(input) {
				two := input[i : i+2]
				if two == "==" || two == "<>" || two == "<=" || two == ">=" {
					op = two
				}
			}
			tokens = append(tokens, token{tokOp, op})
			i += len(op)
		default:
			j := i
			for j < len(input) && !strings.ContainsRune(" \t\n\r()=<>\"", rune(input[j])) {
				j++
			}
			word := input[i:j]
			if word == "*" {
				tokens = append(tokens, token{tokStar, word})
			} else {
				tokens = append(tokens, token{tokWord, word})
			}
			i = j
		}
	}
	return tokens, nil
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) next() (token, bool) {
	tok, ok := p.peek()
	if ok {
		p.pos++
	}
	return tok, ok
}

func (p *parser) peekKeyword(kw string) bool {
	tok, ok := p.peek()
	return ok && tok.kind == tokWord && strings.EqualFold(tok.text, kw)
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	exprs := []Expr{left}
	for p.peekKeyword("or") {
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, right)
	}
	if len(exprs) == 1 {
		return exprs[0], nil
	}
	return Or{Exprs: exprs}, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	exprs := []Expr{left}
	for p.peekKeyword("and") {
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, right)
	}
	if len(exprs) == 1 {
		return exprs[0], nil
	}
	return And{Exprs: exprs}, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.peekKeyword("not") {
		p.pos++
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not{Expr: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	tok, ok := p.next()
	if !ok {
		return nil, parseErrorf("", "unexpected end of query")
	}
	switch tok.kind {
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		closing, ok := p.next()
		if !ok || closing.kind != tokRParen {
			return nil, parseErrorf(tok.text, "missing closing parenthesis")
		}
		return inner, nil
	case tokStar:
		return MatchAll{}, nil
	case tokWord:
		return p.parseTerm(tok.text)
	default:
		return nil, parseErrorf(tok.text, "expected a field comparison")
	}
}

func (p *parser) parseTerm(field string) (Expr, error) {
	op, ok := p.next()
	if !ok || op.kind != tokOp {
		return nil, parseErrorf(field, "field %q must be followed by a comparison operator", field)
	}
	value, ok := p.next()
	if !ok || (value.kind != tokWord && value.kind != tokString && value.kind != tokStar) {
		return nil, parseErrorf(field+op.text, "comparison is missing a value")
	}
	rel := Rel(op.text)
	switch rel {
	case RelEq, RelMatch, RelNotEq, RelLess, RelGreater, RelLessEq, RelGreatEq:
	default:
		return nil, parseErrorf(op.text, "unsupported operator %q", op.text)
	}
	if value.kind == tokStar {
		if rel != RelMatch && rel != RelEq {
			return nil, parseErrorf(field+op.text+value.text, "wildcards require = or ==")
		}
		rel = RelMatch
	}
	return Term{Field: field, Rel: rel, Value: value.text}, nil
}

func (p *parser) parseSort() (*Sort, error) {
	if !p.peekKeyword("sortby") {
		return nil, nil
	}
	p.pos++
	tok, ok := p.next()
	if !ok || tok.kind != tokWord {
		return nil, parseErrorf("sortBy", "sortBy requires a field")
	}
	sort := &Sort{Field: tok.text}
	if field, modifier, found := strings.Cut(tok.text, "/"); found {
		sort.Field = field
		switch strings.ToLower(modifier) {
		case "sort.descending":
			sort.Descending = true
		case "sort.ascending":
		default:
			return nil, parseErrorf(tok.text, "unknown sort modifier %q", modifier)
		}
	}
	if sort.Field == "" {
		return nil, parseErrorf(tok.text, "sortBy requires a field")
	}
	return sort, nil
}
