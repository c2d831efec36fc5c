package query

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"filecabinet/pkg/common"
)

// Combinator joins the terms of a where clause.
type Combinator int

const (
	And Combinator = iota
	Or
)

func (c Combinator) String() string {
	if c == Or {
		return "or"
	}
	return "and"
}

// Term is one field = value comparison.
type Term struct {
	Field common.Field
	Value string
}

// Where is a parsed where clause. All terms share one combinator.
type Where struct {
	Terms []Term
	Join  Combinator
	Limit int
}

var (
	termRe  = regexp.MustCompile(`(?i)^([a-z_][a-z0-9_-]*)\s*=\s*(?:'([^']*)'|"([^"]*)"|([^\s'"]+))\s*`)
	joinRe  = regexp.MustCompile(`(?i)^(and|or)\s+`)
	limitRe = regexp.MustCompile(`(?i)^limit\s+(\d+)\s*$`)
	whereRe = regexp.MustCompile(`(?i)^(?:select\s+)?where\s+`)
)

// Parse reads a clause of the form
//
//	where firstname = 'Jane' and lastname = Doe [limit 10]
//
// Keywords are case-insensitive; values may be quoted with ' or ". The
// leading "select" is optional.
func Parse(s string) (*Where, error) {
	rest := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), ";"))
	if rest == "" {
		return nil, errors.New("empty query")
	}
	loc := whereRe.FindStringIndex(rest)
	if loc == nil {
		return nil, errors.New("syntax: expected where <field> = <value> [and|or ...] [limit <n>]")
	}
	rest = rest[loc[1]:]

	w := &Where{Limit: -1}
	joined := false
	for {
		m := termRe.FindStringSubmatch(rest)
		if m == nil {
			return nil, fmt.Errorf("syntax: expected <field> = <value> near %q", rest)
		}
		f, ok := common.ParseField(m[1])
		if !ok {
			return nil, fmt.Errorf("unknown field %q", m[1])
		}
		// At most one of the quoted or bare groups matched.
		w.Terms = append(w.Terms, Term{Field: f, Value: m[2] + m[3] + m[4]})
		rest = rest[len(m[0]):]

		if rest == "" {
			return w, nil
		}
		if lm := limitRe.FindStringSubmatch(rest); lm != nil {
			n, err := strconv.Atoi(lm[1])
			if err != nil {
				return nil, errors.New("invalid limit value")
			}
			w.Limit = n
			return w, nil
		}
		jm := joinRe.FindStringSubmatch(rest)
		if jm == nil {
			return nil, fmt.Errorf("syntax: expected and/or near %q", rest)
		}
		c := And
		if strings.EqualFold(jm[1], "or") {
			c = Or
		}
		if joined && c != w.Join {
			return nil, errors.New("mixing and/or in one clause is not supported")
		}
		w.Join, joined = c, true
		rest = rest[len(jm[0]):]
	}
}
