package resolver

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultPreferences picks a winner when several currencies share a symbol.
var DefaultPreferences = map[string]string{
	"$": "USD",
	"£": "GBP",
	"¥": "JPY",
}

type codePattern struct {
	code    string
	pattern *regexp.Regexp
}

// Resolver maps free-form currency text ("US Dollar (USD)", "€ Euro",
// "R$ 25,00") to a lowercase ISO code. It is immutable and safe for
// concurrent use.
type Resolver struct {
	table       *SymbolTable
	codes       []codePattern
	preferences map[string]string
}

func New(table *SymbolTable, preferences map[string]string) *Resolver {
	r := &Resolver{
		table:       table,
		codes:       make([]codePattern, 0, table.Len()),
		preferences: make(map[string]string, len(preferences)),
	}

	for _, e := range table.entries {
		code := lower(e.Code)
		r.codes = append(r.codes, codePattern{
			code:    code,
			pattern: regexp.MustCompile(`\b` + regexp.QuoteMeta(code) + `\b`),
		})
	}
	for sym, code := range preferences {
		r.preferences[sym] = lower(code)
	}

	return r
}

func (r *Resolver) Table() *SymbolTable {
	return r.table
}

// Resolve returns the lowercase code for text. Whole-word code tokens win
// over symbols; among symbols the first one in table order that occurs in
// text decides.
func (r *Resolver) Resolve(text string) (string, bool) {
	original := strings.TrimSpace(text)
	if original == "" {
		return "", false
	}

	folded := lower(original)
	for _, c := range r.codes {
		if c.pattern.MatchString(folded) {
			return c.code, true
		}
	}

	groups := r.symbolHits(original)
	if len(groups) == 0 {
		return "", false
	}

	first := groups[0]
	if preferred, ok := r.preferences[first.symbol]; ok {
		for _, code := range first.codes {
			if code == preferred {
				return code, true
			}
		}
	}
	return first.codes[0], true
}

type symbolGroup struct {
	symbol string
	codes  []string
}

func (r *Resolver) symbolHits(text string) []symbolGroup {
	var groups []symbolGroup
	index := make(map[string]int)

	for _, e := range r.table.entries {
		if e.Symbol == "" || !containsSymbol(text, e.Symbol) {
			continue
		}
		code := lower(e.Code)
		if i, ok := index[e.Symbol]; ok {
			groups[i].codes = append(groups[i].codes, code)
			continue
		}
		index[e.Symbol] = len(groups)
		groups = append(groups, symbolGroup{symbol: e.Symbol, codes: []string{code}})
	}

	return groups
}

// containsSymbol matches symbols with letters ("R$", "zł") as plain
// substrings. Pure glyph symbols ("$", "€") must not touch a letter on
// either side, so "$" does not fire inside "MN$" or "$U".
func containsSymbol(text, symbol string) bool {
	if strings.IndexFunc(symbol, unicode.IsLetter) >= 0 {
		return strings.Contains(text, symbol)
	}

	for offset := 0; offset < len(text); {
		i := strings.Index(text[offset:], symbol)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(symbol)

		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if !isLetter(before) && !isLetter(after) {
			return true
		}

		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
	return false
}

func isLetter(r rune) bool {
	return r != utf8.RuneError && unicode.IsLetter(r)
}

func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}
