package resolver

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"autocurrency/internal/entity"
)

//go:embed symbols.json
var defaultSymbols []byte

var ErrEmptyTable = errors.New("symbol table is empty")

// SymbolTable is the ordered, read-only code -> {symbol, name} mapping.
// Order is the key order of the source document.
type SymbolTable struct {
	entries []entity.SymbolEntry
	byCode  map[string]int
}

type symbolRecord struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// DefaultSymbols returns the table compiled into the binary.
func DefaultSymbols() (*SymbolTable, error) {
	return ParseSymbols(bytes.NewReader(defaultSymbols))
}

func LoadSymbolsFile(path string) (*SymbolTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open symbols file: %w", err)
	}
	defer f.Close()

	return ParseSymbols(f)
}

// ParseSymbols reads a JSON object keyed by currency code. encoding/json
// maps lose key order, so the object is walked token by token.
func ParseSymbols(r io.Reader) (*SymbolTable, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read symbols: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("read symbols: expected object, got %v", tok)
	}

	var entries []entity.SymbolEntry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read symbol code: %w", err)
		}
		code, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("read symbol code: unexpected token %v", tok)
		}

		var rec symbolRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("decode symbol %s: %w", code, err)
		}

		entries = append(entries, entity.SymbolEntry{
			Code:   strings.ToUpper(strings.TrimSpace(code)),
			Symbol: rec.Symbol,
			Name:   rec.Name,
		})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("read symbols end: %w", err)
	}

	return NewSymbolTable(entries)
}

func NewSymbolTable(entries []entity.SymbolEntry) (*SymbolTable, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyTable
	}

	t := &SymbolTable{
		entries: make([]entity.SymbolEntry, 0, len(entries)),
		byCode:  make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		e.Code = strings.ToUpper(e.Code)
		if e.Code == "" {
			return nil, errors.New("symbol entry without code")
		}
		if _, dup := t.byCode[e.Code]; dup {
			return nil, fmt.Errorf("duplicate symbol entry %s", e.Code)
		}
		t.byCode[e.Code] = len(t.entries)
		t.entries = append(t.entries, e)
	}

	return t, nil
}

// Entries returns a copy of the entries in table order.
func (t *SymbolTable) Entries() []entity.SymbolEntry {
	out := make([]entity.SymbolEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *SymbolTable) Lookup(code string) (entity.SymbolEntry, bool) {
	i, ok := t.byCode[strings.ToUpper(code)]
	if !ok {
		return entity.SymbolEntry{}, false
	}
	return t.entries[i], true
}

func (t *SymbolTable) Len() int {
	return len(t.entries)
}
