// Package operator parses descriptor keys and resolves a key/value pair to
// the SQL operator it denotes.
package operator

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/kzar79/massive-go/query/cache"
)

// Token is the operator written after a column in a descriptor key.
type Token string

const (
	TokenNone        Token = ""
	TokenGreater     Token = ">"
	TokenLess        Token = "<"
	TokenGreaterEq   Token = ">="
	TokenLessEq      Token = "<="
	TokenNotEqual    Token = "<>"
	TokenBangEqual   Token = "!="
	TokenContains    Token = "@>"
	TokenContainedBy Token = "<@"
	TokenOverlaps    Token = "&&"
)

// IsArray reports whether t is an array set operator.
func (t Token) IsArray() bool {
	return t == TokenContains || t == TokenContainedBy || t == TokenOverlaps
}

// IsNegation reports whether t is <> or !=.
func (t Token) IsNegation() bool {
	return t == TokenNotEqual || t == TokenBangEqual
}

// Extraction is the JSON text extraction applied to the column.
type Extraction int

const (
	ExtractNone  Extraction = iota
	ExtractField            // column->>field
	ExtractPath             // column#>>{a,b}
)

// Key is a parsed descriptor key.
type Key struct {
	Raw        string
	Column     string
	Extraction Extraction
	// Path holds the field for ExtractField or the segments for ExtractPath.
	Path  []string
	Token Token
	// Literal is set when the key did not parse and the whole trimmed key
	// is used as the column name.
	Literal bool
}

// IsJSON reports whether the key extracts text from a JSON column.
func (k Key) IsJSON() bool {
	return k.Extraction != ExtractNone
}

var keyLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Quoted", Pattern: `"(?:[^"]|"")*"`},
	{Name: "PathText", Pattern: `#>>`},
	{Name: "FieldText", Pattern: `->>`},
	{Name: "ArrayOp", Pattern: `@>|<@|&&`},
	{Name: "CompareOp", Pattern: `>=|<=|<>|!=|>|<`},
	{Name: "LBrace", Pattern: `\{`},
	{Name: "RBrace", Pattern: `\}`},
	{Name: "Comma", Pattern: `,`},
	{Name: "Ident", Pattern: `[^\s"#<>=!@&{},-]+`},
	{Name: "Whitespace", Pattern: `\s+`},
})

type keyGrammar struct {
	Column string       `@(Quoted | Ident)`
	JSON   *jsonGrammar `@@?`
	Op     string       `@(ArrayOp | CompareOp)?`
}

type jsonGrammar struct {
	Field    *string  `  FieldText @(Ident | Quoted)`
	Segments []string `| PathText LBrace @(Ident | Quoted) ( Comma @(Ident | Quoted) )* RBrace`
}

var keyParser = participle.MustBuild[keyGrammar](
	participle.Lexer(keyLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// Parser parses descriptor keys, memoizing the results.
type Parser struct {
	cache *cache.LRU[string, Key]
}

// NewParser returns a Parser remembering up to size keys.
func NewParser(size int) *Parser {
	return &Parser{cache: cache.New[string, Key](size)}
}

// Parse parses raw. It never fails: a key that does not match the grammar
// becomes a literal column name.
func (p *Parser) Parse(raw string) Key {
	return p.cache.GetOrCreate(raw, parseKey)
}

// Stats exposes the parse cache statistics.
func (p *Parser) Stats() cache.Stats {
	return p.cache.GetStats()
}

var defaultParser = NewParser(1024)

// Parse parses raw with the shared parser.
func Parse(raw string) Key {
	return defaultParser.Parse(raw)
}

func parseKey(raw string) Key {
	g, err := keyParser.ParseString("", raw)
	if err != nil {
		return Key{Raw: raw, Column: strings.TrimSpace(raw), Literal: true}
	}

	k := Key{Raw: raw, Column: g.Column, Token: Token(g.Op)}
	if g.JSON != nil {
		switch {
		case g.JSON.Field != nil:
			k.Extraction = ExtractField
			k.Path = []string{unquote(*g.JSON.Field)}
		default:
			k.Extraction = ExtractPath
			k.Path = make([]string, len(g.JSON.Segments))
			for i, s := range g.JSON.Segments {
				k.Path[i] = unquote(s)
			}
		}
	}
	return k
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
	}
	return s
}
