package compiler

import (
	"strconv"
	"strings"
)

// Renumber adds offset to every $n placeholder in sql and returns the
// rewritten text with the highest placeholder number found (before
// shifting). Placeholders inside string literals, quoted identifiers,
// dollar-quoted bodies and comments are left alone. With a zero offset the
// text is returned unchanged.
func Renumber(sql string, offset int) (string, int) {
	var out strings.Builder
	out.Grow(len(sql) + 8)
	highest := 0

	for i := 0; i < len(sql); {
		c := sql[i]
		switch {
		case c == '\'':
			end := skipString(sql, i, escapeString(sql, i))
			out.WriteString(sql[i:end])
			i = end
		case c == '"':
			end := skipQuoted(sql, i, '"')
			out.WriteString(sql[i:end])
			i = end
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			end := strings.IndexByte(sql[i:], '\n')
			if end < 0 {
				end = len(sql) - i
			}
			out.WriteString(sql[i : i+end])
			i += end
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			end := skipBlockComment(sql, i)
			out.WriteString(sql[i:end])
			i = end
		case c == '$' && (i == 0 || !isIdentChar(sql[i-1])):
			if j := scanDigits(sql, i+1); j > i+1 {
				n, _ := strconv.Atoi(sql[i+1 : j])
				if n > highest {
					highest = n
				}
				out.WriteByte('$')
				out.WriteString(strconv.Itoa(n + offset))
				i = j
				continue
			}
			if tag, ok := dollarTag(sql, i); ok {
				end := strings.Index(sql[i+len(tag):], tag)
				if end < 0 {
					end = len(sql)
				} else {
					end += i + 2*len(tag)
				}
				out.WriteString(sql[i:end])
				i = end
				continue
			}
			out.WriteByte(c)
			i++
		default:
			out.WriteByte(c)
			i++
		}
	}

	if offset == 0 {
		return sql, highest
	}
	return out.String(), highest
}

func escapeString(sql string, i int) bool {
	if i == 0 || (sql[i-1] != 'E' && sql[i-1] != 'e') {
		return false
	}
	return i < 2 || !isIdentChar(sql[i-2])
}

func skipString(sql string, i int, backslash bool) int {
	for j := i + 1; j < len(sql); j++ {
		switch sql[j] {
		case '\\':
			if backslash {
				j++
			}
		case '\'':
			if j+1 < len(sql) && sql[j+1] == '\'' {
				j++
				continue
			}
			return j + 1
		}
	}
	return len(sql)
}

func skipQuoted(sql string, i int, q byte) int {
	for j := i + 1; j < len(sql); j++ {
		if sql[j] != q {
			continue
		}
		if j+1 < len(sql) && sql[j+1] == q {
			j++
			continue
		}
		return j + 1
	}
	return len(sql)
}

func skipBlockComment(sql string, i int) int {
	depth := 0
	for j := i; j+1 < len(sql); j++ {
		switch {
		case sql[j] == '/' && sql[j+1] == '*':
			depth++
			j++
		case sql[j] == '*' && sql[j+1] == '/':
			depth--
			j++
			if depth == 0 {
				return j + 1
			}
		}
	}
	return len(sql)
}

func scanDigits(sql string, i int) int {
	for i < len(sql) && sql[i] >= '0' && sql[i] <= '9' {
		i++
	}
	return i
}

// dollarTag matches $$ or $tag$ at position i.
func dollarTag(sql string, i int) (string, bool) {
	j := i + 1
	if j < len(sql) && sql[j] == '$' {
		return "$$", true
	}
	if j >= len(sql) || !(isLetter(sql[j]) || sql[j] == '_') {
		return "", false
	}
	for j < len(sql) && isIdentChar(sql[j]) && sql[j] != '$' {
		j++
	}
	if j < len(sql) && sql[j] == '$' {
		return sql[i : j+1], true
	}
	return "", false
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_' || c == '$'
}
