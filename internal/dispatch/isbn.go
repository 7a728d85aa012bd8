package dispatch

import "strings"

// NormalizeCode trims surrounding whitespace. When removing hyphens and
// spaces leaves an ISBN-shaped code (10 or 13 characters), the stripped
// form is returned, with a trailing ISBN-10 check character "x"
// upper-cased. Any other code is returned trimmed, separators kept, so
// that free-text queries such as "ABC-123" reach the backend unchanged.
func NormalizeCode(code string) string {
	code = strings.TrimSpace(code)
	stripped := strings.NewReplacer("-", "", " ", "").Replace(code)
	switch len(stripped) {
	case 13:
		return stripped
	case 10:
		if strings.HasSuffix(stripped, "x") {
			stripped = stripped[:9] + "X"
		}
		return stripped
	default:
		return code
	}
}

// ValidISBN reports whether code is an ISBN-10 or ISBN-13 with a correct
// check digit.
func ValidISBN(code string) bool {
	switch len(code) {
	case 10:
		return validISBN10(code)
	case 13:
		return validISBN13(code)
	default:
		return false
	}
}

func validISBN10(code string) bool {
	sum := 0
	for i := range 10 {
		c := code[i]
		var v int
		switch {
		case c >= '0' && c <= '9':
			v = int(c - '0')
		case c == 'X' && i == 9:
			v = 10
		default:
			return false
		}
		sum += v * (10 - i)
	}
	return sum%11 == 0
}

func validISBN13(code string) bool {
	sum := 0
	for i := range 13 {
		c := code[i]
		if c < '0' || c > '9' {
			return false
		}
		v := int(c - '0')
		if i%2 == 1 {
			v *= 3
		}
		sum += v
	}
	return sum%10 == 0
}
