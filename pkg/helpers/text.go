package helpers

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

func toString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// cleanString trims surrounding whitespace, strips embedded CR/LF, and
// collapses runs of spaces to one, matching renderer_env.rs's private
// clean_string helper used by trim/currency.
func cleanString(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// Trim is the `trim` helper: clean_string applied to the piped value.
func Trim(args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return "", nil
	}
	return cleanString(toString(args[0])), nil
}

// Capitalize upper-cases the first rune and lower-cases the rest.
func Capitalize(args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return "", nil
	}
	s := toString(args[0])
	if s == "" {
		return s, nil
	}
	r := []rune(strings.ToLower(s))
	r[0] = unicode.ToUpper(r[0])
	return string(r), nil
}

// Title title-cases every word; exposed as both `capitalize` and
// `title` in renderer_env.rs.
func Title(args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return "", nil
	}
	return strings.Title(strings.ToLower(toString(args[0]))), nil
}

// plainSWords lists s-terminated nouns that are singular despite
// looking plural, so articlize still prefixes them.
var plainSWords = map[string]bool{"bus": true, "grass": true, "kiss": true}

// Articlize prefixes a noun with "a"/"an" based on a leading-vowel
// heuristic, except nouns that already look plural (end in "s" and
// are not one of the known singular exceptions), which pass through
// unchanged.
func Articlize(args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return "", nil
	}
	s := toString(args[0])
	if s == "" {
		return s, nil
	}
	lower := strings.ToLower(s)
	if strings.HasSuffix(lower, "s") && !plainSWords[lower] {
		return s, nil
	}
	article := "a"
	if isVowel(s[0]) {
		article = "an"
	}
	return article + " " + s, nil
}

// FormatWithCommas inserts thousands separators into an integer
// string, matching renderer_env.rs's private format_with_commas.
func FormatWithCommas(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}

// Currency is the `currency(gp)` helper: renders a gold-piece amount
// as "X gp" with thousands separators, switching down to silver ("X
// sp") for 0.1 < gp <= 1 and copper ("X cp") for 0.01 < gp <= 0.1,
// where X is the amount converted into that smaller denomination.
func Currency(args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return "", nil
	}
	gp, ok := toFloat(args[0])
	if !ok {
		return cleanString(toString(args[0])), nil
	}
	switch {
	case gp > 0.01 && gp <= 0.1:
		return FormatWithCommas(int64(math.Round(gp*100))) + " cp", nil
	case gp > 0.1 && gp <= 1:
		return FormatWithCommas(int64(math.Round(gp*10))) + " sp", nil
	default:
		return FormatWithCommas(int64(math.Round(gp))) + " gp", nil
	}
}

func isVowel(b byte) bool {
	switch unicode.ToLower(rune(b)) {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

// pluralize applies the English pluralisation rules tabled in
// renderer_env.rs's `plural`: a word ending in s/x/z/h takes +es; a
// word ending in "olf" becomes "...olves"; a word ending in y takes
// +s after a vowel and -y+ies after a consonant; everything else
// takes a plain +s.
func pluralize(word string) string {
	if word == "" {
		return word
	}
	lower := strings.ToLower(word)
	switch {
	case strings.HasSuffix(lower, "olf"):
		return word[:len(word)-3] + "olves"
	case strings.HasSuffix(lower, "s"), strings.HasSuffix(lower, "x"),
		strings.HasSuffix(lower, "z"), strings.HasSuffix(lower, "h"):
		return word + "es"
	case strings.HasSuffix(lower, "y"):
		if len(word) >= 2 && isVowel(word[len(word)-2]) {
			return word + "s"
		}
		return word[:len(word)-1] + "ies"
	default:
		return word + "s"
	}
}

// Plural is the `plural(n, word)` helper: applies English
// pluralisation rules to word when n > 1, leaving it unchanged
// otherwise.
func Plural(args ...interface{}) (interface{}, error) {
	if len(args) < 2 {
		return "", fmt.Errorf("helpers: plural needs (n, word)")
	}
	n, _ := toFloat(args[0])
	word := toString(args[1])
	if n <= 1 {
		return word, nil
	}
	return pluralize(word), nil
}

// PluralWithCount is the `plural_with_count(n, word)` helper: renders
// "<n> <plural(n,word)>" when n > 1, else just word.
func PluralWithCount(args ...interface{}) (interface{}, error) {
	if len(args) < 2 {
		return "", fmt.Errorf("helpers: plural_with_count needs (n, word)")
	}
	n, _ := toFloat(args[0])
	word := toString(args[1])
	if n <= 1 {
		return word, nil
	}
	return fmt.Sprintf("%v %v", args[0], pluralize(word)), nil
}

// IfPluralElse is the `if_plural_else(word, a, b)` helper: returns a
// if word already looks plural (ends in s, or is "teeth"/"wolves"),
// else b.
func IfPluralElse(args ...interface{}) (interface{}, error) {
	if len(args) < 3 {
		return "", fmt.Errorf("helpers: if_plural_else needs (word, a, b)")
	}
	word := toString(args[0])
	if strings.HasSuffix(word, "s") || word == "teeth" || word == "wolves" {
		return args[1], nil
	}
	return args[2], nil
}

// CountIdentical is the `count_identical(list)` helper: maps each
// distinct string element to its occurrence count.
func CountIdentical(args ...interface{}) (interface{}, error) {
	out := map[string]interface{}{}
	if len(args) == 0 {
		return out, nil
	}
	list, ok := args[0].([]interface{})
	if !ok {
		return out, nil
	}
	for _, v := range list {
		key := toString(v)
		if c, ok := out[key].(int); ok {
			out[key] = c + 1
		} else {
			out[key] = 1
		}
	}
	return out, nil
}

// Bulletize is the `bulletize(list, sep_code)` helper: joins a list's
// elements with the HTML numeric character reference built from
// sep_code (e.g. 10 -> "&#10;" for a newline-like separator).
func Bulletize(args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return "", nil
	}
	list, ok := args[0].([]interface{})
	if !ok {
		return toString(args[0]), nil
	}
	sep := "&#10;"
	if len(args) > 1 {
		if code, ok := toFloat(args[1]); ok {
			sep = fmt.Sprintf("&#%d;", int(code))
		}
	}
	lines := make([]string, 0, len(list))
	for _, v := range list {
		lines = append(lines, toString(v))
	}
	return strings.Join(lines, sep), nil
}

// SortBy sorts a list of maps by the given key.
func SortBy(args ...interface{}) (interface{}, error) {
	if len(args) < 2 {
		return args[0], nil
	}
	list, ok := args[0].([]interface{})
	if !ok {
		return args[0], nil
	}
	key := toString(args[1])
	out := make([]interface{}, len(list))
	copy(out, list)
	sort.SliceStable(out, func(i, j int) bool {
		mi, _ := out[i].(map[string]interface{})
		mj, _ := out[j].(map[string]interface{})
		return toString(mi[key]) < toString(mj[key])
	})
	return out, nil
}

// Unique is the `unique(list, attr)` helper: de-duplicates a list of
// objects by their string-valued attr field, preserving first-seen
// order.
func Unique(args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return args, nil
	}
	list, ok := args[0].([]interface{})
	if !ok {
		return args[0], nil
	}
	attr := ""
	if len(args) > 1 {
		attr = toString(args[1])
	}
	seen := make(map[string]bool, len(list))
	out := make([]interface{}, 0, len(list))
	for _, v := range list {
		key := toString(v)
		if attr != "" {
			if m, ok := v.(map[string]interface{}); ok {
				key = toString(m[attr])
			}
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out, nil
}
