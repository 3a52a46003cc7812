// Copyright GoFrame Author(https://goframe.org). All Rights Reserved.
//
// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT was not distributed with this file,
// You can obtain one at https://github.com/gogf/gf.

package sqler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gogf/gf/util/gconv"
)

// mergeBinds implements spec §4.6 step 2: start from empty, copy each
// connection-wide default bind not overridden by execOpts.Binds, applying
// date formatting, then overlay execOpts.Binds under the same rule.
func mergeBinds(connBinds, callBinds map[string]interface{}, formatter interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(connBinds)+len(callBinds))
	for k, v := range connBinds {
		if _, overridden := callBinds[k]; overridden {
			continue
		}
		merged[k] = applyDateFormat(v, formatter)
	}
	for k, v := range callBinds {
		merged[k] = applyDateFormat(v, formatter)
	}
	return merged
}

// applyDateFormat implements spec §4.6 "Date formatting rule". If
// formatter is the literal true, call the ISO-8601 formatter. If it's a
// callable, call it and keep its string result when it produced one, else
// keep the original value. Otherwise pass value through unchanged.
func applyDateFormat(value interface{}, formatter interface{}) interface{} {
	t, isTime := asTime(value)
	if !isTime {
		return value
	}
	switch f := formatter.(type) {
	case bool:
		if f {
			return t.UTC().Format(time.RFC3339)
		}
		return value
	case func(time.Time) string:
		if s := f(t); s != "" {
			return s
		}
		return value
	case func(time.Time) (string, error):
		if s, err := f(t); err == nil && s != "" {
			return s
		}
		return value
	default:
		return value
	}
}

func asTime(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	default:
		return time.Time{}, false
	}
}

// NamedBindSequence is the static utility from spec §4.7: emit count
// copies of sql with every ":name" replaced by ":name{i}" for i in
// 1..count. Positional binds outside SQL string literals must not match —
// a single-quoted literal delimits strings, with "\\" escaping.
func NamedBindSequence(sql string, count int) []string {
	out := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		suffix := strconv.Itoa(i)
		rewritten := scanOutsideStringLiterals(sql, bareBindRe, func(loc []int) string {
			name := sql[loc[2]:loc[3]]
			return ":" + name + suffix
		})
		out = append(out, rewritten)
	}
	return out
}

// PositionalBinds rewrites named binds to positional placeholders, pushing
// matching values from object into array, in SQL appearance order. Unbound
// names fail (spec §4.7).
func PositionalBinds(sql string, object map[string]interface{}, placeholder string) (string, []interface{}, error) {
	if placeholder == "" {
		placeholder = "?"
	}
	values := make([]interface{}, 0, len(object))
	var missing string
	rewritten := scanOutsideStringLiterals(sql, bareBindRe, func(loc []int) string {
		name := sql[loc[2]:loc[3]]
		v, ok := object[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return sql[loc[0]:loc[1]]
		}
		values = append(values, v)
		return placeholder
	})
	if missing != "" {
		return "", nil, fmt.Errorf("unbound positional parameter %q", missing)
	}
	return rewritten, values, nil
}

// scanOutsideStringLiterals applies replace to every match of re in sql
// that falls outside a single-quoted string literal (backslash-escaped),
// leaving matches inside literals untouched. This is the string-literal
// awareness required by spec §4.7, grounded on the same defensive-regex
// convention the teacher applies when scanning WHERE-clause fragments in
// gdb_model_condition.go.
func scanOutsideStringLiterals(sql string, re interface{ FindAllStringSubmatchIndex(string, int) [][]int }, replace func(loc []int) string) string {
	literalRanges := stringLiteralRanges(sql)
	matches := re.FindAllStringSubmatchIndex(sql, -1)
	var b strings.Builder
	last := 0
	for _, m := range matches {
		start := m[0]
		if insideAny(start, literalRanges) {
			continue
		}
		b.WriteString(sql[last:start])
		b.WriteString(replace(m))
		last = m[1]
	}
	b.WriteString(sql[last:])
	return b.String()
}

func insideAny(pos int, ranges [][2]int) bool {
	for _, r := range ranges {
		if pos >= r[0] && pos < r[1] {
			return true
		}
	}
	return false
}

// stringLiteralRanges returns the byte ranges of single-quoted string
// literals in sql, honoring backslash escaping.
func stringLiteralRanges(sql string) [][2]int {
	var ranges [][2]int
	inLiteral := false
	start := 0
	for i := 0; i < len(sql); i++ {
		switch sql[i] {
		case '\\':
			if inLiteral {
				i++ // skip escaped char
			}
		case '\'':
			if inLiteral {
				ranges = append(ranges, [2]int{start, i + 1})
				inLiteral = false
			} else {
				start = i
				inLiteral = true
			}
		}
	}
	return ranges
}

// Interpolate performs a recursive copy from source into dest, substituting
// "${NAME}" references against interpolator (or dest when interpolator is
// nil). Objects recurse, time.Time and *regexp.Regexp pass through
// atomically, and validator(path, value), when non-nil, skips entries it
// rejects (spec §4.7).
func Interpolate(dest, source map[string]interface{}, interpolator map[string]interface{}, validator func(path string, value interface{}) bool, onlyInterpolated bool) {
	if interpolator == nil {
		interpolator = dest
	}
	interpolateInto(dest, source, interpolator, validator, onlyInterpolated, "")
}

var interpolationRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_.]*)\}`)

func interpolateInto(dest, source, interpolator map[string]interface{}, validator func(string, interface{}) bool, onlyInterpolated bool, prefix string) {
	for k, v := range source {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if validator != nil && !validator(path, v) {
			continue
		}
		switch val := v.(type) {
		case map[string]interface{}:
			child := make(map[string]interface{}, len(val))
			interpolateInto(child, val, interpolator, validator, onlyInterpolated, path)
			dest[k] = child
		case time.Time:
			dest[k] = val
		case string:
			interpolated, did := interpolateString(val, interpolator)
			if onlyInterpolated && !did {
				continue
			}
			dest[k] = interpolated
		default:
			dest[k] = v
		}
	}
}

func interpolateString(s string, interpolator map[string]interface{}) (string, bool) {
	matched := false
	out := interpolationRef.ReplaceAllStringFunc(s, func(tok string) string {
		name := tok[2 : len(tok)-1]
		if v, ok := lookupPath(interpolator, name); ok {
			matched = true
			return gconv.String(v)
		}
		return tok
	})
	return out, matched
}

func lookupPath(m map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var cur interface{} = m
	for _, p := range parts {
		asMap, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = asMap[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
