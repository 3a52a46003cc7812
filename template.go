// Copyright GoFrame Author(https://goframe.org). All Rights Reserved.
//
// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT was not distributed with this file,
// You can obtain one at https://github.com/gogf/gf.

package sqler

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// Template Engine (spec §4.1, C1). Rewrite is a pure function: identical
// inputs produce byte-identical outputs (spec §8 "Template purity"). The
// five stages below mirror the teacher's own convention of building/
// rewriting SQL text as a sequence of gregex passes (gdb_func.go,
// gdb_model_condition.go, gdb_transaction.go) rather than a hand-rolled
// char-by-char tokenizer.
var (
	conjunctionTagRe = regexp.MustCompile(`(?is)\[\[\s*(AND|OR)\b(.*?)\]\]`)
	bareBindRe       = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)`)
	dialectTagRe     = regexp.MustCompile(`(?is)(--\s*)?\[\[!\s*([A-Za-z0-9_]+)\s*\]\](.*?)(--\s*)?\[\[!\]\]`)
	versionTagRe     = regexp.MustCompile(`(?is)(--\s*)?\[\[version\s*(<=|>=|<>|=|<|>)\s*([0-9]+(?:\.[0-9]+)?)\s*\]\](.*?)(--\s*)?\[\[version\]\]`)
	fragmentTagRe    = regexp.MustCompile(`(?is)(--\s*)?\[\[\?\s*([A-Za-z0-9_]+)\s*\]\](.*?)(--\s*)?\[\[\?\]\]`)
)

// Rewrite applies the five-stage template pipeline to sql and returns the
// rewritten text along with the (possibly expanded) bind map. binds is not
// mutated; a copy carrying any array-expansion-derived entries is returned.
func Rewrite(sql string, binds map[string]interface{}, dialectName string, version float64, activeFragments []string) (string, map[string]interface{}) {
	out := make(map[string]interface{}, len(binds))
	for k, v := range binds {
		out[k] = v
	}
	fragments := make(map[string]bool, len(activeFragments))
	for _, f := range activeFragments {
		fragments[f] = true
	}

	sql, protected := expandConjunctions(sql, out)
	sql = expandSimple(sql, out, protected)
	sql = gateDialect(sql, dialectName)
	sql = gateVersion(sql, version)
	sql = gateFragment(sql, fragments)
	return sql, out
}

// bindArray reports whether v is a slice/array and, if so, its length and
// an accessor for element i.
func bindArray(v interface{}) (length int, at func(int) interface{}, ok bool) {
	if v == nil {
		return 0, nil, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len(), func(i int) interface{} { return rv.Index(i).Interface() }, true
	default:
		return 0, nil, false
	}
}

// suffixedName implements the spec §9(b) quirk: the index-0 suffix is
// suppressed ("name" not "name0") for backward compatibility.
func suffixedName(name string, i int) string {
	if i == 0 {
		return name
	}
	return name + strconv.Itoa(i)
}

// expandConjunctions handles stage 1: "[[OR ...:name...]]" / "[[AND ...]]".
// It returns the rewritten text and the set of byte ranges in that text
// which originated from a successful expansion, so that stage 2 (simple
// expansion) does not re-process the numbered placeholders it just wrote.
func expandConjunctions(sql string, binds map[string]interface{}) (string, []protectedRange) {
	matches := conjunctionTagRe.FindAllStringSubmatchIndex(sql, -1)
	if matches == nil {
		return sql, nil
	}
	var b strings.Builder
	var protected []protectedRange
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		conj := sql[m[2]:m[3]]
		inner := sql[m[4]:m[5]]
		b.WriteString(sql[last:start])

		nameMatch := bareBindRe.FindStringSubmatchIndex(inner)
		if nameMatch == nil {
			// Malformed block, no bind reference: emit unchanged (spec §7 template errors).
			b.WriteString(sql[start:end])
			last = end
			continue
		}
		name := inner[nameMatch[2]:nameMatch[3]]
		length, at, isArray := bindArray(binds[name])
		if !isArray {
			// Bind absent or not an array: block emitted unchanged.
			b.WriteString(sql[start:end])
			last = end
			continue
		}

		prefix := inner[:nameMatch[0]]
		suffix := inner[nameMatch[1]:]
		joiner := fmt.Sprintf(" %s ", strings.ToUpper(conj))
		writeStart := b.Len()
		copies := make([]string, 0, length)
		for i := 0; i < length; i++ {
			sname := suffixedName(name, i)
			binds[sname] = at(i)
			copies = append(copies, prefix+":"+sname+suffix)
		}
		b.WriteString(strings.Join(copies, joiner))
		protected = append(protected, protectedRange{start: writeStart, end: b.Len()})
		last = end
	}
	b.WriteString(sql[last:])
	return b.String(), protected
}

type protectedRange struct{ start, end int }

func withinProtected(pos int, ranges []protectedRange) bool {
	for _, r := range ranges {
		if pos >= r.start && pos < r.end {
			return true
		}
	}
	return false
}

// expandSimple handles stage 2: bare ":name" occurrences not already
// produced by stage 1.
func expandSimple(sql string, binds map[string]interface{}, protected []protectedRange) string {
	matches := bareBindRe.FindAllStringSubmatchIndex(sql, -1)
	if matches == nil {
		return sql
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if start < last {
			continue // overlapped by a previous replacement in this pass
		}
		if withinProtected(start, protected) {
			b.WriteString(sql[last:end])
			last = end
			continue
		}
		name := sql[m[2]:m[3]]
		length, at, isArray := bindArray(binds[name])
		if !isArray {
			b.WriteString(sql[last:end])
			last = end
			continue
		}
		b.WriteString(sql[last:start])
		parts := make([]string, 0, length)
		for i := 0; i < length; i++ {
			sname := suffixedName(name, i)
			binds[sname] = at(i)
			parts = append(parts, ":"+sname)
		}
		b.WriteString(strings.Join(parts, ", "))
		last = end
	}
	b.WriteString(sql[last:])
	return b.String()
}

// gateDialect handles stage 3: "[[! dialect]] ... [[!]]".
func gateDialect(sql string, dialectName string) string {
	return replaceGate(sql, dialectTagRe, func(m []int) (keep bool, inner string) {
		tag := sql[m[4]:m[5]]
		inner = sql[m[6]:m[7]]
		return strings.EqualFold(tag, dialectName), inner
	})
}

// gateVersion handles stage 4: "[[version OP N]] ... [[version]]".
func gateVersion(sql string, version float64) string {
	return replaceGate(sql, versionTagRe, func(m []int) (keep bool, inner string) {
		op := sql[m[4]:m[5]]
		numStr := sql[m[6]:m[7]]
		inner = sql[m[8]:m[9]]
		n, err := strconv.ParseFloat(numStr, 64)
		if err != nil {
			return false, inner
		}
		return compareVersion(version, op, n), inner
	})
}

func compareVersion(v float64, op string, n float64) bool {
	switch op {
	case "=":
		return v == n
	case "<":
		return v < n
	case ">":
		return v > n
	case "<=":
		return v <= n
	case ">=":
		return v >= n
	case "<>":
		return v != n
	default:
		return false
	}
}

// gateFragment handles stage 5: "[[? key]] ... [[?]]".
func gateFragment(sql string, fragments map[string]bool) string {
	return replaceGate(sql, fragmentTagRe, func(m []int) (keep bool, inner string) {
		key := sql[m[4]:m[5]]
		inner = sql[m[6]:m[7]]
		return fragments[key], inner
	})
}

// replaceGate is the shared fold for the three gating stages: for every
// match, keep or drop the inner text. The tag delimiters themselves never
// include the newlines surrounding them, so dropping a block between two
// newline-terminated lines (spec §9 Open Question (a)) collapses to
// exactly one blank line for free — the newline before the opening tag and
// the newline after the closing tag are untouched text outside the match,
// and concatenate to one blank line with nothing inserted.
func replaceGate(sql string, re *regexp.Regexp, decide func(m []int) (bool, string)) string {
	matches := re.FindAllStringSubmatchIndex(sql, -1)
	if matches == nil {
		return sql
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if start < last {
			continue
		}
		keep, inner := decide(m)
		b.WriteString(sql[last:start])
		if keep {
			b.WriteString(inner)
		}
		last = end
	}
	b.WriteString(sql[last:])
	return b.String()
}
