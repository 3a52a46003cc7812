// Copyright GoFrame Author(https://goframe.org). All Rights Reserved.
//
// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT was not distributed with this file,
// You can obtain one at https://github.com/gogf/gf.

package sqler

import (
	"fmt"
	"regexp"
)

// ConnectionConfig is the immutable-after-construction descriptor for one
// named database connection (spec §3 "Connection descriptor").
type ConnectionConfig struct {
	ID      string // credential lookup key into the manager's private options
	Name    string // unique namespace key, e.g. db.<Name>...
	Dialect string // lowercase dialect selector, e.g. "oracle", "mssql"

	Dir         string             // override SQL root; default = Name
	Version     float64            // default 0
	Substitutes map[string]string  // regex-source -> replacement, applied once at file-read time
	Binds       map[string]interface{} // connection-wide default binds
	DateFormatter interface{}      // true, or func(time.Time) string

	LogTags []string // logging tags for this connection; the core does not attach them to log records

	// SeriesWeight orders series dispatch: higher weights run first,
	// connections with the default weight keep registration order, and a
	// weighted random draw orders connections sharing any other weight
	// (SPEC_FULL §3). Defaults to 1, mirroring the teacher's
	// ConfigNode.Weight default-to-1 rule.
	SeriesWeight int

	// DryRun, when true, rewrites and logs SQL but skips the driver Exec
	// call for non-READ CRUD types (SPEC_FULL §3).
	DryRun bool

	compiledSubstitutes []compiledSubstitute
}

type compiledSubstitute struct {
	pattern     *regexp.Regexp
	replacement string
}

// compileSubstitutes compiles ConnectionConfig.Substitutes once; called by
// connectionState.initialize before the catalog scan.
func (c *ConnectionConfig) compileSubstitutes() error {
	if len(c.Substitutes) == 0 {
		return nil
	}
	c.compiledSubstitutes = make([]compiledSubstitute, 0, len(c.Substitutes))
	for pattern, replacement := range c.Substitutes {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid substitute pattern %q: %w", pattern, err)
		}
		c.compiledSubstitutes = append(c.compiledSubstitutes, compiledSubstitute{pattern: re, replacement: replacement})
	}
	return nil
}

func (c *ConnectionConfig) applySubstitutes(text string) string {
	for _, s := range c.compiledSubstitutes {
		text = s.pattern.ReplaceAllString(text, s.replacement)
	}
	return text
}

func (c *ConnectionConfig) dir() string {
	if c.Dir != "" {
		return c.Dir
	}
	return c.Name
}

func (c *ConnectionConfig) seriesWeight() int {
	if c.SeriesWeight <= 0 {
		return 1
	}
	return c.SeriesWeight
}

// PrivateOptions holds credentials and host information for one connection,
// keyed by ConnectionConfig.ID (spec §3 "Private options"). Cloned
// defensively before being handed to a Driver.
type PrivateOptions struct {
	Host string
	Port string
	User string
	Pass string
	Name string // default schema/database name

	// Extra carries driver-specific fields the core never inspects.
	Extra map[string]interface{}
}

// Clone returns a defensive deep-ish copy (Extra map is copied shallowly
// per key, matching the teacher's "clone before handing to driver" rule).
func (p PrivateOptions) Clone() PrivateOptions {
	clone := p
	if p.Extra != nil {
		clone.Extra = make(map[string]interface{}, len(p.Extra))
		for k, v := range p.Extra {
			clone.Extra[k] = v
		}
	}
	return clone
}

// Describe returns a human-facing, credential-free summary of a connection
// (SPEC_FULL §3, modeled on the teacher's FilteredLinkInfo).
func (p PrivateOptions) Describe(dialect, name string) string {
	return fmt.Sprintf("%s://%s@%s:%s/%s", dialect, name, p.Host, p.Port, p.Name)
}
