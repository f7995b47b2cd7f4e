// pkg/scope/scope.go
// Package scope decides whether a hostname is authorized for scanning, based
// on an include/exclude rule policy loaded from a Burp-style scope file.
package scope

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// Rule is a single host pattern. The pattern is an unanchored regular
// expression search, not a full-string match.
type Rule struct {
	Host string `json:"host"`

	re *regexp.Regexp
}

// Match reports whether the rule's pattern occurs anywhere in hostname.
func (r *Rule) Match(hostname string) bool {
	return r.re.MatchString(hostname)
}

// normalized strips the regex metacharacters `\`, `^` and `$` from the
// rule's pattern, yielding a plain candidate domain string. Used to decide
// whether an include rule nests inside an exclude block.
func (r *Rule) normalized() string {
	replacer := strings.NewReplacer(`\`, "", "^", "", "$", "")
	return replacer.Replace(r.Host)
}

// Policy holds the ordered exclude and include rule sequences of one scope
// file. A nil *Policy means "no scope restriction": every hostname is in
// scope.
type Policy struct {
	Exclude []Rule
	Include []Rule
}

// scopeFile mirrors the on-disk JSON document:
//
//	{"target": {"scope": {"exclude": [{"host": ...}], "include": [{"host": ...}]}}}
type scopeFile struct {
	Target struct {
		Scope struct {
			Exclude []Rule `json:"exclude"`
			Include []Rule `json:"include"`
		} `json:"scope"`
	} `json:"target"`
}

// ParsePolicy reads a scope document and compiles its rules. A rule whose
// pattern does not compile fails the whole policy; a scope file with a bad
// pattern would silently change which hosts get scanned.
func ParsePolicy(r io.Reader) (*Policy, error) {
	var doc scopeFile
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode scope file: %w", err)
	}

	policy := &Policy{
		Exclude: doc.Target.Scope.Exclude,
		Include: doc.Target.Scope.Include,
	}
	for _, rules := range [][]Rule{policy.Exclude, policy.Include} {
		for i := range rules {
			re, err := regexp.Compile(rules[i].Host)
			if err != nil {
				return nil, fmt.Errorf("compile scope pattern %q: %w", rules[i].Host, err)
			}
			rules[i].re = re
		}
	}
	return policy, nil
}

// LoadPolicy opens and parses the scope file at path. An empty path means no
// scope policy and returns a nil Policy.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scope file: %w", err)
	}
	defer f.Close()
	return ParsePolicy(f)
}

// IsInScope evaluates hostname against the policy with default-allow
// semantics: with no policy, or no matching exclude rule, the hostname is in
// scope.
//
// For every exclude rule that matches the hostname, each include rule is
// tested for nesting: the include pattern is normalized to a plain domain
// string, and if the exclude pattern also matches that string the include is
// a more specific carve-out inside this exclude block, so the verdict becomes
// whether the include pattern matches the hostname directly. Includes that do
// not nest leave the hostname excluded.
//
// The verdict is only ever assigned while examining include rules, and each
// matching exclude rule unconditionally overwrites the running result, so the
// last matching exclude rule wins and an exclude list paired with zero
// include rules never changes the verdict. Existing scope files depend on
// both quirks; do not replace this with any-match-wins without revisiting
// those files.
func (p *Policy) IsInScope(hostname string) bool {
	inScope := true

	if p == nil {
		return inScope
	}

	for i := range p.Exclude {
		block := &p.Exclude[i]
		if !block.Match(hostname) {
			continue
		}
		for j := range p.Include {
			allow := &p.Include[j]
			if block.re.MatchString(allow.normalized()) {
				// The allowed domain fits inside the blocked entry, so it is
				// more specific. The include pattern itself decides.
				inScope = allow.Match(hostname)
			} else {
				inScope = false
			}
		}
	}
	return inScope
}
