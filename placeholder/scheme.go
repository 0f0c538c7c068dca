package placeholder

import (
	"fmt"
	"regexp"
)

// Scheme is a delimiter scheme for rendering placeholder names as text.
type Scheme string

const (
	SchemeMustache Scheme = "mustache" // {{NAME}}
	SchemePercent  Scheme = "percent"  // %NAME%
	SchemeDollar   Scheme = "dollar"   // $NAME$
)

// DefaultScheme is used when a caller leaves the scheme empty.
const DefaultScheme = SchemeMustache

// ParseScheme validates a scheme string. Empty input selects DefaultScheme.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(s) {
	case "":
		return DefaultScheme, nil
	case SchemeMustache, SchemePercent, SchemeDollar:
		return Scheme(s), nil
	default:
		return "", fmt.Errorf("unknown placeholder scheme %q (want mustache, percent or dollar)", s)
	}
}

// Wrap renders a placeholder name as a delimited token.
func (s Scheme) Wrap(name string) string {
	switch s {
	case SchemePercent:
		return "%" + name + "%"
	case SchemeDollar:
		return "$" + name + "$"
	default:
		return "{{" + name + "}}"
	}
}

// Token names are produced by DeriveName, so the charset is closed.
var (
	mustacheToken = regexp.MustCompile(`\{\{([A-Za-z0-9_]+)\}\}`)
	percentToken  = regexp.MustCompile(`%([A-Za-z0-9_]+)%`)
	dollarToken   = regexp.MustCompile(`\$([A-Za-z0-9_]+)\$`)
)

// pattern returns the token regexp for the scheme, with the name as the
// single capture group.
func (s Scheme) pattern() *regexp.Regexp {
	switch s {
	case SchemePercent:
		return percentToken
	case SchemeDollar:
		return dollarToken
	default:
		return mustacheToken
	}
}

// AllSchemes lists every supported scheme, in documentation order.
func AllSchemes() []Scheme {
	return []Scheme{SchemeMustache, SchemePercent, SchemeDollar}
}
