package placeholder

// SubstituteResult is the outcome of an apply-direction pass.
type SubstituteResult struct {
	Texts       []string // updated run texts, same length and order as input
	Occurrences int      // tokens found, resolved or not
	Resolved    []string // names replaced with a value or default, unique, first-seen order
	Defaulted   []string // subset of Resolved whose replacement came from a default
	Unresolved  []string // names left literal, unique, first-seen order
}

// Substitute scans every run for tokens of the scheme and replaces each one:
// value from the mapping first, then the template default, else the token is
// left literal and its name reported unresolved. Every occurrence of the
// same name gets the same value; keys in the mapping that never appear in
// the document are ignored.
func Substitute(texts []string, scheme Scheme, values, defaults map[string]string) *SubstituteResult {
	re := scheme.pattern()
	res := &SubstituteResult{Texts: make([]string, len(texts))}
	seen := make(map[string]bool)

	for i, t := range texts {
		res.Texts[i] = re.ReplaceAllStringFunc(t, func(tok string) string {
			name := re.FindStringSubmatch(tok)[1]
			res.Occurrences++
			if v, ok := values[name]; ok {
				if !seen[name] {
					seen[name] = true
					res.Resolved = append(res.Resolved, name)
				}
				return v
			}
			if d, ok := defaults[name]; ok {
				if !seen[name] {
					seen[name] = true
					res.Resolved = append(res.Resolved, name)
					res.Defaulted = append(res.Defaulted, name)
				}
				return d
			}
			if !seen[name] {
				seen[name] = true
				res.Unresolved = append(res.Unresolved, name)
			}
			return tok
		})
	}
	return res
}
