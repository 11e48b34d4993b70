package shell

import (
	"os"
	"strings"
)

// ExpandEnv - `${NAME}` to the env value, `${NAME:default}` to the default
// when NAME is unset. Unset names without default are left as is.
func ExpandEnv(s string) string {
	var b strings.Builder

	for {
		start := strings.Index(s, "${")
		if start < 0 {
			break
		}
		size := strings.IndexByte(s[start:], '}')
		if size < 0 {
			break
		}

		ref := s[start : start+size+1]
		b.WriteString(s[:start])
		b.WriteString(lookupEnv(ref))
		s = s[start+size+1:]
	}

	b.WriteString(s)
	return b.String()
}

// lookupEnv - value of a `${...}` reference
func lookupEnv(ref string) string {
	name, def, ok := strings.Cut(ref[2:len(ref)-1], ":")
	if value, found := os.LookupEnv(name); found && name != "" {
		return value
	}
	if ok {
		return def
	}
	return ref
}
