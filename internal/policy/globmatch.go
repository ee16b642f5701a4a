package policy

// globMatch implements the minimal shell-glob subset the original
// implementation relies on via the `glob` crate: `*` matches any run of
// characters (including none), `?` matches exactly one character, and
// every other character matches itself literally. This covers every
// pattern that appears in the default and example policy configs
// (`"*"`, `"fs.*"`, `"*.destructive_*"`), without pulling in path
// semantics stdlib's path/filepath.Match carries (it treats `/` and `*`
// specially for path segments, which fq_name strings are not).
//
// No pack dependency provides standalone glob matching — filepath.Match
// doesn't fit fq_name's dotted-not-pathed shape, so this is hand-rolled
// and kept intentionally small.
func globMatch(pattern, s string) bool {
	return globMatchAt(pattern, s, 0, 0)
}

func globMatchAt(pattern, s string, pi, si int) bool {
	for pi < len(pattern) {
		switch pattern[pi] {
		case '*':
			// collapse consecutive '*'
			for pi < len(pattern) && pattern[pi] == '*' {
				pi++
			}
			if pi == len(pattern) {
				return true
			}
			for k := si; k <= len(s); k++ {
				if globMatchAt(pattern, s, pi, k) {
					return true
				}
			}
			return false
		case '?':
			if si >= len(s) {
				return false
			}
			pi++
			si++
		default:
			if si >= len(s) || s[si] != pattern[pi] {
				return false
			}
			pi++
			si++
		}
	}
	return si == len(s)
}
