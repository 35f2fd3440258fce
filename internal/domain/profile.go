package domain

import "strings"

// Profile is a named category-scoped scan configuration. Profiles are
// static configuration and are processed in declared order.
type Profile struct {
	Key            string `yaml:"key"`
	Label          string `yaml:"label"`
	Category       string `yaml:"category"`
	ExcludeDigital bool   `yaml:"exclude_digital"`
	NotifyLimit    int    `yaml:"notify_limit"`
}

// digitalKeywords mark digital-only listings by title. Matching is
// case-insensitive; the Japanese keywords have no case but the Latin ones do.
var digitalKeywords = []string{
	"kindle版",
	"電子書籍",
	"デジタル",
	"ダウンロード版",
	"オンラインコード",
	"dlc",
}

// MatchesDigital reports whether a title looks like digital-only content.
// Only consulted when the profile sets ExcludeDigital.
func MatchesDigital(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range digitalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
