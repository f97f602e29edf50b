package webhooks

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// domainList matches sender domains against glob patterns such as
// "*.saleor.cloud". The '*' wildcard does not cross dots. An empty list
// allows every domain.
type domainList []glob.Glob

func compileDomainList(patterns []string) (domainList, error) {
	list := make(domainList, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(strings.ToLower(strings.TrimSpace(pattern)), '.')
		if err != nil {
			return nil, fmt.Errorf("invalid allowed domain pattern %q: %w", pattern, err)
		}
		list = append(list, g)
	}
	return list, nil
}

func (l domainList) allows(domain string) bool {
	if len(l) == 0 {
		return true
	}
	domain = strings.ToLower(domain)
	for _, g := range l {
		if g.Match(domain) {
			return true
		}
	}
	return false
}
