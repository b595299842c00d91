package contacts

import (
	"fmt"
	"strings"
)

// suggestionSet is an insertion ordered set of suggestion strings.
type suggestionSet struct {
	seen  map[string]struct{}
	items []string
}

func newSuggestionSet() *suggestionSet {
	return &suggestionSet{seen: map[string]struct{}{}}
}

func (s *suggestionSet) add(value string) {
	if value == "" {
		return
	}
	if _, ok := s.seen[value]; ok {
		return
	}
	s.seen[value] = struct{}{}
	s.items = append(s.items, value)
}

// addContact inserts both the bare address and the "Name <email>" form so either matches later.
func (s *suggestionSet) addContact(c Contact) {
	email := strings.TrimSpace(c.Email)
	if email == "" {
		return
	}
	s.add(email)
	if name := strings.TrimSpace(c.DisplayName); name != "" {
		s.add(fmt.Sprintf("%s <%s>", name, email))
	}
}

func filterSuggestions(items []string, query string) []string {
	needle := strings.ToLower(query)
	result := make([]string, 0)
	for _, item := range items {
		if strings.Contains(strings.ToLower(item), needle) {
			result = append(result, item)
		}
	}
	return result
}
