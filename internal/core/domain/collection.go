package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Collections maps a collection name to the identifiers schemas accept for it.
// It is filled once before any schema is compiled and only read afterwards.
type Collections struct {
	members map[string][]string
}

func NewCollections() *Collections {
	return &Collections{members: make(map[string][]string)}
}

// Register inserts or replaces the named collection.
func (c *Collections) Register(name string, members []string) {
	c.members[name] = slices.Clone(members)
}

func (c *Collections) Get(name string) ([]string, error) {
	members, ok := c.members[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}
	return slices.Clone(members), nil
}

func (c *Collections) Names() []string {
	names := make([]string, 0, len(c.members))
	for name := range c.members {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ParseWordList splits a newline separated identifier list. Surrounding
// whitespace is trimmed first, so an empty file yields no members.
func ParseWordList(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
