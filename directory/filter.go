package directory

import "strings"

// Filter selects entries in FindAll. A nil Filter matches every entry.
type Filter interface {
	Matches(entry Entry) bool
	String() string
}

type equalityFilter struct {
	attr  string
	value string
}

// Equal matches entries holding value (case-insensitive) in attr.
func Equal(attr string, value string) Filter {
	return equalityFilter{attr: strings.TrimSpace(attr), value: value}
}

func (f equalityFilter) Matches(entry Entry) bool {
	for _, candidate := range entry.Attributes[f.attr] {
		if strings.EqualFold(candidate, f.value) {
			return true
		}
	}
	return false
}

func (f equalityFilter) String() string {
	return "(" + f.attr + "=" + f.value + ")"
}

type andFilter struct {
	filters []Filter
}

func And(filters ...Filter) Filter {
	kept := make([]Filter, 0, len(filters))
	for _, filter := range filters {
		if filter != nil {
			kept = append(kept, filter)
		}
	}
	return andFilter{filters: kept}
}

func (f andFilter) Matches(entry Entry) bool {
	for _, filter := range f.filters {
		if !filter.Matches(entry) {
			return false
		}
	}
	return true
}

func (f andFilter) String() string {
	var b strings.Builder
	b.WriteString("(&")
	for _, filter := range f.filters {
		b.WriteString(filter.String())
	}
	b.WriteString(")")
	return b.String()
}

// Match applies filter, treating nil as match-all.
func Match(filter Filter, entry Entry) bool {
	if filter == nil {
		return true
	}
	return filter.Matches(entry)
}

func FilterString(filter Filter) string {
	if filter == nil {
		return "(*)"
	}
	return filter.String()
}
