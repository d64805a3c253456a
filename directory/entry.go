package directory

import (
	"slices"
	"strings"
)

// Entry is a single directory node. Attribute names are compared as given.
type Entry struct {
	DN          string
	ObjectClass string
	Attributes  map[string][]string
}

func NewEntry(dn string, objectClass string) Entry {
	return Entry{
		DN:          strings.TrimSpace(dn),
		ObjectClass: strings.TrimSpace(objectClass),
		Attributes:  map[string][]string{},
	}
}

// Get returns the first value of the attribute, or "" when unset.
func (e Entry) Get(name string) string {
	values := e.Attributes[name]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func (e Entry) Values(name string) []string {
	return append([]string(nil), e.Attributes[name]...)
}

// Set replaces all values of the attribute. Calling Set without values
// removes the attribute.
func (e *Entry) Set(name string, values ...string) {
	if e.Attributes == nil {
		e.Attributes = map[string][]string{}
	}
	if len(values) == 0 {
		delete(e.Attributes, name)
		return
	}
	e.Attributes[name] = append([]string(nil), values...)
}

// Add appends value to a multi-valued attribute. It reports false when the
// value was already present.
func (e *Entry) Add(name string, value string) bool {
	if e.Attributes == nil {
		e.Attributes = map[string][]string{}
	}
	if slices.Contains(e.Attributes[name], value) {
		return false
	}
	e.Attributes[name] = append(e.Attributes[name], value)
	return true
}

func (e Entry) Clone() Entry {
	cloned := Entry{
		DN:          e.DN,
		ObjectClass: e.ObjectClass,
		Attributes:  make(map[string][]string, len(e.Attributes)),
	}
	for name, values := range e.Attributes {
		cloned.Attributes[name] = append([]string(nil), values...)
	}
	return cloned
}

func (e Entry) ParentDN() string {
	return ParentDN(e.DN)
}

// JoinDN builds "attr=value,parent". An empty parent yields a root DN.
func JoinDN(attr string, value string, parent string) string {
	rdn := strings.TrimSpace(attr) + "=" + strings.TrimSpace(value)
	parent = strings.TrimSpace(parent)
	if parent == "" {
		return rdn
	}
	return rdn + "," + parent
}

func ParentDN(dn string) string {
	_, parent, found := strings.Cut(strings.TrimSpace(dn), ",")
	if !found {
		return ""
	}
	return strings.TrimSpace(parent)
}

// NormalizeDN lower-cases the DN and strips blanks around separators so that
// "ou=X, o=gluu" and "OU=x,o=gluu" address the same node.
func NormalizeDN(dn string) string {
	parts := strings.Split(strings.TrimSpace(dn), ",")
	for i, part := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(part))
	}
	return strings.Join(parts, ",")
}

// IsDescendant reports whether dn sits anywhere below baseDN.
func IsDescendant(dn string, baseDN string) bool {
	dn = NormalizeDN(dn)
	baseDN = NormalizeDN(baseDN)
	if baseDN == "" {
		return dn != ""
	}
	return strings.HasSuffix(dn, ","+baseDN)
}
