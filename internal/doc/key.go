package doc

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// Key identifies a document inside one storage scope. Language "" is the
// default-language copy; translations share Wiki/Space/Name.
type Key struct {
	Wiki     string
	Space    string
	Name     string
	Language string
}

func NewKey(wiki, space, name string) Key {
	return Key{Wiki: wiki, Space: space, Name: name}
}

// FullName returns the "Space.Name" form used by links and searches.
func (k Key) FullName() string {
	return k.Space + "." + k.Name
}

func (k Key) String() string {
	if k.Language == "" {
		return k.Wiki + ":" + k.FullName()
	}
	return k.Wiki + ":" + k.FullName() + ":" + k.Language
}

// ID returns a stable numeric identity for the key, used by the link and
// lock tables. Derived from the key text, never stored as a sequence.
func (k Key) ID() int64 {
	h := fnv.New64a()
	h.Write([]byte(k.String()))
	return int64(h.Sum64())
}

// ParseFullName splits a "Space.Name" reference, falling back to the given
// space when the reference has no space part.
func ParseFullName(ref, defaultSpace string) (space, name string) {
	i := strings.Index(ref, ".")
	if i < 0 {
		return defaultSpace, ref
	}
	return ref[:i], ref[i+1:]
}

// ParseKey builds a key from a "Space.Name" reference within a wiki. The
// space part defaults to Main.
func ParseKey(wiki, ref string) (Key, error) {
	space, name := ParseFullName(strings.TrimSpace(ref), "Main")
	k := Key{Wiki: wiki, Space: space, Name: name}
	if err := k.Validate(); err != nil {
		return Key{}, err
	}
	return k, nil
}

func (k Key) Validate() error {
	if k.Wiki == "" || k.Space == "" || k.Name == "" {
		return fmt.Errorf("incomplete document key %q", k.String())
	}
	return nil
}
