// Package key defines the hierarchical paths that identify remote
// resources and their canonical string form used as cache/lease keys.
//
// Two distinct paths never encode to the same string (segments are
// escaped before joining), and the same path always encodes to the
// same string, so the canonical form is safe as a map key.
package key

import "strings"

// Path is an ordered sequence of segments identifying a remote resource,
// e.g. ["users", "42", "settings"]. The zero value is an empty path.
type Path []string

// New builds a Path from the given segments. The input slice is copied
// so later mutation by the caller cannot alias the Path.
func New(segments ...string) Path {
	p := make(Path, len(segments))
	copy(p, segments)
	return p
}

// Child returns a new Path with the given segments appended.
// The receiver is not modified.
func (p Path) Child(segments ...string) Path {
	c := make(Path, 0, len(p)+len(segments))
	c = append(c, p...)
	c = append(c, segments...)
	return c
}

// Resolved reports whether every segment is known. A path with an empty
// segment (a placeholder whose value has not arrived yet) is unresolved:
// no watch may be started and no lease created for it.
func (p Path) Resolved() bool {
	if len(p) == 0 {
		return false
	}
	for _, s := range p {
		if s == "" {
			return false
		}
	}
	return true
}

// String returns the canonical key for this path.
// Segments are escaped ('\' -> `\\`, '/' -> `\/`) and joined with '/',
// so distinct segment sequences always produce distinct keys.
func (p Path) String() string {
	var b strings.Builder
	for i, s := range p {
		if i > 0 {
			b.WriteByte('/')
		}
		escapeSegment(&b, s)
	}
	return b.String()
}

// Parse is the inverse of String for non-empty paths:
// Parse(p.String()) yields a Path equal to p when len(p) > 0.
func Parse(s string) Path {
	var (
		p   Path
		seg strings.Builder
	)
	esc := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case esc:
			seg.WriteByte(c)
			esc = false
		case c == '\\':
			esc = true
		case c == '/':
			p = append(p, seg.String())
			seg.Reset()
		default:
			seg.WriteByte(c)
		}
	}
	p = append(p, seg.String())
	return p
}

func escapeSegment(b *strings.Builder, s string) {
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\', '/':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
}
