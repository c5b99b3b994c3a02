// Package blockscan splits a flat, TOC-less buffer into named blocks by
// looking for byte signatures.
//
// The format carries no reliable block boundaries, so a signature's bytes
// appearing inside unrelated payload data start a new block. Such false
// positives are part of the format's decoding rules and are not filtered.
package blockscan

import (
	"bytes"
	"fmt"

	lerrors "github.com/wzqhbustb/schedio/storage/errors"
)

// Signature is a byte pattern that marks the start of a block.
type Signature struct {
	Pattern []byte

	// Label names the block. When empty the name is read from the buffer as
	// a u16 length-prefixed string at boundary+NameOffset.
	Label      string
	NameOffset int
}

// Dynamic reports whether the block name is read from the buffer.
func (s *Signature) Dynamic() bool {
	return s.Label == ""
}

// MatchAt reports whether the pattern occurs in buf at off.
func (s *Signature) MatchAt(buf []byte, off int) bool {
	if off < 0 || off+len(s.Pattern) > len(buf) {
		return false
	}
	return bytes.Equal(buf[off:off+len(s.Pattern)], s.Pattern)
}

func (s *Signature) clone() *Signature {
	c := *s
	c.Pattern = bytes.Clone(s.Pattern)
	return &c
}

func (s *Signature) String() string {
	if s.Dynamic() {
		return fmt.Sprintf("% X (name@+%d)", s.Pattern, s.NameOffset)
	}
	return fmt.Sprintf("% X (%s)", s.Pattern, s.Label)
}

// SignatureSet is the priority-ordered signature list for one format
// version. Earlier signatures win when several match at the same offset.
// A set is immutable once built and safe for concurrent use.
type SignatureSet struct {
	version byte
	sigs    []Signature
	guard   int
}

// NewSignatureSet builds a set in the given priority order. The signatures
// are copied.
func NewSignatureSet(version byte, sigs ...Signature) (*SignatureSet, error) {
	if len(sigs) == 0 {
		return nil, lerrors.InvalidArg("new_signature_set", "no signatures")
	}
	set := &SignatureSet{version: version, sigs: make([]Signature, len(sigs))}
	for i := range sigs {
		if len(sigs[i].Pattern) == 0 {
			return nil, lerrors.InvalidArg("new_signature_set",
				fmt.Sprintf("signature %d has an empty pattern", i))
		}
		set.sigs[i] = *sigs[i].clone()
		if len(sigs[i].Pattern) > set.guard {
			set.guard = len(sigs[i].Pattern)
		}
	}
	return set, nil
}

func mustSignatureSet(version byte, sigs ...Signature) *SignatureSet {
	set, err := NewSignatureSet(version, sigs...)
	if err != nil {
		panic(err)
	}
	return set
}

// Version returns the discriminator byte the set belongs to.
func (set *SignatureSet) Version() byte {
	return set.version
}

// Signatures returns a copy of the signatures in priority order.
func (set *SignatureSet) Signatures() []Signature {
	out := make([]Signature, len(set.sigs))
	for i := range set.sigs {
		out[i] = *set.sigs[i].clone()
	}
	return out
}

// Guard returns the length of the longest pattern. Offsets closer than this
// to the end of the buffer are not scanned.
func (set *SignatureSet) Guard() int {
	return set.guard
}

// match returns the highest-priority signature matching at off, or nil.
func (set *SignatureSet) match(buf []byte, off int) *Signature {
	for i := range set.sigs {
		if set.sigs[i].MatchAt(buf, off) {
			return &set.sigs[i]
		}
	}
	return nil
}

// The two known sub-versions, selected by the first byte of the buffer.
var (
	setV0 = mustSignatureSet(0x00,
		Signature{Pattern: []byte{0xFF, 0xFF, 0x01, 0x00}, NameOffset: 4},
		Signature{Pattern: []byte{0x01, 0x80, 0x00, 0x00}, Label: "CTask"},
		Signature{Pattern: []byte{0x03, 0x80, 0x00, 0x00}, Label: "CResource"},
		Signature{Pattern: []byte{0x05, 0x80, 0x00, 0x00}, Label: "CCalendar"},
	)

	setV2 = mustSignatureSet(0x02,
		Signature{Pattern: []byte{0xFF, 0xFF, 0x02, 0x00, 0x00}, NameOffset: 5},
		Signature{Pattern: []byte{0x02, 0x80, 0x00, 0x00, 0x01}, Label: "CTask"},
		Signature{Pattern: []byte{0x04, 0x80, 0x00, 0x00, 0x01}, Label: "CResource"},
		Signature{Pattern: []byte{0x06, 0x80, 0x00, 0x00, 0x01}, Label: "CCalendar"},
		Signature{Pattern: []byte{0x08, 0x80, 0x00, 0x00, 0x01}, Label: "CRelation"},
	)
)

var knownSets = []*SignatureSet{setV0, setV2}

// SetFor returns the signature set for a discriminator byte.
func SetFor(discriminator byte) (*SignatureSet, bool) {
	for _, set := range knownSets {
		if set.version == discriminator {
			return set, true
		}
	}
	return nil, false
}

func knownVersions() []byte {
	out := make([]byte, len(knownSets))
	for i, set := range knownSets {
		out[i] = set.version
	}
	return out
}
