// Copyright 2024 Schedio Authors
// Licensed under the Apache License, Version 2.0

package format

import (
	"bytes"
	"regexp"
)

// Action says what the sniffer does once a fingerprint matches.
type Action uint8

const (
	ActionDelegate       Action = iota // hand the stream to the format decoder
	ActionUnwrapArchive                // open the archive and re-sniff an entry
	ActionDecompress                   // decompress and re-sniff the output
	ActionProbeDatabase                // list table names and match marker tables
	ActionStripBOM                     // drop the byte order mark and re-sniff
	ActionTranscodeUTF16               // convert to UTF-8 and re-sniff
)

func (a Action) String() string {
	switch a {
	case ActionDelegate:
		return "delegate"
	case ActionUnwrapArchive:
		return "unwrap-archive"
	case ActionDecompress:
		return "decompress"
	case ActionProbeDatabase:
		return "probe-database"
	case ActionStripBOM:
		return "strip-bom"
	case ActionTranscodeUTF16:
		return "transcode-utf16"
	default:
		return "unknown"
	}
}

// Fingerprint identifies a format either by exact bytes at Offset or by a
// text pattern over the whole peeked prefix. Exactly one of Magic and
// Pattern is set.
type Fingerprint struct {
	Name    string
	Format  Format
	Action  Action
	Magic   []byte
	Offset  int
	Pattern *regexp.Regexp
}

// Match reports whether prefix carries the fingerprint.
func (fp *Fingerprint) Match(prefix []byte) bool {
	if fp.Pattern != nil {
		return fp.Pattern.Match(prefix)
	}
	end := fp.Offset + len(fp.Magic)
	if len(prefix) < end {
		return false
	}
	return bytes.Equal(prefix[fp.Offset:end], fp.Magic)
}

// MinLength is the number of prefix bytes a magic fingerprint needs. Text
// patterns report 0.
func (fp *Fingerprint) MinLength() int {
	if fp.Pattern != nil {
		return 0
	}
	return fp.Offset + len(fp.Magic)
}

// clone copies fp so callers cannot reach the shared table. Pattern is
// shared; a compiled regexp is safe for concurrent use.
func (fp *Fingerprint) clone() *Fingerprint {
	c := *fp
	c.Magic = bytes.Clone(fp.Magic)
	return &c
}

func magic(parts ...string) []byte {
	var b []byte
	for _, p := range parts {
		b = append(b, p...)
	}
	return b
}

// fingerprints is the single priority list. The order matters wherever
// prefixes could overlap: longer and more specific byte signatures come
// before short generic ones ("PK", BOMs), and every byte signature comes
// before the text patterns, which scan the whole prefix.
var fingerprints = []Fingerprint{
	{Name: "ole2-compound", Format: FormatCompound, Action: ActionDelegate,
		Magic: []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}},
	{Name: "mpx", Format: FormatMPX, Action: ActionDelegate,
		Magic: magic("MPX,")},
	{Name: "jet", Format: FormatJetDatabase, Action: ActionProbeDatabase,
		Magic: magic("\x00\x01\x00\x00", "Standard Jet DB")},
	{Name: "ace", Format: FormatJetDatabase, Action: ActionProbeDatabase,
		Magic: magic("\x00\x01\x00\x00", "Standard ACE DB")},
	{Name: "sqlite", Format: FormatSQLiteDatabase, Action: ActionProbeDatabase,
		Magic: magic("SQLite format")},
	{Name: "xer", Format: FormatXER, Action: ActionDelegate,
		Magic: magic("ERMHDR")},
	{Name: "zip", Format: FormatZip, Action: ActionUnwrapArchive,
		Magic: magic("PK")},
	{Name: "powerproject", Format: FormatPowerproject, Action: ActionDelegate,
		Magic: []byte{0x00, 0x00, 0x30, 0x30, 0x30, 0x30, 0x30, 0x30}},
	{Name: "gzip", Format: FormatGzip, Action: ActionDecompress,
		Magic: []byte{0x1F, 0x8B, 0x08}},
	{Name: "zstd", Format: FormatZstd, Action: ActionDecompress,
		Magic: []byte{0x28, 0xB5, 0x2F, 0xFD}},
	{Name: "lz4", Format: FormatLZ4, Action: ActionDecompress,
		Magic: []byte{0x04, 0x22, 0x4D, 0x18}},
	{Name: "snappy", Format: FormatSnappy, Action: ActionDecompress,
		Magic: magic("\xFF\x06\x00\x00", "sNaPpY")},
	{Name: "utf8-bom", Format: FormatUTF8BOM, Action: ActionStripBOM,
		Magic: []byte{0xEF, 0xBB, 0xBF}},
	{Name: "utf16le-bom", Format: FormatUTF16, Action: ActionTranscodeUTF16,
		Magic: []byte{0xFF, 0xFE}},
	{Name: "utf16be-bom", Format: FormatUTF16, Action: ActionTranscodeUTF16,
		Magic: []byte{0xFE, 0xFF}},
	{Name: "planner-xml", Format: FormatPlannerXML, Action: ActionDelegate,
		Pattern: regexp.MustCompile(`(?is).*<project.*mrproject-version.*`)},
	{Name: "pmxml", Format: FormatPMXML, Action: ActionDelegate,
		Pattern: regexp.MustCompile(`(?is).*<APIBusinessObjects.*`)},
	{Name: "mspdi", Format: FormatMSPDI, Action: ActionDelegate,
		Pattern: regexp.MustCompile(`(?is).*xmlns="http://schemas\.microsoft\.com/project".*`)},
	{Name: "phoenix-xml", Format: FormatPhoenixXML, Action: ActionDelegate,
		Pattern: regexp.MustCompile(`(?is).*<project.*version="(\d+|\d+\.\d+)".*update_mode="(true|false)".*>.*`)},
}

// Fingerprints returns a copy of the priority-ordered fingerprint table.
func Fingerprints() []Fingerprint {
	out := make([]Fingerprint, len(fingerprints))
	for i := range fingerprints {
		out[i] = *fingerprints[i].clone()
	}
	return out
}

// Match returns a copy of the first fingerprint, in priority order, that
// prefix carries, or nil.
func Match(prefix []byte) *Fingerprint {
	for i := range fingerprints {
		if fingerprints[i].Match(prefix) {
			return fingerprints[i].clone()
		}
	}
	return nil
}

// Lookup returns a copy of the fingerprint with the given name.
func Lookup(name string) (*Fingerprint, bool) {
	for i := range fingerprints {
		if fingerprints[i].Name == name {
			return fingerprints[i].clone(), true
		}
	}
	return nil, false
}
