// Copyright 2024 Schedio Authors
// Licensed under the Apache License, Version 2.0

// Package format holds the process-wide, immutable identification data:
// format tags, the ordered fingerprint table and the database marker tables.
package format

import "fmt"

// MinPrefix is the smallest input the sniffer will classify. Anything shorter
// is assumed not to be a schedule file.
const MinPrefix = 512

// Format tags a detected input format.
type Format uint8

const (
	FormatUnknown Format = iota

	// self-contained schedule formats
	FormatCompound     // OLE2 compound document
	FormatMPX          // MPX text
	FormatXER          // tabular text export
	FormatPowerproject // binary schedule with the "000000" header
	FormatPlannerXML
	FormatPMXML
	FormatMSPDI
	FormatPhoenixXML

	// database families, resolved by marker tables
	FormatMPD
	FormatAstaMDB
	FormatAstaSQLite
	FormatP6SQLite
	FormatMerlin

	// generic containers; never the final result of a successful sniff
	FormatZip
	FormatGzip
	FormatZstd
	FormatLZ4
	FormatSnappy
	FormatJetDatabase
	FormatSQLiteDatabase
	FormatUTF8BOM
	FormatUTF16
)

// Kind groups formats by how the sniffer treats them.
type Kind uint8

const (
	KindNone       Kind = iota
	KindSchedule        // handed to a format decoder
	KindArchive         // unwrapped by opening an entry
	KindCompressed      // unwrapped by streaming decompression
	KindDatabase        // resolved by probing table names
	KindText            // unwrapped by re-encoding the text
)

var formatNames = map[Format]string{
	FormatUnknown:        "unknown",
	FormatCompound:       "compound",
	FormatMPX:            "mpx",
	FormatXER:            "xer",
	FormatPowerproject:   "powerproject",
	FormatPlannerXML:     "planner-xml",
	FormatPMXML:          "pmxml",
	FormatMSPDI:          "mspdi",
	FormatPhoenixXML:     "phoenix-xml",
	FormatMPD:            "mpd",
	FormatAstaMDB:        "asta-mdb",
	FormatAstaSQLite:     "asta-sqlite",
	FormatP6SQLite:       "p6-sqlite",
	FormatMerlin:         "merlin",
	FormatZip:            "zip",
	FormatGzip:           "gzip",
	FormatZstd:           "zstd",
	FormatLZ4:            "lz4",
	FormatSnappy:         "snappy",
	FormatJetDatabase:    "jet-database",
	FormatSQLiteDatabase: "sqlite-database",
	FormatUTF8BOM:        "utf8-bom",
	FormatUTF16:          "utf16",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", uint8(f))
}

// Kind returns how the sniffer treats f.
func (f Format) Kind() Kind {
	switch f {
	case FormatUnknown:
		return KindNone
	case FormatZip:
		return KindArchive
	case FormatGzip, FormatZstd, FormatLZ4, FormatSnappy:
		return KindCompressed
	case FormatJetDatabase, FormatSQLiteDatabase:
		return KindDatabase
	case FormatUTF8BOM, FormatUTF16:
		return KindText
	default:
		return KindSchedule
	}
}

// IsSchedule reports whether f is a final, decodable schedule format.
func (f Format) IsSchedule() bool {
	return f.Kind() == KindSchedule
}

// Parse returns the format with the given name.
func Parse(name string) (Format, bool) {
	for f, n := range formatNames {
		if n == name {
			return f, true
		}
	}
	return FormatUnknown, false
}

// Formats returns every schedule format tag in declaration order.
func Formats() []Format {
	var out []Format
	for f := FormatCompound; f <= FormatUTF16; f++ {
		if f.IsSchedule() {
			out = append(out, f)
		}
	}
	return out
}
