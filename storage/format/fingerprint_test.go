// Copyright 2024 Schedio Authors
// Licensed under the Apache License, Version 2.0

package format

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// samplePrefix builds a MinPrefix-sized buffer carrying fp at its offset.
func samplePrefix(t *testing.T, fp Fingerprint) []byte {
	t.Helper()
	if fp.Pattern == nil {
		buf := make([]byte, MinPrefix)
		copy(buf[fp.Offset:], fp.Magic)
		return buf
	}

	var text string
	switch fp.Format {
	case FormatPlannerXML:
		text = `<?xml version="1.0"?>` + "\n" + `<project name="demo" mrproject-version="2" company="">`
	case FormatPMXML:
		text = `<?xml version="1.0" encoding="UTF-8"?>` + "\n" + `<APIBusinessObjects xmlns="http://xmlns.oracle.com/Primavera/P6/V8.3/API/BusinessObjects">`
	case FormatMSPDI:
		text = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" + `<Project xmlns="http://schemas.microsoft.com/project">`
	case FormatPhoenixXML:
		text = `<?xml version="1.0" encoding="utf-8"?>` + "\n" + `<project version="4.1" update_mode="false">`
	default:
		t.Fatalf("no sample text for %s", fp.Name)
	}
	buf := bytes.Repeat([]byte{' '}, MinPrefix)
	copy(buf, text)
	return buf
}

func TestEveryFingerprintClassifiesItsOwnSample(t *testing.T) {
	for _, fp := range Fingerprints() {
		fp := fp
		t.Run(fp.Name, func(t *testing.T) {
			prefix := samplePrefix(t, fp)
			require.Len(t, prefix, MinPrefix)

			got := Match(prefix)
			require.NotNil(t, got, "sample for %s matched nothing", fp.Name)
			assert.Equal(t, fp.Name, got.Name)
			assert.Equal(t, fp.Format, got.Format)
		})
	}
}

func TestFingerprintBytesMatchPublishedValues(t *testing.T) {
	tests := []struct {
		name string
		want []byte
	}{
		{"ole2-compound", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}},
		{"mpx", []byte("MPX,")},
		{"jet", append([]byte{0x00, 0x01, 0x00, 0x00}, "Standard Jet DB"...)},
		{"sqlite", []byte("SQLite format")},
		{"xer", []byte("ERMHDR")},
		{"zip", []byte("PK")},
		{"powerproject", []byte{0x00, 0x00, 0x30, 0x30, 0x30, 0x30, 0x30, 0x30}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp, ok := Lookup(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.want, fp.Magic)
			assert.Equal(t, 0, fp.Offset)
		})
	}
}

func TestMatchUnknownContent(t *testing.T) {
	buf := bytes.Repeat([]byte("lorem ipsum "), 64)
	assert.Nil(t, Match(buf))
	assert.Nil(t, Match(make([]byte, MinPrefix)))
}

func TestMatchIsCaseInsensitiveForText(t *testing.T) {
	buf := bytes.Repeat([]byte{' '}, MinPrefix)
	copy(buf, `<apibusinessobjects>`)
	fp := Match(buf)
	require.NotNil(t, fp)
	assert.Equal(t, FormatPMXML, fp.Format)
}

func TestMatchTextAcrossLines(t *testing.T) {
	buf := bytes.Repeat([]byte{'\n'}, MinPrefix)
	copy(buf[100:], `<project`)
	copy(buf[200:], `mrproject-version="2"`)
	fp := Match(buf)
	require.NotNil(t, fp)
	assert.Equal(t, FormatPlannerXML, fp.Format)
}

func TestPriorityOrderIsDeterministic(t *testing.T) {
	// A prefix carrying both the MPX marker and, later on, an XML marker is
	// MPX because byte signatures are tested first.
	buf := bytes.Repeat([]byte{' '}, MinPrefix)
	copy(buf, "MPX,Microsoft Project for Windows,4.0,ANSI\n")
	copy(buf[200:], `<APIBusinessObjects>`)
	fp := Match(buf)
	require.NotNil(t, fp)
	assert.Equal(t, FormatMPX, fp.Format)

	for i := 0; i < 3; i++ {
		assert.Equal(t, fp.Name, Match(buf).Name)
	}
}

func TestMatchReturnsCopies(t *testing.T) {
	buf := bytes.Repeat([]byte{' '}, MinPrefix)
	copy(buf, "MPX,Microsoft Project for Windows,4.0,ANSI\n")

	fp := Match(buf)
	require.NotNil(t, fp)
	fp.Magic[0] = 'X'
	fp.Format = FormatXER

	byName, ok := Lookup("mpx")
	require.True(t, ok)
	byName.Magic[1] = 'X'

	all := Fingerprints()
	for i := range all {
		if all[i].Name == "mpx" {
			all[i].Magic[2] = 'X'
		}
	}

	again := Match(buf)
	require.NotNil(t, again)
	assert.Equal(t, FormatMPX, again.Format)
	assert.Equal(t, []byte("MPX,"), again.Magic)
	assert.NotSame(t, fp, again)
}

func TestMagicShorterThanFingerprint(t *testing.T) {
	fp, ok := Lookup("ole2-compound")
	require.True(t, ok)
	assert.False(t, fp.Match([]byte{0xD0, 0xCF, 0x11}))
	assert.Equal(t, 8, fp.MinLength())
}

func TestFormatKinds(t *testing.T) {
	assert.Equal(t, KindArchive, FormatZip.Kind())
	assert.Equal(t, KindCompressed, FormatLZ4.Kind())
	assert.Equal(t, KindDatabase, FormatSQLiteDatabase.Kind())
	assert.Equal(t, KindText, FormatUTF16.Kind())
	assert.Equal(t, KindSchedule, FormatMSPDI.Kind())
	assert.Equal(t, KindNone, FormatUnknown.Kind())
	assert.True(t, FormatMerlin.IsSchedule())
	assert.False(t, FormatGzip.IsSchedule())
}

func TestFormatNamesRoundTrip(t *testing.T) {
	for f := range formatNames {
		got, ok := Parse(f.String())
		require.True(t, ok, f.String())
		assert.Equal(t, f, got)
	}
	_, ok := Parse("no-such-format")
	assert.False(t, ok)
}

func TestFormatsListsOnlySchedules(t *testing.T) {
	for _, f := range Formats() {
		assert.True(t, f.IsSchedule(), f.String())
	}
	assert.Contains(t, Formats(), FormatMPD)
	assert.NotContains(t, Formats(), FormatZip)
}
