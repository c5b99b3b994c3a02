// Copyright 2024 Schedio Authors
// Licensed under the Apache License, Version 2.0

package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMarker(t *testing.T) {
	tests := []struct {
		table string
		want  MarkerTable
	}{
		{"MSP_PROJECTS", MarkerMSPProjects},
		{"msp_projects", MarkerMSPProjects},
		{"ExceptionN", MarkerExceptionN},
		{" PROJWBS ", MarkerProjWBS},
		{"ZSCHEDULEITEM", MarkerZScheduleItem},
		{"TASK", MarkerUnknown},
		{"", MarkerUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseMarker(tt.table))
		})
	}
}

func TestResolveDatabase(t *testing.T) {
	tests := []struct {
		name       string
		container  Format
		tables     []string
		wantFormat Format
		wantMarker MarkerTable
	}{
		{"jet mpd", FormatJetDatabase, []string{"msp_tasks", "MSP_Projects"}, FormatMPD, MarkerMSPProjects},
		{"jet asta", FormatJetDatabase, []string{"exceptionn", "task"}, FormatAstaMDB, MarkerExceptionN},
		{"jet ignores sqlite-only marker", FormatJetDatabase, []string{"PROJWBS"}, FormatUnknown, MarkerUnknown},
		{"sqlite asta", FormatSQLiteDatabase, []string{"EXCEPTIONN"}, FormatAstaSQLite, MarkerExceptionN},
		{"sqlite p6", FormatSQLiteDatabase, []string{"task", "projwbs"}, FormatP6SQLite, MarkerProjWBS},
		{"sqlite merlin", FormatSQLiteDatabase, []string{"ZScheduleItem"}, FormatMerlin, MarkerZScheduleItem},
		{"sqlite rule order", FormatSQLiteDatabase, []string{"PROJWBS", "EXCEPTIONN"}, FormatAstaSQLite, MarkerExceptionN},
		{"no markers", FormatSQLiteDatabase, []string{"users", "orders"}, FormatUnknown, MarkerUnknown},
		{"not a database family", FormatZip, []string{"PROJWBS"}, FormatUnknown, MarkerUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, m := ResolveDatabase(tt.container, tt.tables)
			assert.Equal(t, tt.wantFormat, f)
			assert.Equal(t, tt.wantMarker, m)
		})
	}
}
