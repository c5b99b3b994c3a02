// Copyright 2024 Schedio Authors
// Licensed under the Apache License, Version 2.0

package format

import "strings"

// MarkerTable is a table name whose presence identifies which schedule
// format lives inside an embedded database.
type MarkerTable uint8

const (
	MarkerUnknown MarkerTable = iota
	MarkerMSPProjects
	MarkerExceptionN
	MarkerProjWBS
	MarkerZScheduleItem
)

func (m MarkerTable) String() string {
	switch m {
	case MarkerMSPProjects:
		return "MSP_PROJECTS"
	case MarkerExceptionN:
		return "EXCEPTIONN"
	case MarkerProjWBS:
		return "PROJWBS"
	case MarkerZScheduleItem:
		return "ZSCHEDULEITEM"
	default:
		return "UNKNOWN"
	}
}

// ParseMarker maps a table name, compared case-insensitively, onto the closed
// set of marker tables. Any other name is MarkerUnknown.
func ParseMarker(table string) MarkerTable {
	switch strings.ToUpper(strings.TrimSpace(table)) {
	case "MSP_PROJECTS":
		return MarkerMSPProjects
	case "EXCEPTIONN":
		return MarkerExceptionN
	case "PROJWBS":
		return MarkerProjWBS
	case "ZSCHEDULEITEM":
		return MarkerZScheduleItem
	default:
		return MarkerUnknown
	}
}

// markerRule binds one marker table to the format it identifies. Rules are
// evaluated in order; the first marker present wins.
type markerRule struct {
	marker MarkerTable
	format Format
}

var markerRules = map[Format][]markerRule{
	FormatJetDatabase: {
		{MarkerMSPProjects, FormatMPD},
		{MarkerExceptionN, FormatAstaMDB},
	},
	FormatSQLiteDatabase: {
		{MarkerExceptionN, FormatAstaSQLite},
		{MarkerProjWBS, FormatP6SQLite},
		{MarkerZScheduleItem, FormatMerlin},
	},
}

// ResolveDatabase picks the schedule format identified by the table names of
// a database of the given container family. It returns FormatUnknown and
// MarkerUnknown when no marker table is present.
func ResolveDatabase(container Format, tables []string) (Format, MarkerTable) {
	present := make(map[MarkerTable]bool, len(tables))
	for _, t := range tables {
		if m := ParseMarker(t); m != MarkerUnknown {
			present[m] = true
		}
	}
	for _, rule := range markerRules[container] {
		if present[rule.marker] {
			return rule.format, rule.marker
		}
	}
	return FormatUnknown, MarkerUnknown
}
