package blockscan

import "strings"

const (
	// FirstBlockName names the region before the first boundary.
	FirstBlockName = "FirstBlock"
	// UnknownBlockName is used when a dynamic name cannot be read.
	UnknownBlockName = "Unknown"
)

// Kind is the closed set of block types a consumer can dispatch on.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindHeader       // the synthetic first block
	KindTask
	KindResource
	KindCalendar
	KindRelation
	KindAssignment
	KindProject
)

func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindTask:
		return "task"
	case KindResource:
		return "resource"
	case KindCalendar:
		return "calendar"
	case KindRelation:
		return "relation"
	case KindAssignment:
		return "assignment"
	case KindProject:
		return "project"
	default:
		return "unknown"
	}
}

// KindOf maps a block name onto Kind. Names outside the known set are
// KindUnknown.
func KindOf(name string) Kind {
	switch strings.TrimSpace(name) {
	case FirstBlockName:
		return KindHeader
	case "CTask":
		return KindTask
	case "CResource":
		return KindResource
	case "CCalendar":
		return KindCalendar
	case "CRelation":
		return KindRelation
	case "CAssignment":
		return KindAssignment
	case "CProject":
		return KindProject
	default:
		return KindUnknown
	}
}

// Block is one named region of the scanned buffer. Data aliases the buffer
// passed to Scan.
type Block struct {
	Name      string
	Kind      Kind
	Offset    int
	Length    int
	Signature *Signature // own copy; nil for the first block
	Data      []byte
}

// End returns the offset just past the block.
func (b Block) End() int {
	return b.Offset + b.Length
}
