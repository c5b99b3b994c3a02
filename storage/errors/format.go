package errors

import "fmt"

// TruncatedInput 输入太短，无法识别格式
func TruncatedInput(path string, required, actual int) error {
	return New(ErrTruncatedInput).
		Op("sniff").
		Path(path).
		Context("required_bytes", required).
		Context("actual_bytes", actual).
		Severity(SeverityWarning).
		Build()
}

// NestingTooDeep 容器嵌套层数超限
func NestingTooDeep(path string, depth, max int) error {
	return New(ErrNestingTooDeep).
		Op("unwrap_container").
		Path(path).
		Context("depth", depth).
		Context("max_depth", max).
		Build()
}

// FormatCorrupted 文件损坏
func FormatCorrupted(op string, offset int64, reason string) error {
	return New(ErrCorruptedFile).
		Op(op).
		Offset(offset).
		Context("reason", reason).
		Severity(SeverityFatal).
		Build()
}

// MissingSentinel reports a table of contents that never terminated.
func MissingSentinel(op string, offset int64, records int, err error) error {
	return New(ErrMissingSentinel).
		Op(op).
		Offset(offset).
		Context("records_read", records).
		Severity(SeverityFatal).
		Wrap(err).
		Build()
}

// BadDiscriminator reports an unknown layout version byte.
func BadDiscriminator(op string, got byte, known []byte) error {
	knownHex := make([]string, len(known))
	for i, k := range known {
		knownHex[i] = fmt.Sprintf("0x%02X", k)
	}
	return New(ErrBadDiscriminator).
		Op(op).
		Offset(0).
		Context("got", fmt.Sprintf("0x%02X", got)).
		Context("known", knownHex).
		Severity(SeverityFatal).
		Build()
}

// DescriptorCount reports an implausible number of table descriptors.
func DescriptorCount(op string, count, max int) error {
	return New(ErrDescriptorCount).
		Op(op).
		Context("count", count).
		Context("max", max).
		Severity(SeverityFatal).
		Build()
}

// EntryTooLarge reports a container entry over the materialisation limit.
func EntryTooLarge(op string, name string, limit int64) error {
	return New(ErrEntryTooLarge).
		Op(op).
		Context("entry", name).
		Context("limit_bytes", limit).
		Build()
}
