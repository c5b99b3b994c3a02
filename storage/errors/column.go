package errors

// ColumnHeader 列块头部损坏（条目数为负或过大）
func ColumnHeader(column string, declared int64, available int) error {
	return New(ErrColumnHeader).
		Op("decode_column").
		Offset(0).
		Context("column", column).
		Context("declared_items", declared).
		Context("available_bytes", available).
		Build()
}
