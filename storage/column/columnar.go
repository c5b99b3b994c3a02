package column

import (
	"encoding/binary"

	lerrors "github.com/wzqhbustb/schedio/storage/errors"
)

// itemHeaderSize is the u32 length prefix carried by every columnar item.
const itemHeaderSize = 4

// DecodeColumn decodes a columnar block: a u32 item count followed by that
// many u32-length-prefixed items, each holding one value of schema s.
//
// A count that is negative or could not fit in the block fails the whole
// column. Anything wrong with an individual item only nulls that item; once
// an item runs past the end of the block, it and every item after it are
// null.
func (d *Decoder) DecodeColumn(block []byte, s Schema) ([]Value, error) {
	if len(block) < itemHeaderSize {
		return nil, lerrors.ColumnHeader(s.Name, -1, len(block))
	}

	count := int64(int32(binary.LittleEndian.Uint32(block)))
	avail := len(block) - itemHeaderSize
	if count < 0 || count > int64(avail/itemHeaderSize) {
		return nil, lerrors.ColumnHeader(s.Name, count, avail)
	}

	values := make([]Value, count)
	pos := itemHeaderSize
	truncated := false

	for i := range values {
		values[i] = Null(s.Type)
		if truncated {
			continue
		}
		if pos+itemHeaderSize > len(block) {
			truncated = true
			continue
		}

		n := int64(int32(binary.LittleEndian.Uint32(block[pos:])))
		pos += itemHeaderSize
		if n < 0 || int64(pos)+n > int64(len(block)) {
			truncated = true
			continue
		}

		item := block[pos : pos+int(n)]
		pos += int(n)

		if len(item) < s.Skip+s.MinSize() {
			continue
		}
		values[i], _ = d.Decode(item, 0, s)
	}

	return values, nil
}
