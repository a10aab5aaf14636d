// Package buffer implements a chunked, append-only byte buffer that
// flattens to a contiguous string on demand.
package buffer

// ChunkSize is the size of each backing chunk (64 KiB).
const ChunkSize = 64 * 1024

type chunk struct {
	data [ChunkSize]byte
	n    int
	next *chunk
}

// Buffer accumulates bytes across fixed-size chunks and flattens them into
// a single contiguous string on demand. The zero value is ready to use.
type Buffer struct {
	total int
	head  *chunk
	tail  *chunk
}

// Append adds data to the buffer, allocating new chunks as needed.
func (b *Buffer) Append(data []byte) {
	b.total += len(data)
	if b.head == nil {
		b.head = &chunk{}
		b.tail = b.head
	}
	for len(data) > 0 {
		avail := ChunkSize - b.tail.n
		cpy := len(data)
		if cpy > avail {
			cpy = avail
		}
		copy(b.tail.data[b.tail.n:], data[:cpy])
		b.tail.n += cpy
		data = data[cpy:]
		if b.tail.n == ChunkSize && len(data) > 0 {
			next := &chunk{}
			b.tail.next = next
			b.tail = next
		}
	}
}

// AppendString is a convenience wrapper around Append.
func (b *Buffer) AppendString(s string) {
	b.Append([]byte(s))
}

// Len returns the total number of bytes appended so far.
func (b *Buffer) Len() int {
	return b.total
}

// Flatten returns a freshly-allocated contiguous string containing every
// appended byte in order. It does not reset the buffer.
func (b *Buffer) Flatten() string {
	out := make([]byte, 0, b.total)
	for c := b.head; c != nil; c = c.next {
		out = append(out, c.data[:c.n]...)
	}
	return string(out)
}

// Reset empties the buffer so it can be reused. Go's garbage collector
// retires the discarded chunks.
func (b *Buffer) Reset() {
	b.total = 0
	b.head = nil
	b.tail = nil
}

// TrimTrailingSpaces removes trailing ASCII space bytes from the
// accumulated content in place. It is O(n) in the buffer length since it
// must flatten to trim across chunk boundaries; callers needing this
// operate on short-lived buffers only.
func (b *Buffer) TrimTrailingSpaces() {
	flat := b.Flatten()
	i := len(flat)
	for i > 0 && flat[i-1] == ' ' {
		i--
	}
	b.Reset()
	if i > 0 {
		b.AppendString(flat[:i])
	}
}
