package bus

import (
	"sync"

	"marketfeed/internal/model"
	"marketfeed/internal/model/enum"
)

// Entry is a buffered record together with the sequence number the buffer
// assigned on append. The sequence identifies the logical element across
// concurrent appends.
type Entry struct {
	Seq    uint64
	Record model.Record
}

// Buffer is an unbounded per-category collection of records awaiting
// persistence. Any number of goroutines may append; a single drain worker peeks
// and removes the newest record.
//
// Appends only ever grow the tail, so an element peeked by the drain worker
// keeps its identity even if newer records arrive before it is removed.
type Buffer struct {
	category enum.Category

	mu      sync.Mutex
	entries []Entry
	nextSeq uint64
}

// NewBuffer allocates an empty buffer for the category.
func NewBuffer(category enum.Category) *Buffer {
	return &Buffer{category: category}
}

// Category returns the category the buffer holds.
func (b *Buffer) Category() enum.Category {
	return b.category
}

// Append adds a record for later draining. It never blocks beyond the buffer's
// own mutex and never rejects a record.
func (b *Buffer) Append(rec model.Record) {
	b.mu.Lock()
	b.nextSeq++
	b.entries = append(b.entries, Entry{Seq: b.nextSeq, Record: rec})
	b.mu.Unlock()
}

// PeekNewest returns the most recently appended record without removing it.
func (b *Buffer) PeekNewest() (Entry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) == 0 {
		return Entry{}, false
	}
	return b.entries[len(b.entries)-1], true
}

// RemoveNewest removes the element returned by PeekNewest. Records appended
// after the peek are left in place. It reports false when the entry is no
// longer buffered.
func (b *Buffer) RemoveNewest(e Entry) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.entries) - 1; i >= 0; i-- {
		seq := b.entries[i].Seq
		if seq < e.Seq {
			return false
		}
		if seq != e.Seq {
			continue
		}
		copy(b.entries[i:], b.entries[i+1:])
		b.entries[len(b.entries)-1] = Entry{}
		b.entries = b.entries[:len(b.entries)-1]
		return true
	}
	return false
}

// Len returns the number of buffered records.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Empty reports whether nothing is buffered.
func (b *Buffer) Empty() bool {
	return b.Len() == 0
}
