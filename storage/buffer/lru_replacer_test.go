package buffer

import (
	"testing"

	testingpkg "github.com/tsurudb/TsuruDB/testing/testing_assert"
)

func TestLRUReplacer(t *testing.T) {
	lruReplacer := NewLRUReplacer(7)

	lruReplacer.Unpin(1)
	lruReplacer.Unpin(2)
	lruReplacer.Unpin(3)
	testingpkg.Equals(t, uint32(3), lruReplacer.Size())

	// victims come out in unpin order
	value := lruReplacer.Victim()
	testingpkg.Equals(t, FrameID(1), *value)
	value = lruReplacer.Victim()
	testingpkg.Equals(t, FrameID(2), *value)
	value = lruReplacer.Victim()
	testingpkg.Equals(t, FrameID(3), *value)

	value = lruReplacer.Victim()
	testingpkg.Assert(t, value == nil, "victim of an empty replacer must be nil")
}

func TestLRUReplacerUnpinTwice(t *testing.T) {
	lruReplacer := NewLRUReplacer(7)

	lruReplacer.Unpin(1)
	lruReplacer.Unpin(2)
	// a second unpin of a present frame does not refresh recency
	lruReplacer.Unpin(1)
	testingpkg.Equals(t, uint32(2), lruReplacer.Size())

	value := lruReplacer.Victim()
	testingpkg.Equals(t, FrameID(1), *value)

	lruReplacer.Pin(2)
	testingpkg.Equals(t, uint32(0), lruReplacer.Size())
}
