package buffer

import (
	"testing"

	testingpkg "github.com/tsurudb/TsuruDB/testing/testing_assert"
)

func TestClockReplacer(t *testing.T) {
	clockReplacer := NewClockReplacer(7)

	// scenario: unpin five elements, i.e. add them to the replacer
	clockReplacer.Unpin(1)
	clockReplacer.Unpin(2)
	clockReplacer.Unpin(3)
	clockReplacer.Unpin(4)
	clockReplacer.Unpin(5)
	testingpkg.Equals(t, uint32(5), clockReplacer.Size())

	// scenario: get two victims from the clock
	var value *FrameID
	value = clockReplacer.Victim()
	testingpkg.Equals(t, FrameID(1), *value)
	value = clockReplacer.Victim()
	testingpkg.Equals(t, FrameID(2), *value)
	testingpkg.Equals(t, uint32(3), clockReplacer.Size())

	// scenario: pin elements in the replacer
	clockReplacer.Pin(4)
	testingpkg.Equals(t, uint32(2), clockReplacer.Size())

	// scenario: unpin 3; it is already in the replacer, so the size stays
	clockReplacer.Unpin(3)
	testingpkg.Equals(t, uint32(2), clockReplacer.Size())

	clockReplacer.Unpin(6)
	testingpkg.Equals(t, uint32(3), clockReplacer.Size())

	// scenario: continue looking for victims
	value = clockReplacer.Victim()
	testingpkg.Equals(t, FrameID(5), *value)
	value = clockReplacer.Victim()
	testingpkg.Equals(t, FrameID(3), *value)
	value = clockReplacer.Victim()
	testingpkg.Equals(t, FrameID(6), *value)
	testingpkg.Equals(t, uint32(0), clockReplacer.Size())

	value = clockReplacer.Victim()
	testingpkg.Assert(t, value == nil, "victim of an empty clock must be nil")
}
