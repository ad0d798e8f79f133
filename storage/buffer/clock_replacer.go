package buffer

import (
	"sync"
)

// ClockReplacer approximates LRU with a reference bit per candidate and a
// sweeping clock hand.
type ClockReplacer struct {
	cList     *circularList
	clockHand **node
	mutex     sync.Mutex
}

// Victim removes the victim frame as defined by the replacement policy: the
// hand clears reference bits until it lands on a frame whose bit is unset.
func (c *ClockReplacer) Victim() *FrameID {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.cList.size == 0 {
		return nil
	}

	currentNode := *c.clockHand
	for {
		if currentNode.value {
			currentNode.value = false
			c.clockHand = &currentNode.next
			currentNode = *c.clockHand
		} else {
			frameID := currentNode.key
			c.clockHand = &currentNode.next
			c.cList.remove(currentNode.key)
			return &frameID
		}
	}
}

// Unpin sets a frame's reference bit, inserting it as a candidate when absent
func (c *ClockReplacer) Unpin(id FrameID) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.cList.hasKey(id) {
		if c.cList.isFull() {
			return
		}
		c.cList.insert(id, true)
		if c.cList.size == 1 {
			c.clockHand = &c.cList.head
		}
	} else {
		c.cList.find(id).value = true
	}
}

// Pin removes a frame from candidacy, advancing the hand if it pointed there
func (c *ClockReplacer) Pin(id FrameID) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	node := c.cList.find(id)
	if node == nil {
		return
	}

	if (*c.clockHand) == node {
		c.clockHand = &(*c.clockHand).next
	}
	c.cList.remove(id)
}

// Size returns the number of candidates in the clock
func (c *ClockReplacer) Size() uint32 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.cList.size
}

// NewClockReplacer instantiates a new clock replacer
func NewClockReplacer(poolSize uint32) *ClockReplacer {
	cList := newCircularList(poolSize)
	return &ClockReplacer{cList: cList, clockHand: &cList.head}
}
