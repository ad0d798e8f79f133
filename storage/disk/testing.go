package disk

import (
	"fmt"
	"sync/atomic"
)

var testDBCounter int32

// NewDiskManagerTest returns an in-memory disk manager for tests
func NewDiskManagerTest() DiskManager {
	n := atomic.AddInt32(&testDBCounter, 1)
	return NewVirtualDiskManagerImpl(fmt.Sprintf("test-%d.db", n))
}
