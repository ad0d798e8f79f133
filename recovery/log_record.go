package recovery

import (
	"sync"

	"github.com/tsurudb/TsuruDB/types"
)

type LogRecordType int32

// The type of the log record.
const (
	INVALID LogRecordType = iota
	INSERT
	DELETE
	UPDATE
	BEGIN
	COMMIT
	ABORT
)

// LogRecord is one entry of the key-value log trace. Only the fields of its
// type are meaningful.
type LogRecord struct {
	LogRecordType LogRecordType
	Lsn           types.LSN
	PrevLsn       types.LSN
	TxnId         types.TxnID

	// INSERT
	InsKey string
	InsVal int32

	// DELETE
	DelKey string
	DelVal int32

	// UPDATE
	OldKey string
	OldVal int32
	NewKey string
	NewVal int32
}

// LogContext allocates LSNs and tracks each transaction's last LSN so a new
// record can chain to its predecessor. It is an explicit object, not process
// state; every log creator receives one.
type LogContext struct {
	nextLsn     types.LSN
	prevLsnMap  map[types.TxnID]types.LSN
	nextTxnId   types.TxnID
	activeMutex sync.Mutex
}

func NewLogContext() *LogContext {
	return &LogContext{nextLsn: 0, prevLsnMap: make(map[types.TxnID]types.LSN), nextTxnId: 0}
}

// NewTxnId hands out the next transaction id
func (ctx *LogContext) NewTxnId() types.TxnID {
	ctx.activeMutex.Lock()
	defer ctx.activeMutex.Unlock()
	ret := ctx.nextTxnId
	ctx.nextTxnId++
	return ret
}

func (ctx *LogContext) append(txnId types.TxnID) (types.LSN, types.LSN) {
	ctx.activeMutex.Lock()
	defer ctx.activeMutex.Unlock()

	lsn := ctx.nextLsn
	ctx.nextLsn++
	prevLsn, ok := ctx.prevLsnMap[txnId]
	if !ok {
		prevLsn = types.InvalidLSN
	}
	ctx.prevLsnMap[txnId] = lsn
	return lsn, prevLsn
}

// NewBeginLogRecord starts a transaction's chain
func (ctx *LogContext) NewBeginLogRecord(txnId types.TxnID) *LogRecord {
	lsn, prevLsn := ctx.append(txnId)
	return &LogRecord{LogRecordType: BEGIN, Lsn: lsn, PrevLsn: prevLsn, TxnId: txnId}
}

// NewCommitLogRecord ends a transaction's chain with a commit
func (ctx *LogContext) NewCommitLogRecord(txnId types.TxnID) *LogRecord {
	lsn, prevLsn := ctx.append(txnId)
	return &LogRecord{LogRecordType: COMMIT, Lsn: lsn, PrevLsn: prevLsn, TxnId: txnId}
}

// NewAbortLogRecord ends a transaction's chain with an abort
func (ctx *LogContext) NewAbortLogRecord(txnId types.TxnID) *LogRecord {
	lsn, prevLsn := ctx.append(txnId)
	return &LogRecord{LogRecordType: ABORT, Lsn: lsn, PrevLsn: prevLsn, TxnId: txnId}
}

// NewInsertLogRecord logs key := val
func (ctx *LogContext) NewInsertLogRecord(txnId types.TxnID, key string, val int32) *LogRecord {
	lsn, prevLsn := ctx.append(txnId)
	return &LogRecord{LogRecordType: INSERT, Lsn: lsn, PrevLsn: prevLsn, TxnId: txnId, InsKey: key, InsVal: val}
}

// NewDeleteLogRecord logs removal of key (carrying the removed value for
// undo)
func (ctx *LogContext) NewDeleteLogRecord(txnId types.TxnID, key string, val int32) *LogRecord {
	lsn, prevLsn := ctx.append(txnId)
	return &LogRecord{LogRecordType: DELETE, Lsn: lsn, PrevLsn: prevLsn, TxnId: txnId, DelKey: key, DelVal: val}
}

// NewUpdateLogRecord logs oldKey/oldVal being replaced by newKey/newVal
func (ctx *LogContext) NewUpdateLogRecord(txnId types.TxnID, oldKey string, oldVal int32, newKey string, newVal int32) *LogRecord {
	lsn, prevLsn := ctx.append(txnId)
	return &LogRecord{LogRecordType: UPDATE, Lsn: lsn, PrevLsn: prevLsn, TxnId: txnId, OldKey: oldKey, OldVal: oldVal, NewKey: newKey, NewVal: newVal}
}
