package recovery

import (
	"sort"

	"github.com/tsurudb/TsuruDB/types"
)

// CheckPoint is the recovery starting point: the LSN the redo pass starts
// from, the transactions that were active at that moment with their last
// LSNs, and the key-value data as persisted then.
type CheckPoint struct {
	CheckpointLsn types.LSN
	ActiveTxns    map[types.TxnID]types.LSN
	PersistedData map[string]int32
}

func NewCheckPoint() *CheckPoint {
	return &CheckPoint{CheckpointLsn: types.InvalidLSN, ActiveTxns: make(map[types.TxnID]types.LSN), PersistedData: make(map[string]int32)}
}

// Capture deep-copies the running state into the checkpoint
func (cp *CheckPoint) Capture(lsn types.LSN, activeTxns map[types.TxnID]types.LSN, data map[string]int32) {
	cp.CheckpointLsn = lsn
	cp.ActiveTxns = make(map[types.TxnID]types.LSN, len(activeTxns))
	for txnId, lastLsn := range activeTxns {
		cp.ActiveTxns[txnId] = lastLsn
	}
	cp.PersistedData = make(map[string]int32, len(data))
	for k, v := range data {
		cp.PersistedData[k] = v
	}
}

// RecoveryManager replays a key-value log trace: a redo pass forward from
// the checkpoint, then an undo pass over the transactions that never
// finished.
type RecoveryManager struct {
	logs       map[types.LSN]*LogRecord
	activeTxns map[types.TxnID]types.LSN
	data       map[string]int32
}

func NewRecoveryManager() *RecoveryManager {
	return &RecoveryManager{logs: make(map[types.LSN]*LogRecord), activeTxns: make(map[types.TxnID]types.LSN), data: make(map[string]int32)}
}

// AppendLogRecord adds a record to the trace
func (r *RecoveryManager) AppendLogRecord(rec *LogRecord) {
	r.logs[rec.Lsn] = rec
}

// Get reads a key of the recovered database
func (r *RecoveryManager) Get(key string) (int32, bool) {
	val, ok := r.data[key]
	return val, ok
}

// ActiveTxns exposes the transactions still considered active
func (r *RecoveryManager) ActiveTxns() map[types.TxnID]types.LSN {
	return r.activeTxns
}

// RedoPhase replays the trace forward from the checkpoint
func (r *RecoveryManager) RedoPhase(checkpoint *CheckPoint) {
	r.activeTxns = make(map[types.TxnID]types.LSN, len(checkpoint.ActiveTxns))
	for txnId, lastLsn := range checkpoint.ActiveTxns {
		r.activeTxns[txnId] = lastLsn
	}
	r.data = make(map[string]int32, len(checkpoint.PersistedData))
	for k, v := range checkpoint.PersistedData {
		r.data[k] = v
	}

	lsns := make([]types.LSN, 0, len(r.logs))
	for lsn := range r.logs {
		if lsn >= checkpoint.CheckpointLsn {
			lsns = append(lsns, lsn)
		}
	}
	sort.Slice(lsns, func(i, j int) bool { return lsns[i] < lsns[j] })

	for _, lsn := range lsns {
		rec := r.logs[lsn]
		switch rec.LogRecordType {
		case BEGIN:
			r.activeTxns[rec.TxnId] = rec.Lsn
		case COMMIT:
			delete(r.activeTxns, rec.TxnId)
		case ABORT:
			// undo the transaction's effects right away, then forget it
			r.rollbackChain(rec.PrevLsn)
			delete(r.activeTxns, rec.TxnId)
		case INSERT:
			r.data[rec.InsKey] = rec.InsVal
			r.activeTxns[rec.TxnId] = rec.Lsn
		case DELETE:
			delete(r.data, rec.DelKey)
			r.activeTxns[rec.TxnId] = rec.Lsn
		case UPDATE:
			delete(r.data, rec.OldKey)
			r.data[rec.NewKey] = rec.NewVal
			r.activeTxns[rec.TxnId] = rec.Lsn
		}
	}
}

// UndoPhase rolls back every transaction that never committed or aborted
func (r *RecoveryManager) UndoPhase() {
	for _, lastLsn := range r.activeTxns {
		r.rollbackChain(lastLsn)
	}
	r.activeTxns = make(map[types.TxnID]types.LSN)
}

// rollbackChain walks a prev-LSN chain undoing each operation. The walk is
// tolerant of missing LSNs: a broken chain simply stops.
func (r *RecoveryManager) rollbackChain(lsn types.LSN) {
	for lsn != types.InvalidLSN {
		rec, ok := r.logs[lsn]
		if !ok {
			break
		}
		switch rec.LogRecordType {
		case BEGIN:
			return
		case INSERT:
			delete(r.data, rec.InsKey)
		case DELETE:
			r.data[rec.DelKey] = rec.DelVal
		case UPDATE:
			delete(r.data, rec.NewKey)
			r.data[rec.OldKey] = rec.OldVal
		}
		lsn = rec.PrevLsn
	}
}
