package localengine

import (
	"fmt"
	"runtime/debug"
)

// tx is a storage transaction plus the buffers that must outlive it: Bolt
// requires put values to stay valid until commit.
type tx struct {
	db   *DB
	stx  storageTx
	bufs [][]byte
}

func (db *DB) read(f func(tx *tx) error) error {
	stx, err := db.st.BeginTx(false)
	if err != nil {
		return internalErr(err, "begin read")
	}
	db.ReadCount.Add(1)
	tx := &tx{db: db, stx: stx}
	defer tx.close()
	return safelyCall(f, tx)
}

// write runs f in a writable transaction and commits unless f fails.
// With a journal, the changes are appended to it once the storage commit
// succeeds.
func (db *DB) write(f func(tx *tx) error) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()
	stx, err := db.st.BeginTx(true)
	if err != nil {
		return internalErr(err, "begin write")
	}
	db.WriteCount.Add(1)
	var jtx *journaledTx
	if db.journal != nil {
		jtx = &journaledTx{storageTx: stx}
		stx = jtx
	}
	tx := &tx{db: db, stx: stx}
	defer tx.close()
	if err := safelyCall(f, tx); err != nil {
		return err
	}
	if err := stx.Commit(); err != nil {
		return internalErr(err, "commit")
	}
	if jtx != nil && len(jtx.changes) > 0 {
		return db.appendJournal(jtx.changes)
	}
	return nil
}

func (tx *tx) keepBuf(buf []byte) {
	if tx.bufs == nil {
		tx.bufs = arrayOfBytesPool.Get().([][]byte)
	}
	tx.bufs = append(tx.bufs, buf)
}

func (tx *tx) close() {
	// The only error Rollback returns after Commit is ErrTxClosed, which the
	// storages swallow.
	_ = tx.stx.Rollback()
	if tx.bufs != nil {
		for i, buf := range tx.bufs {
			valueBytesPool.Put(buf[:0])
			tx.bufs[i] = nil
		}
		arrayOfBytesPool.Put(tx.bufs[:0])
		tx.bufs = nil
	}
}

type panicked struct {
	reason any
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}

func safelyCall(fn func(*tx) error, tx *tx) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = internalErr(panicked{p, string(debug.Stack())}, "transaction panicked")
		}
	}()
	return fn(tx)
}
