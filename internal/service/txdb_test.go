package service

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// txStub satisfies just enough of database/sql to let
// store.RunInTransaction begin and commit. Statement execution is never
// reached: transactional tests hand the *sql.Tx to mock stores whose
// WithTx ignores it.
type txStub struct{}

func (txStub) Open(name string) (driver.Conn, error) { return txStubConn{}, nil }

type txStubConn struct{}

func (txStubConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("statements not supported")
}
func (txStubConn) Close() error              { return nil }
func (txStubConn) Begin() (driver.Tx, error) { return txStubTx{}, nil }

type txStubTx struct{}

func (txStubTx) Commit() error   { return nil }
func (txStubTx) Rollback() error { return nil }

var registerTxStub sync.Once

// txDB returns a handle whose transactions begin and commit without a
// database, for exercising service paths that run inside
// store.RunInTransaction.
func txDB(t *testing.T) *sql.DB {
	t.Helper()

	registerTxStub.Do(func() {
		sql.Register("txstub", txStub{})
	})

	db, err := sql.Open("txstub", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}
