// Package repository is the MySQL implementation of ledger.Store.  Each
// table gets its own repo type; Store embeds them all so the full method
// set is promoted onto one value, either bound to the pool or to a
// running transaction.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/fleet-ledger/internal/ledger"
)

// MySQL server error numbers translated into ledger sentinels.
const (
	errDupEntry        = 1062 // ER_DUP_ENTRY
	errRowIsReferenced = 1451 // ER_ROW_IS_REFERENCED_2
	errNoReferencedRow = 1452 // ER_NO_REFERENCED_ROW_2
)

// translate maps driver errors onto ledger.ErrNotFound, ErrDuplicate and
// ErrInUse.  Anything else is returned unchanged.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case errDupEntry:
			return fmt.Errorf("%s: %w", me.Message, ledger.ErrDuplicate)
		case errRowIsReferenced:
			return fmt.Errorf("%s: %w", me.Message, ledger.ErrInUse)
		case errNoReferencedRow:
			return fmt.Errorf("%s: %w", me.Message, ledger.ErrNotFound)
		}
	}
	return err
}

// affected turns a zero-row UPDATE or DELETE into ledger.ErrNotFound.  The
// DSN sets clientFoundRows so an UPDATE that matches but changes nothing
// still counts.
func affected(res sql.Result, err error) error {
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}
