package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	deadlock := &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}
	lockWait := &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}

	assert.ErrorIs(t, classify(deadlock), ErrTxConflict)
	assert.ErrorIs(t, classify(fmt.Errorf("update: %w", lockWait)), ErrTxConflict)
	assert.ErrorIs(t, classify(deadlock), deadlock, "driver error stays reachable")

	assert.Same(t, dup, classify(dup))
	assert.NoError(t, classify(nil))

	plain := errors.New("boom")
	assert.Equal(t, plain, classify(plain))
	assert.Equal(t, ErrSlotNotFound, classify(ErrSlotNotFound))
}

func TestIsDuplicate(t *testing.T) {
	assert.True(t, isDuplicate(&mysql.MySQLError{Number: 1062}))
	assert.True(t, isDuplicate(fmt.Errorf("confirm: %w", &mysql.MySQLError{Number: 1062})))
	assert.False(t, isDuplicate(&mysql.MySQLError{Number: 1213}))
	assert.False(t, isDuplicate(errors.New("1062")))
}
