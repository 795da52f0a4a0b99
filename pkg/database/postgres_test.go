package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestPQCodeClassification(t *testing.T) {
	dup := fmt.Errorf("insert: %w", &pq.Error{Code: CodeUniqueViolation})
	fk := &pq.Error{Code: CodeForeignKeyViolation}

	assert.True(t, IsUniqueViolation(dup))
	assert.False(t, IsForeignKeyViolation(dup))
	assert.True(t, IsForeignKeyViolation(fk))
	assert.Equal(t, "", PQCode(errors.New("plain")))
}

func TestIsUnavailable(t *testing.T) {
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

	assert.True(t, IsUnavailable(refused))
	assert.True(t, IsUnavailable(fmt.Errorf("query: %w", driver.ErrBadConn)))
	assert.True(t, IsUnavailable(context.DeadlineExceeded))
	assert.True(t, IsUnavailable(&pq.Error{Code: "57P03"}))
	assert.False(t, IsUnavailable(&pq.Error{Code: CodeUniqueViolation}))
	assert.False(t, IsUnavailable(nil))
}
