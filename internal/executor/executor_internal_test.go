package executor

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockExecer records statements and fails on the configured one.
type mockExecer struct {
	executed []string
	failOn   string
	err      error
}

func (m *mockExecer) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	if m.failOn != "" && query == m.failOn {
		return nil, m.err
	}

	m.executed = append(m.executed, query)

	return driver.RowsAffected(0), nil
}

func TestExecStatements_runsInOrder(t *testing.T) {
	t.Parallel()

	ex := &mockExecer{}

	err := execStatements(context.Background(), ex, []string{"CREATE TABLE a (id INT)", "CREATE TABLE b (id INT)"})

	require.NoError(t, err)
	assert.Equal(t, []string{"CREATE TABLE a (id INT)", "CREATE TABLE b (id INT)"}, ex.executed)
}

func TestExecStatements_stopsAtFailure_reportsIndex(t *testing.T) {
	t.Parallel()

	dbErr := errors.New("relation does not exist")
	ex := &mockExecer{failOn: "INSERT INTO missing VALUES (1)", err: dbErr}

	err := execStatements(context.Background(), ex, []string{
		"CREATE TABLE a (id INT)",
		"INSERT INTO missing VALUES (1)",
		"CREATE TABLE c (id INT)",
	})

	require.ErrorIs(t, err, ErrExecutionFailed)
	require.ErrorIs(t, err, dbErr)
	assert.Contains(t, err.Error(), "statement 2")
	assert.Equal(t, []string{"CREATE TABLE a (id INT)"}, ex.executed)
}

func TestApplyTimeouts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		lockTimeout      time.Duration
		statementTimeout time.Duration
		want             []string
	}{
		{name: "disabled by default"},
		{
			name:        "lock timeout only",
			lockTimeout: 5 * time.Second,
			want:        []string{"SET LOCAL lock_timeout = '5000ms'"},
		},
		{
			name:             "both timeouts",
			lockTimeout:      2 * time.Second,
			statementTimeout: time.Minute,
			want: []string{
				"SET LOCAL lock_timeout = '2000ms'",
				"SET LOCAL statement_timeout = '60000ms'",
			},
		},
		{
			name:             "sub-millisecond timeouts round up",
			lockTimeout:      500 * time.Microsecond,
			statementTimeout: 1500 * time.Microsecond,
			want: []string{
				"SET LOCAL lock_timeout = '1ms'",
				"SET LOCAL statement_timeout = '2ms'",
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ex := &mockExecer{}
			e := &Executor{lockTimeout: tt.lockTimeout, statementTimeout: tt.statementTimeout}

			require.NoError(t, e.applyTimeouts(context.Background(), ex))
			assert.Equal(t, tt.want, ex.executed)
		})
	}
}

func TestApplyTimeouts_error_isWrapped(t *testing.T) {
	t.Parallel()

	ex := &mockExecer{failOn: "SET LOCAL lock_timeout = '1000ms'", err: errors.New("boom")}
	e := &Executor{lockTimeout: time.Second}

	err := e.applyTimeouts(context.Background(), ex)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "setting lock_timeout")
}

func TestCeilMillis(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(0), ceilMillis(0))
	assert.Equal(t, int64(0), ceilMillis(-time.Second))
	assert.Equal(t, int64(1), ceilMillis(time.Nanosecond))
	assert.Equal(t, int64(1), ceilMillis(time.Millisecond))
	assert.Equal(t, int64(1001), ceilMillis(time.Second+time.Microsecond))
}
