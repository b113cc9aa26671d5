package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetWithExpiration(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := Wrap(db)
	ctx := context.Background()

	mock.ExpectSet("k", "v", time.Minute).SetVal("OK")

	require.NoError(t, client.SetWithExpiration(ctx, "k", "v", time.Minute))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetString(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := Wrap(db)
	ctx := context.Background()

	mock.ExpectGet("k").SetVal("v")

	got, err := client.GetString(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestGetBytes_Missing(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := Wrap(db)

	mock.ExpectGet("missing").RedisNil()

	_, err := client.GetBytes(context.Background(), "missing")
	assert.True(t, errors.Is(err, Nil))
}

func TestDelete(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := Wrap(db)

	mock.ExpectDel("a", "b").SetVal(2)

	require.NoError(t, client.Delete(context.Background(), "a", "b"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExists(t *testing.T) {
	tests := []struct {
		name     string
		val      int64
		expected bool
	}{
		{"present", 1, true},
		{"absent", 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := redismock.NewClientMock()
			client := Wrap(db)
			mock.ExpectExists("k").SetVal(tc.val)

			ok, err := client.Exists(context.Background(), "k")
			require.NoError(t, err)
			assert.Equal(t, tc.expected, ok)
		})
	}
}

func TestExists_Error(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := Wrap(db)
	mock.ExpectExists("k").SetErr(errors.New("connection refused"))

	ok, err := client.Exists(context.Background(), "k")
	assert.Error(t, err)
	assert.False(t, ok)
}
