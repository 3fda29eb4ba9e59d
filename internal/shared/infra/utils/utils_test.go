package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRetry_StopsOnSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetry_ReturnsLastError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return errors.New("always")
	})

	assert.EqualError(t, err, "always")
	assert.Equal(t, 3, calls)
}

func TestPayloadHash(t *testing.T) {
	assert.Empty(t, PayloadHash(nil))
	assert.Len(t, PayloadHash([]byte(`{"a":1}`)), 64)
	assert.Equal(t, PayloadHash([]byte("x")), PayloadHash([]byte("x")))
	assert.NotEqual(t, PayloadHash([]byte("x")), PayloadHash([]byte("y")))
}

func TestUnmarshalAndHandle(t *testing.T) {
	type body struct {
		ID int `json:"id"`
	}
	var got body
	err := UnmarshalAndHandle(zap.NewNop(), []byte(`{"id":7}`), func(b body) error {
		got = b
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 7, got.ID)

	called := false
	err = UnmarshalAndHandle(zap.NewNop(), []byte(`{bad`), func(body) error {
		called = true
		return nil
	})
	assert.NoError(t, err)
	assert.False(t, called)

	boom := errors.New("boom")
	err = UnmarshalAndHandle(zap.NewNop(), []byte(`{}`), func(body) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestTernary(t *testing.T) {
	assert.Equal(t, 1, Ternary(true, 1, 2))
	assert.Equal(t, "b", Ternary(false, "a", "b"))
}
