package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/windlant/mcp-bridge/internal/session"
)

func TestReleaser_ReverseOrder(t *testing.T) {
	var order []string
	rel := &session.Releaser{}
	for _, name := range []string{"model", "transport", "session"} {
		rel.Push(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}
	require.Equal(t, 3, rel.Len())
	require.NoError(t, rel.Release(context.Background()))
	require.Equal(t, []string{"session", "transport", "model"}, order)

	require.NoError(t, rel.Release(context.Background()))
	require.Len(t, order, 3, "second release is a no-op")
}

func TestReleaser_JoinsErrorsAndKeepsGoing(t *testing.T) {
	errA := errors.New("a failed")
	errC := errors.New("c failed")
	var ran []string
	rel := &session.Releaser{}
	rel.Push("a", func(context.Context) error { ran = append(ran, "a"); return errA })
	rel.Push("b", func(context.Context) error { ran = append(ran, "b"); return nil })
	rel.Push("c", func(context.Context) error { ran = append(ran, "c"); return errC })

	err := rel.Release(context.Background())
	require.ErrorIs(t, err, session.ErrCleanup)
	require.ErrorIs(t, err, errA)
	require.ErrorIs(t, err, errC)
	require.ErrorContains(t, err, "release a")
	require.Equal(t, []string{"c", "b", "a"}, ran)
}
