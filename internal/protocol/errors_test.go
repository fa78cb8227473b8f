package protocol

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"voxelminer.ai/internal/agent"
)

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrWorldBusy,
		ErrWorldDenied,
		ErrBadRequest,
		ErrAborted,
		ErrTimeout,
		ErrNoResource,
		ErrInvalidTarget,
		ErrBlocked,
		ErrInternal,
	}
	for _, c := range cases {
		require.True(t, IsKnownCode(c), c)
	}
	require.False(t, IsKnownCode("E_NOT_DEFINED"))
}

func TestCodesRoundTripThroughSentinels(t *testing.T) {
	for _, sentinel := range []error{agent.ErrAborted, agent.ErrTimeout, agent.ErrNoResource, agent.ErrInvalidTarget, agent.ErrBlocked} {
		code := CodeFor(fmt.Errorf("dig (1,2,3): %w", sentinel))
		require.True(t, IsKnownCode(code))
		err := ErrorFor(code, "remote")
		require.ErrorIs(t, err, sentinel)
		require.Equal(t, code, CodeFor(err))
	}
}

func TestErrorForEdgeCases(t *testing.T) {
	require.NoError(t, ErrorFor("", "ignored"))
	require.Equal(t, ErrInternal, CodeFor(errors.New("boom")))
	require.Empty(t, CodeFor(nil))

	err := ErrorFor(ErrWorldBusy, "")
	require.EqualError(t, err, ErrWorldBusy)
	require.Nil(t, errors.Unwrap(err))
}
