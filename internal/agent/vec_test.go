package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestVecRotation(t *testing.T) {
	north := Vec3{Z: -1}
	require.Equal(t, Vec3{X: 1}, north.RotateRight())
	require.Equal(t, Vec3{X: -1}, north.RotateLeft())
	for _, c := range Cardinals {
		require.Equal(t, c, c.RotateRight().RotateLeft())
	}
}

func TestVecHorizontal(t *testing.T) {
	require.Equal(t, Vec3{X: 1}, Vec3{X: 3, Z: 1}.Horizontal())
	require.Equal(t, Vec3{Z: -1}, Vec3{X: 1, Z: -5}.Horizontal())
	require.Equal(t, Vec3{Z: -1}, Vec3{}.Horizontal())
}

func TestVecDistance(t *testing.T) {
	a := V(0, 0, 0)
	b := V(3, 4, 0)
	require.InDelta(t, 5.0, a.Distance(b), 1e-9)
	require.Equal(t, 7, a.Manhattan(b))
}

func TestSystemClockSleepCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := SystemClock{}.Sleep(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
}
