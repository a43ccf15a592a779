package inference

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestONNXModel_PredictChecksInput(t *testing.T) {
	m := &ONNXModel{classes: 3}

	_, err := m.Predict(context.Background(), make([]float32, 10), 1)
	require.ErrorContains(t, err, "want 65536")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Predict(ctx, make([]float32, Resolution*Resolution), 1)
	require.ErrorIs(t, err, context.Canceled)

	require.NoError(t, m.Close())
}
