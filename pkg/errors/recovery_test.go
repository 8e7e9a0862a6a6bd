package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeExecute(t *testing.T) {
	t.Run("no panic", func(t *testing.T) {
		err := SafeExecute("noop", func() error { return nil })
		assert.NoError(t, err)
	})

	t.Run("returned error passes through", func(t *testing.T) {
		want := fmt.Errorf("fit failed")
		err := SafeExecute("fit", func() error { return want })
		assert.Equal(t, want, err)
	})

	t.Run("panic becomes PanicError", func(t *testing.T) {
		err := SafeExecute("knn.PredictProb", func() error {
			var s []float64
			_ = s[3]
			return nil
		})
		require.Error(t, err)

		var panicErr *PanicError
		require.True(t, As(err, &panicErr))
		assert.Equal(t, "knn.PredictProb", panicErr.Operation)
		assert.NotEmpty(t, panicErr.StackTrace)
	})
}

func TestRecoverWrapsExistingError(t *testing.T) {
	fn := func() (err error) {
		defer Recover(&err, "forest.Fit")
		err = fmt.Errorf("bootstrap failed")
		panic("tree index out of range")
	}

	err := fn()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in forest.Fit: tree index out of range")
	assert.Contains(t, err.Error(), "bootstrap failed")
}
