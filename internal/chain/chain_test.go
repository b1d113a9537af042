package chain

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetclaim/internal/fault"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func step(name string, v int, ok bool, err error, calls *[]string) Step[int] {
	return Step[int]{Name: name, Run: func(context.Context) (int, bool, error) {
		*calls = append(*calls, name)
		return v, ok, err
	}}
}

func TestFirst_StopsAtFirstSuccess(t *testing.T) {
	var calls []string
	v, out, err := First(context.Background(), quietLogger(), "op",
		step("a", 0, false, nil, &calls),
		step("b", 2, true, nil, &calls),
		step("c", 3, true, nil, &calls),
	)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, "b", out.Step)
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestFirst_SkipsFailedSteps(t *testing.T) {
	var calls []string
	v, out, err := First(context.Background(), quietLogger(), "op",
		step("primary", 0, false, errors.New("boom"), &calls),
		step("secondary", 7, true, nil, &calls),
	)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, []string{"primary"}, out.Failed)
}

func TestFirst_AllFailedJoinsErrors(t *testing.T) {
	var calls []string
	_, out, err := First(context.Background(), quietLogger(), "list",
		step("primary", 0, false, fault.New(fault.KindServer, "primary", "down"), &calls),
		step("secondary", 0, false, errors.New("also down"), &calls),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary")
	assert.Contains(t, err.Error(), "also down")
	assert.Equal(t, fault.KindServer, fault.KindOf(err))
	assert.Len(t, out.Failed, 2)
}

func TestFirst_Exhausted(t *testing.T) {
	var calls []string
	_, _, err := First(context.Background(), nil, "op",
		step("a", 0, false, nil, &calls),
	)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestFirst_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls []string
	_, _, err := First(ctx, nil, "op", step("a", 1, true, nil, &calls))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, calls)
}
