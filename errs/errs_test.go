package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drivevox/validator/errs"
)

func TestWrapPreservesChain(t *testing.T) {
	cause := errors.New("boom")
	err := errs.Wrap(errs.Downstream, "save failed", cause)

	require.True(t, errs.Is(err, errs.Downstream))
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "boom")
}

func TestWrapReusesCauseMessageWhenEmpty(t *testing.T) {
	cause := errors.New("socket closed")
	err := errs.Wrap(errs.Resource, "", cause)

	require.Equal(t, "socket closed", err.Message)
}

func TestKindOfUnwrapsThroughFmtErrorf(t *testing.T) {
	base := errs.New(errs.NotFound, "sample 1")
	wrapped := fmt.Errorf("lookup: %w", base)

	kind, ok := errs.KindOf(wrapped)
	require.True(t, ok)
	require.Equal(t, errs.NotFound, kind)
}

func TestIsFalseForPlainErrors(t *testing.T) {
	require.False(t, errs.Is(errors.New("plain"), errs.Timeout))
}
