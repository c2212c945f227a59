package nnrt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExecutionPreferenceValid(t *testing.T) {
	require.True(t, PreferLowPower.Valid())
	require.True(t, PreferFastSingleAnswer.Valid())
	require.True(t, PreferSustainedSpeed.Valid())
	require.False(t, ExecutionPreference(-1).Valid())
	require.False(t, ExecutionPreference(3).Valid())
}

func TestTimingDuration(t *testing.T) {
	timing := Timing{OnDevice: 5, InDriver: 9}
	require.Equal(t, uint64(5), timing.Duration(DurationOnHardware))
	require.Equal(t, uint64(9), timing.Duration(DurationInDriver))
	require.Equal(t, DurationNone, NoTiming.Duration(DurationOnHardware))
	require.Equal(t, DurationNone, NoTiming.Duration(DurationInDriver))
}

func TestNewCacheToken(t *testing.T) {
	a := NewCacheToken()
	b := NewCacheToken()
	require.NotEqual(t, a, b)
	require.Len(t, a[:], ByteSizeOfCacheToken)
}

func TestResultCodeString(t *testing.T) {
	require.Equal(t, "NO_ERROR", NoError.String())
	require.Equal(t, "OUTPUT_INSUFFICIENT_SIZE", OutputInsufficientSize.String())
	require.Equal(t, "UNKNOWN_RESULT_CODE", ResultCode(99).String())
}
