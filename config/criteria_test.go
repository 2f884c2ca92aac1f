package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	got, err := ParseTime("2024-03-01T12:30:00Z")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC), got)
}

func TestParseTime_RejectsOtherFormats(t *testing.T) {
	for _, raw := range []string{
		"2024-03-01",
		"2024-03-01 12:30:00",
		"01/03/2024T12:30:00Z",
		"not-a-date",
	} {
		_, err := ParseTime(raw)
		require.Error(t, err, "input %q", raw)
	}
}

func TestCriteriaValidate_EmptyIsAnError(t *testing.T) {
	c := &Criteria{}
	require.ErrorIs(t, c.Validate(), ErrEmptyCriteria)
}

func TestCriteriaValidate_ExcludeAloneIsStillEmpty(t *testing.T) {
	c := &Criteria{Exclude: []string{"keep-me"}}
	require.ErrorIs(t, c.Validate(), ErrEmptyCriteria)
}

func TestCriteriaValidate_CutoffMustPrecedeUntil(t *testing.T) {
	cutoff := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	c := &Criteria{CutoffDate: &cutoff, UntilDate: &until}
	require.Error(t, c.Validate())
}

func TestCriteriaValidate_BadPattern(t *testing.T) {
	c := &Criteria{Pattern: "(["}
	require.Error(t, c.Validate())
}

func TestCriteria_WindowBounds(t *testing.T) {
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	c := &Criteria{CutoffDate: &cutoff, UntilDate: &until}
	require.NoError(t, c.Validate())

	require.False(t, c.InWindow(cutoff), "lower bound is exclusive")
	require.True(t, c.InWindow(cutoff.Add(time.Nanosecond)))
	require.True(t, c.InWindow(until), "upper bound is inclusive")
	require.False(t, c.InWindow(until.Add(time.Nanosecond)))
}

func TestCriteria_OpenEndedWindow(t *testing.T) {
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &Criteria{CutoffDate: &cutoff}
	require.NoError(t, c.Validate())

	require.True(t, c.InWindow(cutoff.AddDate(10, 0, 0)))
	require.False(t, c.InWindow(cutoff.AddDate(-1, 0, 0)))
}

func TestCriteria_PatternIsCaseInsensitive(t *testing.T) {
	c := &Criteria{Pattern: "^test-"}
	require.NoError(t, c.Validate())

	require.True(t, c.MatchesPattern("test-bucket"))
	require.True(t, c.MatchesPattern("TEST-BUCKET"))
	require.True(t, c.MatchesPattern("Test-Mixed"))
	require.False(t, c.MatchesPattern("prod-bucket"))
}

func TestCriteria_Excluded(t *testing.T) {
	c := &Criteria{Pattern: ".*", Exclude: []string{"keep-me"}}
	require.NoError(t, c.Validate())

	require.True(t, c.Excluded("keep-me"))
	require.False(t, c.Excluded("delete-me"))
}
