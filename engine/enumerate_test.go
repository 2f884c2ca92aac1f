package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vasylivanchyk330/AWS-Automation/config"
	"github.com/vasylivanchyk330/AWS-Automation/model"
)

// pagedSource serves a fixed sequence of pages through the cursor protocol.
func pagedSource(pages [][]model.ResourceDescriptor) PageFunc {
	return func(ctx context.Context, cursor string) ([]model.ResourceDescriptor, string, error) {
		idx := 0
		if cursor != "" {
			fmt.Sscanf(cursor, "page-%d", &idx)
		}
		next := ""
		if idx < len(pages)-1 {
			next = fmt.Sprintf("page-%d", idx+1)
		}
		return pages[idx], next, nil
	}
}

func named(names ...string) []model.ResourceDescriptor {
	items := make([]model.ResourceDescriptor, 0, len(names))
	for _, n := range names {
		items = append(items, model.ResourceDescriptor{Key: n, Name: n})
	}
	return items
}

func TestEnumerate_EmptyCriteriaIsRefused(t *testing.T) {
	e := NewEnumerator(&config.Criteria{}, nil)
	_, err := e.Enumerate(context.Background(), pagedSource([][]model.ResourceDescriptor{named("a")}))
	require.ErrorIs(t, err, config.ErrEmptyCriteria)
}

func TestEnumerate_PatternAcrossPages(t *testing.T) {
	pages := [][]model.ResourceDescriptor{
		named("test-a", "prod-a"),
		named("test-b", "prod-b"),
		named("TEST-C"),
	}

	e := NewEnumerator(&config.Criteria{Pattern: "^test-"}, nil)
	got, err := e.Enumerate(context.Background(), pagedSource(pages))
	require.NoError(t, err)

	require.Equal(t, named("test-a", "test-b", "TEST-C"), got)
}

func TestEnumerate_DeduplicatesOverlappingPages(t *testing.T) {
	// Page boundaries moved between calls; "test-b" shows up twice.
	pages := [][]model.ResourceDescriptor{
		named("test-a", "test-b"),
		named("test-b", "test-c"),
	}

	e := NewEnumerator(&config.Criteria{Pattern: "^test-"}, nil)
	got, err := e.Enumerate(context.Background(), pagedSource(pages))
	require.NoError(t, err)
	require.Equal(t, named("test-a", "test-b", "test-c"), got)
}

func TestEnumerate_VersionedIdentities(t *testing.T) {
	pages := [][]model.ResourceDescriptor{
		{
			{Key: "doc", Version: "v1", Name: "doc"},
			{Key: "doc", Version: "v2", Name: "doc"},
			{Key: "doc", Version: "v1", Name: "doc"}, // duplicate identity
		},
	}

	e := NewEnumerator(&config.Criteria{Pattern: "doc"}, nil)
	got, err := e.Enumerate(context.Background(), pagedSource(pages))
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestEnumerate_NamesAndPatternMerge(t *testing.T) {
	pages := [][]model.ResourceDescriptor{
		named("keeper", "test-a", "unrelated"),
	}

	// "keeper" is selected by name even though it misses the pattern.
	e := NewEnumerator(&config.Criteria{Pattern: "^test-", Names: []string{"keeper"}}, nil)
	got, err := e.Enumerate(context.Background(), pagedSource(pages))
	require.NoError(t, err)
	require.Equal(t, named("keeper", "test-a"), got)
}

func TestEnumerate_NamesOnly(t *testing.T) {
	pages := [][]model.ResourceDescriptor{
		named("one", "two", "three"),
	}

	e := NewEnumerator(&config.Criteria{Names: []string{"two"}}, nil)
	got, err := e.Enumerate(context.Background(), pagedSource(pages))
	require.NoError(t, err)
	require.Equal(t, named("two"), got)
}

func TestEnumerate_ExcludeWinsOverEverything(t *testing.T) {
	pages := [][]model.ResourceDescriptor{
		named("test-a", "test-b"),
	}

	e := NewEnumerator(&config.Criteria{
		Pattern: "^test-",
		Names:   []string{"test-b"},
		Exclude: []string{"test-b"},
	}, nil)
	got, err := e.Enumerate(context.Background(), pagedSource(pages))
	require.NoError(t, err)
	require.Equal(t, named("test-a"), got)
}

func TestEnumerate_WindowBounds(t *testing.T) {
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	pages := [][]model.ResourceDescriptor{{
		{Key: "at-cutoff", Name: "at-cutoff", Created: cutoff},
		{Key: "inside", Name: "inside", Created: cutoff.Add(time.Hour)},
		{Key: "at-until", Name: "at-until", Created: until},
		{Key: "after", Name: "after", Created: until.Add(time.Second)},
	}}

	e := NewEnumerator(&config.Criteria{CutoffDate: &cutoff, UntilDate: &until}, nil)
	got, err := e.Enumerate(context.Background(), pagedSource(pages))
	require.NoError(t, err)

	names := make([]string, 0, len(got))
	for _, d := range got {
		names = append(names, d.Name)
	}
	// The lower bound is exclusive, the upper bound inclusive.
	require.Equal(t, []string{"inside", "at-until"}, names)
}

func TestEnumerate_MissingTimestampAbortsWindowedRun(t *testing.T) {
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	pages := [][]model.ResourceDescriptor{{
		{Key: "ok", Name: "ok", Created: cutoff.Add(time.Hour)},
		{Key: "broken", Name: "broken"}, // no creation timestamp
	}}

	e := NewEnumerator(&config.Criteria{CutoffDate: &cutoff}, nil)
	_, err := e.Enumerate(context.Background(), pagedSource(pages))
	require.Error(t, err)

	var enumErr *EnumerationError
	require.ErrorAs(t, err, &enumErr)
	require.Contains(t, err.Error(), "broken")
}

func TestEnumerate_PageErrorCarriesCursor(t *testing.T) {
	boom := errors.New("listing failed")
	calls := 0
	page := func(ctx context.Context, cursor string) ([]model.ResourceDescriptor, string, error) {
		calls++
		if calls == 1 {
			return named("test-a"), "cursor-1", nil
		}
		return nil, "", boom
	}

	e := NewEnumerator(&config.Criteria{Pattern: "^test-"}, nil)
	_, err := e.Enumerate(context.Background(), page)

	var enumErr *EnumerationError
	require.ErrorAs(t, err, &enumErr)
	require.Equal(t, "cursor-1", enumErr.Cursor)
	require.ErrorIs(t, err, boom)
}

func TestEnumerateStream_BatchesAcrossPages(t *testing.T) {
	var pages [][]model.ResourceDescriptor
	for p := 0; p < 3; p++ {
		var page []model.ResourceDescriptor
		count := 1000
		if p == 2 {
			count = 500
		}
		for i := 0; i < count; i++ {
			name := fmt.Sprintf("test-%d-%04d", p, i)
			page = append(page, model.ResourceDescriptor{Key: name, Name: name})
		}
		pages = append(pages, page)
	}

	e := NewEnumerator(&config.Criteria{Pattern: "^test-"}, nil)
	batches, errCh := e.EnumerateStream(context.Background(), pagedSource(pages), 1000)

	var sizes []int
	total := 0
	for b := range batches {
		sizes = append(sizes, len(b.Items))
		total += len(b.Items)
	}
	require.NoError(t, <-errCh)

	require.Equal(t, 2500, total)
	require.Equal(t, []int{1000, 1000, 500}, sizes)
}

func TestEnumerateStream_ErrorEndsStream(t *testing.T) {
	boom := errors.New("listing failed")
	calls := 0
	page := func(ctx context.Context, cursor string) ([]model.ResourceDescriptor, string, error) {
		calls++
		if calls == 1 {
			return named("test-a"), "cursor-1", nil
		}
		return nil, "", boom
	}

	e := NewEnumerator(&config.Criteria{Pattern: "^test-"}, nil)
	batches, errCh := e.EnumerateStream(context.Background(), page, 10)

	for range batches {
	}
	require.ErrorIs(t, <-errCh, boom)
}
