package paginate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sizedPages(sizes ...int) ListFunc[int] {
	return func(_ context.Context, page int) (Page[int], error) {
		idx := page - 1
		items := make([]int, sizes[idx])
		for i := range items {
			items[i] = page*100 + i
		}
		return Page[int]{Items: items, Done: idx == len(sizes)-1}, nil
	}
}

func TestFetchAllConcatenatesPages(t *testing.T) {
	items, err := FetchAll(context.Background(), sizedPages(10, 10, 4), Options{})
	require.NoError(t, err)
	assert.Len(t, items, 24)
	assert.Equal(t, 100, items[0])
	assert.Equal(t, 303, items[23])
}

func TestFetchAllReturnsPartialResultsOnFailure(t *testing.T) {
	boom := errors.New("vendor 500")
	list := func(_ context.Context, page int) (Page[int], error) {
		if page == 2 {
			return Page[int]{}, boom
		}
		return Page[int]{Items: make([]int, 10)}, nil
	}

	items, err := FetchAll(context.Background(), list, Options{})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, items, 10)
}

func TestFetchAllFollowsExplicitNextPage(t *testing.T) {
	var seen []int
	list := func(_ context.Context, page int) (Page[string], error) {
		seen = append(seen, page)
		switch page {
		case 1:
			return Page[string]{Items: []string{"a"}, Next: 5}, nil
		case 5:
			return Page[string]{Items: []string{"b"}, Next: 9}, nil
		default:
			return Page[string]{Items: []string{"c"}, Done: true}, nil
		}
	}

	items, err := FetchAll(context.Background(), list, Options{FirstPage: -1})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, items)
	assert.Equal(t, []int{1, 5, 9}, seen)
}

func TestFetchAllStopsRunawayListings(t *testing.T) {
	calls := 0
	list := func(_ context.Context, _ int) (Page[int], error) {
		calls++
		return Page[int]{Items: []int{calls}}, nil
	}

	items, err := FetchAll(context.Background(), list, Options{MaxPages: 5})
	assert.ErrorIs(t, err, ErrRunaway)
	assert.Len(t, items, 5)
	assert.Equal(t, 5, calls)
}

func TestFetchAllObservesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	list := func(_ context.Context, page int) (Page[int], error) {
		if page == 2 {
			cancel()
		}
		return Page[int]{Items: []int{page}}, nil
	}

	items, err := FetchAll(ctx, list, Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int{1, 2}, items)
}
