package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zqadmin/ojadmin/types"
)

func TestFutureConcurrentCalls(t *testing.T) {
	api, _ := newTestAPI(t, map[string]any{
		"GET /api/problem/":         []types.ProblemListItem{{ID: 1}, {ID: 2}},
		"GET /api/problem/tags/all": []types.Tag{{ID: 1, Name: "dp"}},
	})
	ctx := context.Background()

	list := Go(ctx, api.GetProblemList)
	tags := Go(ctx, api.GetTags)

	gotTags, err := tags.Await(ctx)
	if err != nil {
		t.Fatalf("await tags: %v", err)
	}
	gotList, err := list.Await(ctx)
	if err != nil {
		t.Fatalf("await list: %v", err)
	}
	if len(gotList) != 2 || len(gotTags) != 1 {
		t.Fatalf("unexpected results: %v %v", gotList, gotTags)
	}
}

func TestFutureCarriesError(t *testing.T) {
	api, _ := newTestAPI(t, map[string]any{})
	ctx := context.Background()

	f := Go(ctx, func(ctx context.Context) (types.ProblemDetail, error) {
		return api.GetProblemDetail(ctx, 1)
	})
	<-f.Done()
	if _, err := f.Await(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFutureAwaitContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	f := Go(context.Background(), func(context.Context) (int, error) {
		<-release
		return 1, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := f.Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
