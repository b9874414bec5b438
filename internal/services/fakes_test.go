package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/zqadmin/ojadmin/internal/store"
	"github.com/zqadmin/ojadmin/types"
)

type fakeProblemRepo struct {
	mu         sync.Mutex
	problems   map[int]types.ProblemDetail
	setters    map[int]int
	lastFilter store.ProblemFilter
	tags       []types.Tag
	createErr  error
	nextID     int
}

func newFakeProblemRepo() *fakeProblemRepo {
	return &fakeProblemRepo{problems: map[int]types.ProblemDetail{}, setters: map[int]int{}, nextID: 1}
}

func (r *fakeProblemRepo) List(_ context.Context, filter store.ProblemFilter) ([]types.ProblemListItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFilter = filter
	items := make([]types.ProblemListItem, 0, len(r.problems))
	for _, p := range r.problems {
		items = append(items, p.ProblemListItem)
	}
	return items, nil
}

func (r *fakeProblemRepo) Get(_ context.Context, id int, filter store.ProblemFilter) (types.ProblemDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFilter = filter
	p, ok := r.problems[id]
	if !ok || !filter.Allows(p.IsPublic, r.setters[id]) {
		return types.ProblemDetail{}, store.ErrNotFound
	}
	return p, nil
}

func (r *fakeProblemRepo) Exists(ctx context.Context, id int, filter store.ProblemFilter) error {
	_, err := r.Get(ctx, id, filter)
	return err
}

func (r *fakeProblemRepo) Create(_ context.Context, input types.ProblemCreateInput, setterID int) (types.ProblemDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return types.ProblemDetail{}, r.createErr
	}
	p := types.ProblemDetail{
		ProblemListItem: types.ProblemListItem{
			ID:         r.nextID,
			Title:      input.Title,
			Difficulty: input.Difficulty,
			IsPublic:   input.IsPublic,
			Tags:       []types.Tag{},
			CreatedAt:  time.Now(),
		},
		Description: input.Description,
		Examples:    input.Examples,
	}
	r.problems[p.ID] = p
	r.setters[p.ID] = setterID
	r.nextID++
	return p, nil
}

func (r *fakeProblemRepo) ListTags(context.Context) ([]types.Tag, error) {
	return r.tags, nil
}

type publishedEvent struct {
	channel string
	event   any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *fakePublisher) PublishJSON(_ context.Context, channel string, event any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.events = append(p.events, publishedEvent{channel: channel, event: event})
	return "id", nil
}

type fakeObjectStore struct {
	objects map[string][]byte
	putErr  error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}}
}

func (s *fakeObjectStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if s.putErr != nil {
		return s.putErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	s.objects[key] = buf.Bytes()
	return nil
}

func (s *fakeObjectStore) Delete(_ context.Context, key string) error {
	delete(s.objects, key)
	return nil
}

func (s *fakeObjectStore) URL(key string) string {
	return "http://files.test/" + key
}

type fakeTestCaseRepo struct {
	created []types.TestCase
	err     error
}

func (r *fakeTestCaseRepo) Create(_ context.Context, tc types.TestCase) (types.TestCase, error) {
	if r.err != nil {
		return types.TestCase{}, r.err
	}
	tc.ID = len(r.created) + 1
	tc.CreatedAt = time.Now()
	r.created = append(r.created, tc)
	return tc, nil
}

type fakeSolutionRepo struct {
	created []types.Solution
}

func (r *fakeSolutionRepo) Create(_ context.Context, s types.Solution) (types.Solution, error) {
	s.ID = len(r.created) + 1
	s.CreatedAt = time.Now()
	r.created = append(r.created, s)
	return s, nil
}

type fakeUserRepo struct {
	users map[string]types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]types.User{}}
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (types.User, error) {
	u, ok := r.users[username]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	user.ID = len(r.users) + 1
	r.users[user.Username] = user
	return user, nil
}

func (r *fakeUserRepo) SetRole(_ context.Context, username, role string) error {
	u, ok := r.users[username]
	if !ok {
		return store.ErrNotFound
	}
	u.Role = role
	r.users[username] = u
	return nil
}

func (r *fakeUserRepo) SetActive(_ context.Context, username string, active bool) error {
	u, ok := r.users[username]
	if !ok {
		return store.ErrNotFound
	}
	u.IsActive = active
	r.users[username] = u
	return nil
}

var errBoom = errors.New("boom")
