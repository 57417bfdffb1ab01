package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grant-insight/internal/domain/entity"
)

// fakeGrantRepo implements repository.GrantRepository for testing.
type fakeGrantRepo struct {
	grants    []*entity.Grant
	err       error
	lastLimit int
	lastAsOf  time.Time
}

func (r *fakeGrantRepo) Get(_ context.Context, id int64) (*entity.Grant, error) {
	for _, g := range r.grants {
		if g.ID == id {
			return g, nil
		}
	}
	return nil, nil
}

func (r *fakeGrantRepo) ListOpen(_ context.Context, asOf time.Time, limit int) ([]*entity.Grant, error) {
	r.lastAsOf, r.lastLimit = asOf, limit
	if r.err != nil {
		return nil, r.err
	}
	return r.grants, nil
}

func newTestService(t *testing.T, p Provider, repo *fakeGrantRepo) *Service {
	t.Helper()
	exec := newTestExecutor(t, p, testBreakerConfig(t))
	return NewService(exec, repo, ServiceConfig{Now: fixedNow, CandidateLimit: 10})
}

func TestService_AnalyzeDocument(t *testing.T) {
	p := &fakeProvider{fn: respond(`{"summary":"Solid plan","topics":["health"],"score":0.7,"highlights":["budget"]}`)}
	svc := newTestService(t, p, &fakeGrantRepo{})
	doc := &entity.Document{ID: 3, Title: "Plan", Body: "Our goal is better health."}

	got, err := svc.AnalyzeDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "Solid plan", got.Summary)
	assert.Equal(t, entity.SourceProvider, got.Source)
	assert.False(t, got.Degraded)

	cached, err := svc.AnalyzeDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, entity.SourceCache, cached.Source)
	assert.Equal(t, got.Summary, cached.Summary)
	assert.Equal(t, 1, p.Calls())
}

func TestService_AnalyzeDocument_Degraded(t *testing.T) {
	p := &fakeProvider{fn: fail(ErrTransient)}
	svc := newTestService(t, p, &fakeGrantRepo{})

	got, err := svc.AnalyzeDocument(context.Background(), &entity.Document{ID: 3, Body: "We measure outcomes monthly."})
	require.NoError(t, err)
	assert.True(t, got.Degraded)
	assert.Equal(t, entity.SourceFallback, got.Source)
	assert.NotEmpty(t, got.Summary)
}

func TestService_AnalyzeDocument_InvalidInput(t *testing.T) {
	p := &fakeProvider{}
	svc := newTestService(t, p, &fakeGrantRepo{})

	_, err := svc.AnalyzeDocument(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.AnalyzeDocument(context.Background(), &entity.Document{ID: 1, Body: " "})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, 0, p.Calls())
}

func TestService_Recommend(t *testing.T) {
	repo := &fakeGrantRepo{grants: testGrants()}
	p := &fakeProvider{fn: respond(`{"recommendations":[{"grant_id":1,"score":0.9,"reason":"fits"}]}`)}
	svc := newTestService(t, p, repo)

	got, err := svc.Recommend(context.Background(), entity.Organization{Mission: "rural health"}, 0)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, int64(1), got.Items[0].GrantID)
	assert.Equal(t, entity.SourceProvider, got.Source)
	assert.Equal(t, testNow, repo.lastAsOf)
	assert.Equal(t, 10, repo.lastLimit)
}

func TestService_Recommend_LimitClamp(t *testing.T) {
	var prompts []string
	p := &fakeProvider{fn: func(_ context.Context, pr Prompt) (string, error) {
		prompts = append(prompts, pr.User)
		return `{"recommendations":[]}`, nil
	}}
	svc := newTestService(t, p, &fakeGrantRepo{grants: testGrants()})
	org := entity.Organization{Mission: "rural health"}

	_, err := svc.Recommend(context.Background(), org, 0)
	require.NoError(t, err)
	_, err = svc.Recommend(context.Background(), org, 500)
	require.NoError(t, err)

	require.Len(t, prompts, 2)
	assert.True(t, strings.HasSuffix(prompts[0], "at most 5 recommendations."))
	assert.True(t, strings.HasSuffix(prompts[1], "at most 20 recommendations."))
}

func TestService_Recommend_Errors(t *testing.T) {
	t.Run("empty profile", func(t *testing.T) {
		svc := newTestService(t, &fakeProvider{}, &fakeGrantRepo{})
		_, err := svc.Recommend(context.Background(), entity.Organization{Name: "Only a name"}, 5)
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("repository failure", func(t *testing.T) {
		repoErr := errors.New("connection reset")
		svc := newTestService(t, &fakeProvider{}, &fakeGrantRepo{err: repoErr})
		_, err := svc.Recommend(context.Background(), entity.Organization{Mission: "x"}, 5)
		assert.ErrorIs(t, err, repoErr)
		assert.Contains(t, err.Error(), "recommend:")
	})
}

func TestService_Ask(t *testing.T) {
	p := &fakeProvider{fn: respond(`{"answer":"Apply to the rural fund.","grant_ids":[1]}`)}
	svc := newTestService(t, p, &fakeGrantRepo{grants: testGrants()})

	got, err := svc.Ask(context.Background(), "  Which fund covers rural health?  ")
	require.NoError(t, err)
	assert.Equal(t, "Apply to the rural fund.", got.Text)
	assert.Equal(t, []int64{1}, got.GrantIDs)
	assert.Equal(t, entity.SourceProvider, got.Source)
}

func TestService_Ask_Degraded(t *testing.T) {
	p := &fakeProvider{fn: respond("not json at all")}
	svc := newTestService(t, p, &fakeGrantRepo{grants: testGrants()})

	got, err := svc.Ask(context.Background(), "rural health clinics")
	require.NoError(t, err)
	assert.True(t, got.Degraded)
	assert.Equal(t, entity.SourceFallback, got.Source)
	assert.Equal(t, []int64{1}, got.GrantIDs)
}

func TestService_Ask_InvalidQuestion(t *testing.T) {
	svc := newTestService(t, &fakeProvider{}, &fakeGrantRepo{})

	_, err := svc.Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.Ask(context.Background(), strings.Repeat("q", maxQuestionRunes+1))
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
