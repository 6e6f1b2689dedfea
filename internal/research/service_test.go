package research

import (
	"context"
	"errors"
	"testing"
	"time"

	"research-backend/internal/projects"
	"research-backend/internal/queue"
)

type fakeProducer struct {
	messages []queue.Message
	// failAfter caps successful enqueues; zero means unlimited.
	failAfter int
}

func (f *fakeProducer) Enqueue(ctx context.Context, msg queue.Message) error {
	if f.failAfter > 0 && len(f.messages) >= f.failAfter {
		return errors.New("broker unavailable")
	}
	if f.failAfter < 0 {
		return errors.New("broker unavailable")
	}
	f.messages = append(f.messages, msg)
	return nil
}

const (
	ownedProjectID   = "3f2a1d28-5c1e-4b7a-9f60-8a2f6d9f4b11"
	foreignProjectID = "9b8f7c6d-0a1e-4f23-b456-7890abcd1234"
)

func newDispatcher(producer *fakeProducer) (*Dispatcher, *MemoryRepo) {
	repo := NewMemoryRepo()
	projRepo := projects.NewMemoryRepo()
	projRepo.Put(projects.Project{ID: ownedProjectID, UserID: "user-1", Name: "desk research", CreatedAt: time.Now().UTC()})
	projRepo.Put(projects.Project{ID: foreignProjectID, UserID: "someone-else", Name: "other", CreatedAt: time.Now().UTC()})
	return &Dispatcher{Repo: repo, Projects: projRepo, Producer: producer}, repo
}

func validInput() AnalyzeInput {
	return AnalyzeInput{
		ProjectID: ownedProjectID,
		Topic:     "standing desks",
		Query:     "are standing desks worth it",
	}
}

func TestAnalyzeCreatesRecordAndEnqueues(t *testing.T) {
	producer := &fakeProducer{}
	d, repo := newDispatcher(producer)

	rec, err := d.Analyze(context.Background(), "user-1", string(CategoryPainFrustration), validInput())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if rec.Status != StatusProcessing {
		t.Errorf("status = %q, want processing", rec.Status)
	}
	if rec.TaskID == "" || rec.ID == "" {
		t.Error("record missing identifiers")
	}

	stored, err := repo.GetByTask(context.Background(), rec.TaskID, CategoryPainFrustration)
	if err != nil {
		t.Fatalf("record not durable: %v", err)
	}
	if stored.UserID != "user-1" || stored.ProjectID != ownedProjectID {
		t.Errorf("ownership fields wrong: %+v", stored)
	}

	if len(producer.messages) != 1 {
		t.Fatalf("enqueued %d messages, want 1", len(producer.messages))
	}
	msg := producer.messages[0]
	if msg.TaskID != rec.TaskID || msg.Category != string(CategoryPainFrustration) {
		t.Errorf("queue message mismatch: %+v", msg)
	}
}

func TestAnalyzeRejectsUnknownCategory(t *testing.T) {
	d, _ := newDispatcher(&fakeProducer{})
	_, err := d.Analyze(context.Background(), "user-1", "Sentiment Analysis", validInput())
	if !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("err = %v, want unknown category", err)
	}
}

func TestAnalyzeValidatesInput(t *testing.T) {
	d, _ := newDispatcher(&fakeProducer{})

	in := validInput()
	in.Topic = "   "
	if _, err := d.Analyze(context.Background(), "user-1", string(CategoryAvatars), in); !errors.Is(err, ErrValidation) {
		t.Errorf("blank topic: err = %v, want validation error", err)
	}

	in = validInput()
	in.Query = "\t "
	if _, err := d.Analyze(context.Background(), "user-1", string(CategoryAvatars), in); !errors.Is(err, ErrValidation) {
		t.Errorf("blank query: err = %v, want validation error", err)
	}

	in = validInput()
	in.SourceURLs = []string{"not a url"}
	if _, err := d.Analyze(context.Background(), "user-1", string(CategoryAvatars), in); !errors.Is(err, ErrValidation) {
		t.Errorf("bad source url: err = %v, want validation error", err)
	}

	in = validInput()
	in.ProductURLs = []string{"ftp://example.com/file"}
	if _, err := d.Analyze(context.Background(), "user-1", string(CategoryPopularProducts), in); !errors.Is(err, ErrValidation) {
		t.Errorf("non-http product url: err = %v, want validation error", err)
	}
}

func TestAnalyzeOwnership(t *testing.T) {
	d, _ := newDispatcher(&fakeProducer{})

	in := validInput()
	in.ProjectID = "cafe0000-0000-4000-8000-000000000000"
	if _, err := d.Analyze(context.Background(), "user-1", string(CategoryAvatars), in); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing project: err = %v, want not found", err)
	}

	// A malformed id never reaches the store, so the behavior is identical
	// whether the project repo sits on memory or Postgres.
	in = validInput()
	in.ProjectID = "missing"
	if _, err := d.Analyze(context.Background(), "user-1", string(CategoryAvatars), in); !errors.Is(err, ErrValidation) {
		t.Errorf("malformed project id: err = %v, want validation error", err)
	}

	in = validInput()
	in.ProjectID = foreignProjectID
	if _, err := d.Analyze(context.Background(), "user-1", string(CategoryAvatars), in); !errors.Is(err, ErrForbidden) {
		t.Errorf("foreign project: err = %v, want forbidden", err)
	}
}

func TestAnalyzeEnqueueFailureMarksError(t *testing.T) {
	producer := &fakeProducer{failAfter: -1}
	d, repo := newDispatcher(producer)

	_, err := d.Analyze(context.Background(), "user-1", string(CategoryPainFrustration), validInput())
	if err == nil {
		t.Fatal("Analyze should fail when the broker is down")
	}

	// The single record must not be stuck in processing.
	recs, listErr := repo.ListByProject(context.Background(), ownedProjectID, CategoryPainFrustration, 10, 0)
	if listErr != nil {
		t.Fatalf("ListByProject: %v", listErr)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if recs[0].Status != StatusError {
		t.Errorf("status = %q, want error", recs[0].Status)
	}
}

func TestAnalyzeAllCreatesEveryCategory(t *testing.T) {
	producer := &fakeProducer{}
	d, repo := newDispatcher(producer)

	recs, err := d.AnalyzeAll(context.Background(), "user-1", validInput())
	if err != nil {
		t.Fatalf("AnalyzeAll: %v", err)
	}
	if len(recs) != 5 {
		t.Fatalf("got %d records, want 5", len(recs))
	}
	if len(producer.messages) != 5 {
		t.Fatalf("enqueued %d messages, want 5", len(producer.messages))
	}

	seen := make(map[Category]bool)
	for _, rec := range recs {
		if rec.Status != StatusProcessing {
			t.Errorf("%s status = %q, want processing", rec.Category, rec.Status)
		}
		seen[rec.Category] = true

		if _, err := repo.GetByTask(context.Background(), rec.TaskID, rec.Category); err != nil {
			t.Errorf("record for %s not durable: %v", rec.Category, err)
		}
	}
	if len(seen) != 5 {
		t.Errorf("categories dispatched: %v", seen)
	}
}

func TestAnalyzeAllPartialEnqueueFailure(t *testing.T) {
	producer := &fakeProducer{failAfter: 3}
	d, repo := newDispatcher(producer)

	recs, err := d.AnalyzeAll(context.Background(), "user-1", validInput())
	if err != nil {
		t.Fatalf("AnalyzeAll should degrade per category, got %v", err)
	}
	if len(recs) != 5 {
		t.Fatalf("got %d records, want 5", len(recs))
	}

	var queued, errored int
	for _, rec := range recs {
		switch rec.Status {
		case StatusProcessing:
			queued++
		case StatusError:
			errored++
			stored, getErr := repo.GetByTask(context.Background(), rec.TaskID, rec.Category)
			if getErr != nil {
				t.Fatalf("GetByTask: %v", getErr)
			}
			if stored.Status != StatusError {
				t.Errorf("stored status = %q, want error", stored.Status)
			}
		}
	}
	if queued != 3 || errored != 2 {
		t.Errorf("queued=%d errored=%d, want 3 and 2", queued, errored)
	}
}

func TestResultsEnforcesOwnership(t *testing.T) {
	producer := &fakeProducer{}
	d, _ := newDispatcher(producer)

	rec, err := d.Analyze(context.Background(), "user-1", string(CategoryAvatars), validInput())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if _, err := d.Results(context.Background(), "user-1", rec.TaskID, string(CategoryAvatars)); err != nil {
		t.Errorf("owner read failed: %v", err)
	}
	if _, err := d.Results(context.Background(), "intruder", rec.TaskID, string(CategoryAvatars)); !errors.Is(err, ErrForbidden) {
		t.Errorf("foreign read: err = %v, want forbidden", err)
	}
	if _, err := d.Results(context.Background(), "user-1", "not-a-uuid", string(CategoryAvatars)); !errors.Is(err, ErrValidation) {
		t.Errorf("bad task id: err = %v, want validation error", err)
	}
	if _, err := d.Results(context.Background(), "user-1", "2f2b0cf0-9e9b-42ab-9f7f-8f8dfd3e3f10", string(CategoryAvatars)); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown task: err = %v, want not found", err)
	}
}

func TestListByProjectValidatesPagination(t *testing.T) {
	d, _ := newDispatcher(&fakeProducer{})

	cases := []struct {
		name          string
		limit, offset int
	}{
		{"zero limit", 0, 0},
		{"limit too large", 101, 0},
		{"negative offset", 10, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := d.ListByProject(context.Background(), "user-1", ownedProjectID, string(CategoryAvatars), tc.limit, tc.offset)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want validation error", err)
			}
		})
	}

	if _, err := d.ListByProject(context.Background(), "user-1", ownedProjectID, string(CategoryAvatars), 1, 0); err != nil {
		t.Errorf("limit=1 should be accepted: %v", err)
	}
	if _, err := d.ListByProject(context.Background(), "user-1", ownedProjectID, string(CategoryAvatars), 100, 0); err != nil {
		t.Errorf("limit=100 should be accepted: %v", err)
	}
}

func TestListQueriesDistinct(t *testing.T) {
	producer := &fakeProducer{}
	d, _ := newDispatcher(producer)

	in := validInput()
	if _, err := d.Analyze(context.Background(), "user-1", string(CategoryPainFrustration), in); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if _, err := d.Analyze(context.Background(), "user-1", string(CategoryAvatars), in); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	in.Query = "best desk under 500"
	if _, err := d.Analyze(context.Background(), "user-1", string(CategoryAvatars), in); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	queries, err := d.ListQueries(context.Background(), "user-1", ownedProjectID)
	if err != nil {
		t.Fatalf("ListQueries: %v", err)
	}
	if len(queries) != 2 {
		t.Fatalf("queries = %v, want 2 distinct values", queries)
	}
}
