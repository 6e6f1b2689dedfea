package research

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"research-backend/internal/projects"
	"research-backend/internal/queue"
	"research-backend/internal/shared/telemetry"
)

// AnalyzeInput is a dispatch request for one or all analysis categories.
type AnalyzeInput struct {
	ProjectID     string
	Topic         string
	Query         string
	SourceURLs    []string
	ProductURLs   []string
	StrictSources bool
	RequestID     string
}

// Dispatcher creates analysis records and enqueues the jobs that fill them in.
type Dispatcher struct {
	Repo     Repo
	Projects projects.Repo
	Producer queue.Producer
	Now      func() time.Time
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

// requireProject checks existence and ownership of the project.
func (d *Dispatcher) requireProject(ctx context.Context, userID, projectID string) error {
	if projectID == "" {
		return fmt.Errorf("%w: project_id is required", ErrValidation)
	}
	if _, err := uuid.Parse(projectID); err != nil {
		return fmt.Errorf("%w: project_id must be a UUID", ErrValidation)
	}
	proj, err := d.Projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, projects.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("load project %s: %w", projectID, err)
	}
	if proj.UserID != userID {
		return ErrForbidden
	}
	return nil
}

func validateURLs(field string, urls []string) error {
	for _, raw := range urls {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %s contains an invalid URL %q", ErrValidation, field, raw)
		}
	}
	return nil
}

func (d *Dispatcher) validate(in AnalyzeInput) error {
	if strings.TrimSpace(in.Topic) == "" {
		return fmt.Errorf("%w: topic_keyword is required", ErrValidation)
	}
	if strings.TrimSpace(in.Query) == "" {
		return fmt.Errorf("%w: user_query is required", ErrValidation)
	}
	if err := validateURLs("source_urls", in.SourceURLs); err != nil {
		return err
	}
	return validateURLs("product_urls", in.ProductURLs)
}

func (d *Dispatcher) newRecord(userID string, category Category, in AnalyzeInput) AnalysisRecord {
	now := d.now()
	return AnalysisRecord{
		ID:        uuid.NewString(),
		TaskID:    uuid.NewString(),
		UserID:    userID,
		ProjectID: in.ProjectID,
		Category:  category,
		Status:    StatusProcessing,
		Topic:     strings.TrimSpace(in.Topic),
		Query:     strings.TrimSpace(in.Query),
		Insights:  emptyInsights,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, rec AnalysisRecord, in AnalyzeInput) error {
	msg := queue.Message{
		TaskID:        rec.TaskID,
		Category:      string(rec.Category),
		RequestID:     in.RequestID,
		SourceURLs:    in.SourceURLs,
		ProductURLs:   in.ProductURLs,
		StrictSources: in.StrictSources,
		EnqueuedAt:    d.now().Format(time.RFC3339),
		Version:       1,
	}
	return d.Producer.Enqueue(ctx, msg)
}

// Analyze creates one analysis record and enqueues its job. The record is
// durable before the job exists; if enqueueing fails the record is marked
// errored so it never sits in processing forever.
func (d *Dispatcher) Analyze(ctx context.Context, userID, categoryToken string, in AnalyzeInput) (AnalysisRecord, error) {
	desc, ok := LookupCategory(categoryToken)
	if !ok {
		return AnalysisRecord{}, fmt.Errorf("%w: %q", ErrUnknownCategory, categoryToken)
	}
	category := desc.Category
	if err := d.validate(in); err != nil {
		return AnalysisRecord{}, err
	}
	if err := d.requireProject(ctx, userID, in.ProjectID); err != nil {
		return AnalysisRecord{}, err
	}

	rec := d.newRecord(userID, category, in)
	if err := d.Repo.Create(ctx, rec); err != nil {
		return AnalysisRecord{}, fmt.Errorf("create analysis: %w", err)
	}
	if err := d.enqueue(ctx, rec, in); err != nil {
		telemetry.Error("research.dispatch.enqueue_failed", map[string]any{
			"taskId": rec.TaskID,
			"error":  err.Error(),
		})
		if markErr := d.Repo.MarkError(ctx, rec.TaskID, "failed to queue analysis"); markErr != nil {
			telemetry.Error("research.dispatch.mark_error_failed", map[string]any{
				"taskId": rec.TaskID,
				"error":  markErr.Error(),
			})
		}
		return AnalysisRecord{}, fmt.Errorf("enqueue analysis: %w", err)
	}
	telemetry.Info("research.dispatch", map[string]any{
		"taskId":   rec.TaskID,
		"category": string(category),
		"project":  rec.ProjectID,
	})
	return rec, nil
}

// AnalyzeAll creates records for every category in one transaction, then
// enqueues a job per record. Enqueue failures degrade per-category: the
// affected record is marked errored and the rest proceed.
func (d *Dispatcher) AnalyzeAll(ctx context.Context, userID string, in AnalyzeInput) ([]AnalysisRecord, error) {
	if err := d.validate(in); err != nil {
		return nil, err
	}
	if err := d.requireProject(ctx, userID, in.ProjectID); err != nil {
		return nil, err
	}

	descs := Descriptors()
	recs := make([]AnalysisRecord, 0, len(descs))
	for _, desc := range descs {
		recs = append(recs, d.newRecord(userID, desc.Category, in))
	}
	if err := d.Repo.CreateBatch(ctx, recs); err != nil {
		return nil, fmt.Errorf("create analyses: %w", err)
	}

	for i := range recs {
		if err := d.enqueue(ctx, recs[i], in); err != nil {
			telemetry.Error("research.dispatch.enqueue_failed", map[string]any{
				"taskId": recs[i].TaskID,
				"error":  err.Error(),
			})
			if markErr := d.Repo.MarkError(ctx, recs[i].TaskID, "failed to queue analysis"); markErr != nil {
				telemetry.Error("research.dispatch.mark_error_failed", map[string]any{
					"taskId": recs[i].TaskID,
					"error":  markErr.Error(),
				})
			}
			recs[i].Status = StatusError
			msg := "failed to queue analysis"
			recs[i].Error = &msg
			continue
		}
	}
	telemetry.Info("research.dispatch.all", map[string]any{
		"project":    in.ProjectID,
		"categories": len(recs),
	})
	return recs, nil
}

// Results returns the record for (taskID, category), enforcing ownership.
func (d *Dispatcher) Results(ctx context.Context, userID, taskID, categoryToken string) (AnalysisRecord, error) {
	desc, ok := LookupCategory(categoryToken)
	if !ok {
		return AnalysisRecord{}, fmt.Errorf("%w: %q", ErrUnknownCategory, categoryToken)
	}
	if _, err := uuid.Parse(taskID); err != nil {
		return AnalysisRecord{}, fmt.Errorf("%w: task_id must be a UUID", ErrValidation)
	}
	rec, err := d.Repo.GetByTask(ctx, taskID, desc.Category)
	if err != nil {
		return AnalysisRecord{}, err
	}
	if rec.UserID != userID {
		return AnalysisRecord{}, ErrForbidden
	}
	return rec, nil
}

// ListByProject pages a project's analyses for one category, newest first.
func (d *Dispatcher) ListByProject(ctx context.Context, userID, projectID, categoryToken string, limit, offset int) ([]AnalysisRecord, error) {
	desc, ok := LookupCategory(categoryToken)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, categoryToken)
	}
	if limit < 1 || limit > 100 {
		return nil, fmt.Errorf("%w: limit must be between 1 and 100", ErrValidation)
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", ErrValidation)
	}
	if err := d.requireProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return d.Repo.ListByProject(ctx, projectID, desc.Category, limit, offset)
}

// ListQueries returns the distinct queries launched for a project.
func (d *Dispatcher) ListQueries(ctx context.Context, userID, projectID string) ([]string, error) {
	if err := d.requireProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return d.Repo.ListQueries(ctx, projectID)
}

// MergedInsights flattens a project's completed analyses into one
// deduplicated insight feed across categories.
func (d *Dispatcher) MergedInsights(ctx context.Context, userID, projectID string) ([]MergedInsight, error) {
	if err := d.requireProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	recs, err := d.Repo.ListCompletedByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return MergeInsights(recs)
}
