package service

import (
	"context"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/club-collab-api/internal/dto"
	"github.com/noah-isme/club-collab-api/internal/models"
	appErrors "github.com/noah-isme/club-collab-api/pkg/errors"
	"github.com/noah-isme/club-collab-api/pkg/jobs"
)

type submissionStore interface {
	Create(ctx context.Context, sub *models.Submission) error
	FindByID(ctx context.Context, id int64) (*models.Submission, error)
	UpdateStatus(ctx context.Context, id int64, status models.SubmissionStatus, completion *time.Duration) error
	ListByTeam(ctx context.Context, teamID int64) ([]models.Submission, error)
}

type teamStateReader interface {
	IsBlocked(ctx context.Context, teamID int64) (bool, error)
	TaskSelectedAt(ctx context.Context, teamID int64) (*time.Time, error)
}

type codeAreaReader interface {
	Area(teamID, participantID int64) *models.CodeArea
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

const jobTypeGrade = "grade_submission"

// SubmissionService is the gate between a team and the external
// grading runner. Only the elder may send, and only while the team is
// unblocked inside a live session.
type SubmissionService struct {
	subs     submissionStore
	roster   rosterReader
	state    teamStateReader
	code     codeAreaReader
	events   eventAppender
	queue    jobDispatcher
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewSubmissionService constructs the gate. queue may be nil when
// grading dispatch is disabled; submissions then stay in NEW.
func NewSubmissionService(subs submissionStore, roster rosterReader, state teamStateReader, code codeAreaReader, events eventAppender, queue jobDispatcher, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{
		subs:     subs,
		roster:   roster,
		state:    state,
		code:     code,
		events:   events,
		queue:    queue,
		validate: validate,
		logger:   logger,
		now:      time.Now,
	}
}

// Submit records a solution send. The code defaults to the elder's
// current area when the request carries none.
func (s *SubmissionService) Submit(ctx context.Context, teamID, actorID int64, req dto.SubmitRequest) (*models.Submission, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	team, err := s.roster.FindTeam(ctx, teamID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team")
	}
	if team == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "team not found")
	}
	class, err := s.roster.FindClass(ctx, team.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	if !class.InSession(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrNotInSession, "class session is not live")
	}
	if team.ElderID != actorID {
		return nil, appErrors.Clone(appErrors.ErrNotElder, "only the team elder may send a solution")
	}

	blocked, err := s.state.IsBlocked(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, appErrors.Clone(appErrors.ErrSubmissionBlocked, "team is blocked from sending solutions")
	}

	ok, err := s.roster.TaskInClass(ctx, team.ClassID, req.TaskID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check task")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "task does not belong to this class")
	}

	code := req.Code
	if code == "" {
		if area := s.code.Area(teamID, actorID); area != nil {
			code = area.Content
		}
	}
	if code == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "submission has no code")
	}

	sub := &models.Submission{
		TeamID:   teamID,
		TaskID:   req.TaskID,
		Code:     code,
		Language: req.Language,
		Status:   models.SubmissionNew,
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create submission")
	}

	if err := s.events.Append(ctx, &models.Event{
		Type:         models.EventTeamSentSolution,
		ClassID:      models.Int64Ptr(team.ClassID),
		TeamID:       models.Int64Ptr(teamID),
		TaskID:       models.Int64Ptr(req.TaskID),
		SubmissionID: models.Int64Ptr(sub.ID),
		ActorID:      models.Int64Ptr(actorID),
		ActorRole:    models.RolePtr(models.RoleElder),
	}); err != nil {
		return nil, err
	}

	if s.queue != nil {
		if err := s.queue.Enqueue(jobs.Job{ID: strconv.FormatInt(sub.ID, 10), Type: jobTypeGrade, Payload: sub.ID}); err != nil {
			s.logger.Sugar().Errorw("failed to enqueue grading", "submission_id", sub.ID, "error", err)
			return sub, nil
		}
		if err := s.subs.UpdateStatus(ctx, sub.ID, models.SubmissionInProcess, nil); err != nil {
			s.logger.Sugar().Warnw("failed to mark submission in process", "submission_id", sub.ID, "error", err)
		} else {
			sub.Status = models.SubmissionInProcess
		}
	}
	return sub, nil
}

// ReportResult applies the runner's verdict. The callback is
// idempotent: a submission already in a terminal status is returned
// unchanged.
func (s *SubmissionService) ReportResult(ctx context.Context, req dto.GradingResultRequest) (*models.Submission, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	sub, err := s.subs.FindByID(ctx, req.SubmissionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if sub == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
	}
	if sub.Status == models.SubmissionOK || sub.Status == models.SubmissionFailed {
		return sub, nil
	}

	status := models.SubmissionFailed
	if req.Passed {
		status = models.SubmissionOK
	}
	completion := s.completionFor(ctx, sub, req)
	if err := s.subs.UpdateStatus(ctx, sub.ID, status, completion); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update submission")
	}
	sub.Status = status
	sub.CompletionTime = completion

	event := &models.Event{
		Type:         models.EventResultOfSolution,
		TeamID:       models.Int64Ptr(sub.TeamID),
		TaskID:       models.Int64Ptr(sub.TaskID),
		SubmissionID: models.Int64Ptr(sub.ID),
	}
	if team, err := s.roster.FindTeam(ctx, sub.TeamID); err == nil && team != nil {
		event.ClassID = models.Int64Ptr(team.ClassID)
	}
	if err := s.events.Append(ctx, event); err != nil {
		return nil, err
	}
	return sub, nil
}

// GetSubmission fetches one submission by id.
func (s *SubmissionService) GetSubmission(ctx context.Context, id int64) (*models.Submission, error) {
	sub, err := s.subs.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if sub == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
	}
	return sub, nil
}

// ListTeamSubmissions returns a team's submissions newest-first.
func (s *SubmissionService) ListTeamSubmissions(ctx context.Context, teamID int64) ([]models.Submission, error) {
	subs, err := s.subs.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return subs, nil
}

// completionFor derives how long the team worked on the task: the
// runner's measured duration when reported, otherwise the gap between
// task selection and now.
func (s *SubmissionService) completionFor(ctx context.Context, sub *models.Submission, req dto.GradingResultRequest) *time.Duration {
	if req.DurationSeconds > 0 {
		d := time.Duration(req.DurationSeconds) * time.Second
		return &d
	}
	selectedAt, err := s.state.TaskSelectedAt(ctx, sub.TeamID)
	if err != nil || selectedAt == nil {
		return nil
	}
	d := s.now().Sub(*selectedAt)
	if d < 0 {
		return nil
	}
	return &d
}

// Grader hands a submission to the external runner.
type Grader interface {
	Grade(ctx context.Context, sub *models.Submission) error
}

// GradingWorker bridges queue jobs to the runner.
type GradingWorker struct {
	subs   submissionStore
	grader Grader
	logger *zap.Logger
}

// NewGradingWorker constructs a worker.
func NewGradingWorker(subs submissionStore, grader Grader, logger *zap.Logger) *GradingWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradingWorker{subs: subs, grader: grader, logger: logger}
}

// Handle processes a queue job. Errors are returned so the queue can
// retry; the verdict itself arrives later through ReportResult.
func (w *GradingWorker) Handle(ctx context.Context, job jobs.Job) error {
	id, ok := job.Payload.(int64)
	if !ok {
		var err error
		id, err = strconv.ParseInt(job.ID, 10, 64)
		if err != nil {
			w.logger.Sugar().Errorw("grading job with unusable payload", "job_id", job.ID)
			return nil
		}
	}
	sub, err := w.subs.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if sub == nil || sub.Status == models.SubmissionOK || sub.Status == models.SubmissionFailed {
		return nil
	}
	if err := w.grader.Grade(ctx, sub); err != nil {
		w.logger.Sugar().Warnw("grading dispatch failed", "submission_id", id, "error", err)
		return err
	}
	return nil
}
