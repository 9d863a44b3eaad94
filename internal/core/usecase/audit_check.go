package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
	"github.com/kirillkom/compliance-auditor/internal/core/ports"
	"github.com/kirillkom/compliance-auditor/internal/core/scoring"
	"github.com/kirillkom/compliance-auditor/internal/core/tracking"
)

const (
	msgNoDocuments          = "Project must have at least one document to analyze"
	msgNoControls           = "Framework must have at least one control to analyze"
	msgInsufficientRole     = "Insufficient project role to run a compliance check"
	msgFrameworkNotAssigned = "Framework is not assigned to this project"
	msgFrameworkInactive    = "Framework is not active for this project"

	commitAttempts = 3
)

type AuditCheckDependencies struct {
	Projects    ports.ProjectRepository
	Frameworks  ports.FrameworkRepository
	Assignments ports.ProjectFrameworkRepository
	Documents   ports.DocumentRepository
	Aggregator  *ContentAggregator
	Analyzer    ports.ComplianceAnalyzer
	Synthesizer *FindingSynthesizer
	Committer   ports.ChangeCommitter
	Recorder    ports.LifecycleRecorder
	Activity    *ActivityWriter
	Metrics     ports.AuditMetrics
}

// AuditCheckUseCase runs one compliance check: NotStarted -> Running ->
// Completed | Failed. Findings, statistics and the run record commit together
// or not at all.
type AuditCheckUseCase struct {
	access      projectAccess
	frameworks  ports.FrameworkRepository
	assignments ports.ProjectFrameworkRepository
	documents   ports.DocumentRepository
	aggregator  *ContentAggregator
	analyzer    ports.ComplianceAnalyzer
	synthesizer *FindingSynthesizer
	committer   ports.ChangeCommitter
	recorder    ports.LifecycleRecorder
	activity    *ActivityWriter
	metrics     ports.AuditMetrics

	defaults        domain.AnalysisOptions
	analysisVersion string
	now             func() time.Time
}

func NewAuditCheckUseCase(deps AuditCheckDependencies, defaults domain.AnalysisOptions, analysisVersion string) *AuditCheckUseCase {
	synthesizer := deps.Synthesizer
	if synthesizer == nil {
		synthesizer = NewFindingSynthesizer()
	}
	return &AuditCheckUseCase{
		access:          projectAccess{projects: deps.Projects},
		frameworks:      deps.Frameworks,
		assignments:     deps.Assignments,
		documents:       deps.Documents,
		aggregator:      deps.Aggregator,
		analyzer:        deps.Analyzer,
		synthesizer:     synthesizer,
		committer:       deps.Committer,
		recorder:        deps.Recorder,
		activity:        deps.Activity,
		metrics:         deps.Metrics,
		defaults:        defaults,
		analysisVersion: analysisVersion,
		now:             time.Now,
	}
}

// checkPlan is the validated input of a run.
type checkPlan struct {
	project   *domain.Project
	framework *domain.Framework
	controls  []domain.Control
	documents []domain.Document
}

func (uc *AuditCheckUseCase) RunCheck(
	ctx context.Context,
	scope domain.Scope,
	projectID, frameworkID string,
	opts domain.AnalysisOptions,
) (*domain.CheckResult, error) {
	plan, err := uc.checkPreconditions(ctx, scope, projectID, frameworkID)
	if err != nil {
		return nil, err
	}
	opts = uc.mergeOptions(opts)

	run := &domain.CheckRun{
		ID:            uuid.NewString(),
		TenantID:      scope.TenantID,
		ProjectID:     projectID,
		FrameworkID:   frameworkID,
		State:         domain.CheckNotStarted,
		AnalysisModel: opts.Model,
		TriggeredBy:   scope.Actor(),
	}
	if err := run.Start(uc.now()); err != nil {
		return nil, err
	}
	uc.recordStarted(ctx, scope, run, plan)

	response, err := uc.analyze(ctx, plan, opts)
	if err != nil {
		return nil, uc.fail(ctx, scope, run, plan, err)
	}

	results := uc.acceptResults(plan, response)
	completedAt := uc.now()
	var outcome commitOutcome
	for attempt := 1; attempt <= commitAttempts; attempt++ {
		outcome, err = uc.commitResults(ctx, scope, run, plan, response, results, completedAt)
		if err == nil || !domain.IsKind(err, domain.ErrConcurrencyConflict) {
			break
		}
		slog.Warn("audit_check_commit_conflict",
			"run_id", run.ID,
			"project_id", projectID,
			"framework_id", frameworkID,
			"attempt", attempt,
		)
	}
	if err != nil {
		return nil, uc.fail(ctx, scope, run, plan, err)
	}

	completed := outcome.run
	uc.recordCompleted(ctx, scope, completed, plan, response, outcome)
	if uc.metrics != nil {
		uc.metrics.ObserveCheck(domain.CheckCompleted, time.Duration(completed.DurationMs)*time.Millisecond, len(outcome.synthesis.Findings))
	}

	return &domain.CheckResult{
		RunID:           completed.ID,
		ProjectID:       projectID,
		FrameworkID:     frameworkID,
		State:           completed.State,
		Counts:          outcome.counts,
		Score:           outcome.score,
		Status:          scoring.Classify(outcome.score),
		FindingsCreated: len(outcome.synthesis.Findings),
		EvidenceCreated: len(outcome.synthesis.Evidence),
		DurationMs:      completed.DurationMs,
		Summary:         response.Summary,
	}, nil
}

func (uc *AuditCheckUseCase) checkPreconditions(
	ctx context.Context,
	scope domain.Scope,
	projectID, frameworkID string,
) (*checkPlan, error) {
	project, role, err := uc.access.resolve(ctx, scope, projectID)
	if err != nil {
		if domain.IsKind(err, domain.ErrForbidden) {
			return nil, domain.NewPreconditionError(msgInsufficientRole)
		}
		return nil, err
	}
	var messages []string
	if !role.CanWrite() {
		messages = append(messages, msgInsufficientRole)
	}

	framework, err := uc.frameworks.GetFramework(ctx, frameworkID)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return nil, domain.NewPreconditionError(append(messages, msgFrameworkNotAssigned)...)
		}
		return nil, fmt.Errorf("load framework: %w", err)
	}
	assignment, err := uc.assignments.Get(ctx, scope.TenantID, projectID, frameworkID)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return nil, domain.NewPreconditionError(append(messages, msgFrameworkNotAssigned)...)
		}
		return nil, fmt.Errorf("load framework assignment: %w", err)
	}
	if !assignment.IsActive || !framework.IsActive {
		return nil, domain.NewPreconditionError(append(messages, msgFrameworkInactive)...)
	}

	documents, err := uc.documents.ListByProject(ctx, scope.TenantID, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project documents: %w", err)
	}
	controls, err := uc.frameworks.ListControls(ctx, frameworkID)
	if err != nil {
		return nil, fmt.Errorf("list framework controls: %w", err)
	}

	if len(documents) == 0 {
		messages = append(messages, msgNoDocuments)
	}
	if len(controls) == 0 {
		messages = append(messages, msgNoControls)
	}
	if len(messages) > 0 {
		return nil, domain.NewPreconditionError(messages...)
	}

	return &checkPlan{
		project:   project,
		framework: framework,
		controls:  controls,
		documents: documents,
	}, nil
}

func (uc *AuditCheckUseCase) mergeOptions(opts domain.AnalysisOptions) domain.AnalysisOptions {
	if strings.TrimSpace(opts.Model) == "" {
		opts.Model = uc.defaults.Model
	}
	if strings.TrimSpace(opts.Language) == "" {
		opts.Language = uc.defaults.Language
	}
	return opts
}

func (uc *AuditCheckUseCase) analyze(ctx context.Context, plan *checkPlan, opts domain.AnalysisOptions) (*domain.AnalysisResponse, error) {
	request := domain.AnalysisRequest{
		ProjectID:     plan.project.ID,
		FrameworkID:   plan.framework.ID,
		FrameworkCode: plan.framework.Code,
		FrameworkName: plan.framework.Name,
		Controls:      make([]domain.AnalysisControl, 0, len(plan.controls)),
		Documents:     uc.aggregator.Aggregate(ctx, plan.documents),
		Options:       opts,
	}
	for _, control := range plan.controls {
		request.Controls = append(request.Controls, domain.AnalysisControl{
			ID:          control.ID,
			Code:        control.Code,
			Title:       control.Title,
			Description: control.Description,
			Guidance:    control.Guidance,
			IsMandatory: control.IsMandatory,
			RiskLevel:   control.DefaultRiskLevel,
		})
	}

	response, err := uc.analyzer.Analyze(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("invoke analysis capability: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if response == nil || len(response.Results) == 0 {
		return nil, errors.New("analysis capability returned no control results")
	}
	if strings.TrimSpace(response.Model) == "" {
		response.Model = opts.Model
	}
	return response, nil
}

// acceptResults keeps the first result per known control. Results for controls
// outside the framework are dropped.
func (uc *AuditCheckUseCase) acceptResults(plan *checkPlan, response *domain.AnalysisResponse) []domain.ControlResult {
	known := make(map[string]struct{}, len(plan.controls))
	for _, control := range plan.controls {
		known[control.ID] = struct{}{}
	}
	seen := make(map[string]struct{}, len(response.Results))
	accepted := make([]domain.ControlResult, 0, len(response.Results))
	for _, result := range response.Results {
		if _, ok := known[result.ControlID]; !ok {
			slog.Warn("analysis_result_unknown_control",
				"framework_id", plan.framework.ID,
				"control_id", result.ControlID,
			)
			continue
		}
		if _, dup := seen[result.ControlID]; dup {
			continue
		}
		seen[result.ControlID] = struct{}{}
		if result.Status == "" {
			result.Status = domain.StatusNotAssessed
		}
		accepted = append(accepted, result)
	}
	return accepted
}

type commitOutcome struct {
	run       *domain.CheckRun
	synthesis SynthesisOutput
	counts    domain.ControlCounts
	score     float64
}

// commitResults stages findings, evidence, recomputed statistics and the run
// record in one unit of work. The assignment is reloaded on every attempt so a
// version conflict can be retried without re-running the analysis.
func (uc *AuditCheckUseCase) commitResults(
	ctx context.Context,
	scope domain.Scope,
	run *domain.CheckRun,
	plan *checkPlan,
	response *domain.AnalysisResponse,
	results []domain.ControlResult,
	completedAt time.Time,
) (commitOutcome, error) {
	assignment, err := uc.assignments.Get(ctx, scope.TenantID, plan.project.ID, plan.framework.ID)
	if err != nil {
		return commitOutcome{}, fmt.Errorf("reload framework assignment: %w", err)
	}

	session := tracking.NewSession(scope, uc.committer, uc.recorder).WithClock(uc.now)
	session.Track(assignment)

	controls := make(map[string]domain.Control, len(plan.controls))
	for _, control := range plan.controls {
		controls[control.ID] = control
	}
	projectDocs := make(map[string]struct{}, len(plan.documents))
	for _, doc := range plan.documents {
		projectDocs[doc.ID] = struct{}{}
	}

	analyzedAt := response.AnalysisCompletedAt
	if analyzedAt.IsZero() {
		analyzedAt = completedAt
	}
	analysisVersion := response.AnalysisVersion
	if analysisVersion == "" {
		analysisVersion = uc.analysisVersion
	}
	synthesis := uc.synthesizer.Synthesize(SynthesisInput{
		TenantID:        scope.TenantID,
		ProjectID:       plan.project.ID,
		Framework:       *plan.framework,
		Controls:        controls,
		Results:         results,
		ProjectDocs:     projectDocs,
		AnalysisModel:   response.Model,
		AnalysisVersion: analysisVersion,
		AnalyzedAt:      analyzedAt,
	})
	for _, finding := range synthesis.Findings {
		session.Add(finding)
	}
	for _, evidence := range synthesis.Evidence {
		session.Add(evidence)
	}

	verdicts := make(map[string]domain.ComplianceStatus, len(results))
	for _, result := range results {
		verdicts[result.ControlID] = result.Status
	}
	counts := scoring.Tally(plan.controls, verdicts)
	score := scoring.Score(counts)

	assignment.ApplyCounts(counts, score, scope.Actor(), completedAt)
	if err := session.Modify(assignment); err != nil {
		return commitOutcome{}, err
	}

	completed := *run
	if err := completed.Complete(completedAt, counts, score, len(synthesis.Findings)); err != nil {
		return commitOutcome{}, err
	}
	if response.Duration > 0 {
		completed.DurationMs = response.Duration.Milliseconds()
	}
	session.Add(&completed)

	if err := session.Commit(ctx); err != nil {
		return commitOutcome{}, err
	}
	return commitOutcome{
		run:       &completed,
		synthesis: synthesis,
		counts:    counts,
		score:     score,
	}, nil
}

// fail records the failed run on a best-effort basis and returns the error
// surfaced to the caller.
func (uc *AuditCheckUseCase) fail(
	ctx context.Context,
	scope domain.Scope,
	run *domain.CheckRun,
	plan *checkPlan,
	cause error,
) error {
	recordCtx := context.WithoutCancel(ctx)
	if err := run.Fail(uc.now(), cause.Error()); err == nil {
		session := tracking.NewSession(scope, uc.committer, uc.recorder).WithClock(uc.now)
		session.Add(run)
		if commitErr := session.Commit(recordCtx); commitErr != nil {
			slog.Error("audit_check_run_record_failed", "run_id", run.ID, "error", commitErr)
		}
	}

	slog.Error("audit_check_failed",
		"run_id", run.ID,
		"tenant_id", scope.TenantID,
		"project_id", run.ProjectID,
		"framework_id", run.FrameworkID,
		"error", cause,
	)
	if uc.activity != nil {
		uc.activity.RecordCheck(recordCtx, scope, CheckActivity{
			Type:        domain.ActivityComplianceCheckFailed,
			ProjectID:   run.ProjectID,
			RunID:       run.ID,
			EntityName:  plan.framework.Code,
			Description: fmt.Sprintf("Compliance check for %s failed", plan.framework.Code),
			Metadata: map[string]any{
				"frameworkId":   plan.framework.ID,
				"frameworkCode": plan.framework.Code,
				"durationMs":    run.DurationMs,
				"error":         cause.Error(),
			},
		})
	}
	if uc.metrics != nil {
		uc.metrics.ObserveCheck(domain.CheckFailed, time.Duration(run.DurationMs)*time.Millisecond, 0)
	}

	if domain.IsKind(cause, domain.ErrConcurrencyConflict) {
		return domain.WrapError(domain.ErrConcurrencyConflict, "run compliance check", cause)
	}
	return domain.WrapError(domain.ErrAnalysisFailed, "run compliance check", cause)
}

func (uc *AuditCheckUseCase) recordStarted(ctx context.Context, scope domain.Scope, run *domain.CheckRun, plan *checkPlan) {
	if uc.activity == nil {
		return
	}
	uc.activity.RecordCheck(ctx, scope, CheckActivity{
		Type:        domain.ActivityComplianceCheckStarted,
		ProjectID:   run.ProjectID,
		RunID:       run.ID,
		EntityName:  plan.framework.Code,
		Description: fmt.Sprintf("Started compliance check for %s", plan.framework.Code),
		Metadata: map[string]any{
			"frameworkId":   plan.framework.ID,
			"frameworkCode": plan.framework.Code,
			"controlCount":  len(plan.controls),
			"documentCount": len(plan.documents),
		},
	})
}

func (uc *AuditCheckUseCase) recordCompleted(
	ctx context.Context,
	scope domain.Scope,
	run *domain.CheckRun,
	plan *checkPlan,
	response *domain.AnalysisResponse,
	outcome commitOutcome,
) {
	if uc.activity == nil {
		return
	}
	uc.activity.RecordCheck(ctx, scope, CheckActivity{
		Type:       domain.ActivityComplianceCheckDone,
		ProjectID:  run.ProjectID,
		RunID:      run.ID,
		EntityName: plan.framework.Code,
		Description: fmt.Sprintf("Completed compliance check for %s: %d findings, score %.2f",
			plan.framework.Code, len(outcome.synthesis.Findings), outcome.score),
		Metadata: map[string]any{
			"frameworkId":     plan.framework.ID,
			"frameworkCode":   plan.framework.Code,
			"durationMs":      run.DurationMs,
			"findingsCreated": len(outcome.synthesis.Findings),
			"evidenceCreated": len(outcome.synthesis.Evidence),
			"score":           outcome.score,
			"summary":         response.Summary,
		},
	})
}
