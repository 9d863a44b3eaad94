package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
)

const maxJSONBodyBytes = 1 << 20

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type runCheckRequest struct {
	FrameworkID     string `json:"framework_id" validate:"required,max=64"`
	Model           string `json:"model" validate:"omitempty,max=128"`
	Language        string `json:"language" validate:"omitempty,min=2,max=16"`
	IncludeEvidence *bool  `json:"include_evidence"`
}

func (req runCheckRequest) options() domain.AnalysisOptions {
	includeEvidence := true
	if req.IncludeEvidence != nil {
		includeEvidence = *req.IncludeEvidence
	}
	return domain.AnalysisOptions{
		Model:           strings.TrimSpace(req.Model),
		Language:        strings.TrimSpace(req.Language),
		IncludeEvidence: includeEvidence,
	}
}

// workflowRequest distinguishes an absent field from an explicit null: null
// clears the assignee or due date.
type workflowRequest struct {
	WorkflowStatus *string         `json:"workflow_status" validate:"omitempty,oneof=Open InProgress Resolved Accepted FalsePositive"`
	AssignedTo     json.RawMessage `json:"assigned_to"`
	DueDate        json.RawMessage `json:"due_date"`
}

func (req workflowRequest) update() (domain.WorkflowUpdate, error) {
	var update domain.WorkflowUpdate
	if req.WorkflowStatus != nil {
		status := domain.WorkflowStatus(*req.WorkflowStatus)
		update.WorkflowStatus = &status
	}

	if len(req.AssignedTo) > 0 {
		if isJSONNull(req.AssignedTo) {
			update.ClearAssignee = true
		} else {
			var assignee string
			if err := json.Unmarshal(req.AssignedTo, &assignee); err != nil || strings.TrimSpace(assignee) == "" {
				return update, errors.New("assigned_to must be a non-empty string or null")
			}
			assignee = strings.TrimSpace(assignee)
			update.AssignedTo = &assignee
		}
	}

	if len(req.DueDate) > 0 {
		if isJSONNull(req.DueDate) {
			update.ClearDueDate = true
		} else {
			var raw string
			if err := json.Unmarshal(req.DueDate, &raw); err != nil {
				return update, errors.New("due_date must be an RFC 3339 timestamp, a date or null")
			}
			due, err := parseDate(raw)
			if err != nil {
				return update, fmt.Errorf("due_date: %w", err)
			}
			update.DueDate = &due
		}
	}

	if update.WorkflowStatus == nil && update.AssignedTo == nil && update.DueDate == nil && !update.ClearAssignee && !update.ClearDueDate {
		return update, errors.New("at least one of workflow_status, assigned_to, due_date is required")
	}
	return update, nil
}

func isJSONNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

// parseDate accepts RFC 3339 timestamps and plain dates.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", raw)
	}
	return t.UTC(), nil
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// Failures are returned as caller-facing messages.
func decodeAndValidate(r *http.Request, dst any) []string {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return []string{"request body is required"}
		}
		return []string{"invalid json: " + err.Error()}
	}
	return validationMessages(validate.Struct(dst))
}

func validationMessages(err error) []string {
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []string{err.Error()}
	}
	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		messages = append(messages, fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag()))
	}
	return messages
}
