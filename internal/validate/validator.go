// Package validate enforces the strict schema and business rules on model
// output. Every call site receives a tagged valid/invalid result and must
// handle the invalid case explicitly; nothing here panics or throws.
package validate

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Intent is the closed set of permitted task intents.
type Intent string

const (
	IntentCreate   Intent = "create"
	IntentEdit     Intent = "edit"
	IntentComplete Intent = "complete"
)

// Bounds on stored strings.
const (
	MaxTaskNameLen        = 500
	MaxOriginalRequestLen = 2000
)

// ExtractedTask is one validated task from a model extraction.
type ExtractedTask struct {
	Intent       Intent
	TaskName     string
	DueDate      *time.Time
	TargetTaskID *uint
}

// Result is the outcome of validating one extraction output. Exactly one of
// Valid/invalid applies; Reason is set only when invalid.
type Result struct {
	Valid  bool
	Reason string
	Tasks  []ExtractedTask
}

func invalid(format string, args ...interface{}) Result {
	return Result{Reason: fmt.Sprintf(format, args...)}
}

// Validator validates external model output shapes.
type Validator struct{}

// New creates a Validator.
func New() *Validator {
	return &Validator{}
}

// Wire shapes. Unknown fields anywhere are a hard validation failure: this is
// the control that stops a model from smuggling in privilege-bearing fields
// such as an owner id.
type wireExtraction struct {
	Tasks []wireTask `json:"tasks"`
}

type wireTask struct {
	Intent       string `json:"intent"`
	TaskName     string `json:"taskName"`
	DueDate      string `json:"dueDate"`
	TargetTaskID *uint  `json:"targetTaskId"`
}

// Extraction validates the raw extraction output against the documented
// shape. Any schema or business-rule violation yields an invalid Result; the
// caller substitutes the safe fallback task.
func (v *Validator) Extraction(raw string) Result {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(raw)))
	dec.DisallowUnknownFields()

	var wire wireExtraction
	if err := dec.Decode(&wire); err != nil {
		return invalid("schema violation: %v", err)
	}
	if dec.More() {
		return invalid("schema violation: trailing content after object")
	}

	tasks := make([]ExtractedTask, 0, len(wire.Tasks))
	for i, wt := range wire.Tasks {
		task, res := v.task(wt)
		if res != "" {
			return invalid("task %d: %s", i, res)
		}
		tasks = append(tasks, task)
	}

	return Result{Valid: true, Tasks: tasks}
}

func (v *Validator) task(wt wireTask) (ExtractedTask, string) {
	intent := Intent(wt.Intent)
	switch intent {
	case IntentCreate, IntentEdit, IntentComplete:
	default:
		return ExtractedTask{}, fmt.Sprintf("disallowed intent %q", wt.Intent)
	}

	name := strings.TrimSpace(wt.TaskName)
	if name == "" {
		return ExtractedTask{}, "task name is empty"
	}
	if len([]rune(name)) > MaxTaskNameLen {
		return ExtractedTask{}, "task name exceeds length bound"
	}

	task := ExtractedTask{Intent: intent, TaskName: name}

	if wt.DueDate != "" {
		due, err := time.Parse("2006-01-02", wt.DueDate)
		if err != nil {
			return ExtractedTask{}, fmt.Sprintf("unparseable due date %q", wt.DueDate)
		}
		task.DueDate = &due
	}

	// Mutating intents require a concrete target; create must not carry one.
	if intent == IntentEdit || intent == IntentComplete {
		if wt.TargetTaskID == nil || *wt.TargetTaskID == 0 {
			return ExtractedTask{}, fmt.Sprintf("%s intent without a valid target identifier", intent)
		}
		task.TargetTaskID = wt.TargetTaskID
	} else if wt.TargetTaskID != nil {
		return ExtractedTask{}, "create intent with a target identifier"
	}

	return task, ""
}

// SafeFallback builds the deterministic review task used whenever validation
// fails or extraction produced no output. Intent is always create: unvalidated
// model output never touches an existing record.
func SafeFallback(sender, subject string) ExtractedTask {
	subject = strings.TrimSpace(subject)
	sender = strings.TrimSpace(sender)

	var name string
	switch {
	case sender != "" && subject != "":
		name = fmt.Sprintf("Review email from %s: %s", sender, subject)
	case subject != "":
		name = fmt.Sprintf("Review email: %s", subject)
	case sender != "":
		name = fmt.Sprintf("Review email from %s", sender)
	default:
		name = "Review email"
	}

	return ExtractedTask{Intent: IntentCreate, TaskName: TruncateWithEllipsis(name, MaxTaskNameLen)}
}

// OriginalRequest builds the stored raw context for a task: subject first,
// then body, truncated to the configured bound with a trailing ellipsis so
// the earliest (most relevant) content survives.
func OriginalRequest(subject, body string) string {
	combined := strings.TrimSpace(subject)
	body = strings.TrimSpace(body)
	if body != "" {
		if combined != "" {
			combined += "\n\n"
		}
		combined += body
	}
	return TruncateWithEllipsis(combined, MaxOriginalRequestLen)
}

// TruncateWithEllipsis truncates s to max runes, replacing the final rune
// with an ellipsis when truncation happens.
func TruncateWithEllipsis(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
