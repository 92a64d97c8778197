package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractionValid(t *testing.T) {
	v := New()

	res := v.Extraction(`{"tasks": [{"intent": "create", "taskName": "Buy milk", "dueDate": "2026-09-15"}]}`)
	require.True(t, res.Valid, res.Reason)
	require.Len(t, res.Tasks, 1)
	assert.Equal(t, IntentCreate, res.Tasks[0].Intent)
	assert.Equal(t, "Buy milk", res.Tasks[0].TaskName)
	require.NotNil(t, res.Tasks[0].DueDate)
	assert.Equal(t, "2026-09-15", res.Tasks[0].DueDate.Format("2006-01-02"))
}

func TestExtractionMultipleTasks(t *testing.T) {
	v := New()

	res := v.Extraction(`{"tasks": [
		{"intent": "create", "taskName": "First"},
		{"intent": "complete", "taskName": "Second", "targetTaskId": 7}
	]}`)
	require.True(t, res.Valid, res.Reason)
	require.Len(t, res.Tasks, 2)
	assert.Equal(t, IntentComplete, res.Tasks[1].Intent)
	require.NotNil(t, res.Tasks[1].TargetTaskID)
	assert.Equal(t, uint(7), *res.Tasks[1].TargetTaskID)
}

func TestExtractionUnknownFieldRejected(t *testing.T) {
	v := New()

	// A privilege-bearing field injected by the model must hard-fail.
	res := v.Extraction(`{"tasks": [{"intent": "create", "taskName": "x", "ownerId": 99}]}`)
	assert.False(t, res.Valid)

	res = v.Extraction(`{"tasks": [], "ownerId": 99}`)
	assert.False(t, res.Valid)
}

func TestExtractionMissingNameRejected(t *testing.T) {
	v := New()

	res := v.Extraction(`{"tasks": [{"intent": "create"}]}`)
	assert.False(t, res.Valid)

	res = v.Extraction(`{"tasks": [{"intent": "create", "taskName": "   "}]}`)
	assert.False(t, res.Valid)
}

func TestExtractionDisallowedIntentRejected(t *testing.T) {
	v := New()

	res := v.Extraction(`{"tasks": [{"intent": "delete", "taskName": "x"}]}`)
	assert.False(t, res.Valid)
}

func TestExtractionEditWithoutTargetRejected(t *testing.T) {
	v := New()

	res := v.Extraction(`{"tasks": [{"intent": "edit", "taskName": "x"}]}`)
	assert.False(t, res.Valid)

	res = v.Extraction(`{"tasks": [{"intent": "edit", "taskName": "x", "targetTaskId": 0}]}`)
	assert.False(t, res.Valid)
}

func TestExtractionCreateWithTargetRejected(t *testing.T) {
	v := New()

	res := v.Extraction(`{"tasks": [{"intent": "create", "taskName": "x", "targetTaskId": 3}]}`)
	assert.False(t, res.Valid)
}

func TestExtractionNotJSONRejected(t *testing.T) {
	v := New()

	assert.False(t, v.Extraction("Sure! Here are the tasks:").Valid)
	assert.False(t, v.Extraction(`{"tasks": []} trailing`).Valid)
	assert.False(t, v.Extraction("").Valid)
}

func TestExtractionOverlongNameRejected(t *testing.T) {
	v := New()

	name := strings.Repeat("a", MaxTaskNameLen+1)
	res := v.Extraction(`{"tasks": [{"intent": "create", "taskName": "` + name + `"}]}`)
	assert.False(t, res.Valid)
}

func TestSafeFallbackNaming(t *testing.T) {
	task := SafeFallback("alice@example.com", "Quarterly report")
	assert.Equal(t, IntentCreate, task.Intent)
	assert.Equal(t, "Review email from alice@example.com: Quarterly report", task.TaskName)
	assert.Nil(t, task.TargetTaskID)

	task = SafeFallback("", "Quarterly report")
	assert.Equal(t, "Review email: Quarterly report", task.TaskName)

	task = SafeFallback("", "")
	assert.Equal(t, "Review email", task.TaskName)
}

func TestSafeFallbackBoundedName(t *testing.T) {
	task := SafeFallback("a@b.c", strings.Repeat("S", 2*MaxTaskNameLen))
	assert.LessOrEqual(t, len([]rune(task.TaskName)), MaxTaskNameLen)
	assert.True(t, strings.HasSuffix(task.TaskName, "…"))
}

func TestOriginalRequestTruncation(t *testing.T) {
	subject := strings.Repeat("S", 30000)
	body := strings.Repeat("B", 30000)

	stored := OriginalRequest(subject, body)
	runes := []rune(stored)

	assert.LessOrEqual(t, len(runes), MaxOriginalRequestLen)
	assert.Equal(t, '…', runes[len(runes)-1])
	assert.True(t, strings.HasPrefix(stored, "SSSS"), "subject content must come first")
}

func TestOriginalRequestShortContentUntouched(t *testing.T) {
	stored := OriginalRequest("Subject line", "Body text")
	assert.Equal(t, "Subject line\n\nBody text", stored)
}
