package api

import (
	"testing"

	"github.com/clintjedwards/gofer/internal/models"
	"github.com/google/go-cmp/cmp"
)

func TestMergeMaps(t *testing.T) {
	first := map[string]string{"test1": "value1", "test2": "value2", "test3": "value3"}
	second := map[string]string{"test1": "value"}
	third := map[string]string{"test2": "valuethird"}

	expected := map[string]string{"test1": "value", "test2": "valuethird", "test3": "value3"}

	if diff := cmp.Diff(expected, mergeMaps(first, second, third)); diff != "" {
		t.Errorf("unexpected map values (-want +got):\n%s", diff)
	}
}

func TestParseInterpolationSyntax(t *testing.T) {
	tests := map[string]struct {
		kind       string
		value      string
		expected   string
		expectedOk bool
	}{
		"pipeline_secret": {kind: "pipeline_secret", value: "pipeline_secret{{example}}", expected: "example", expectedOk: true},
		"global_secret":   {kind: "global_secret", value: "global_secret{{example}}", expected: "example", expectedOk: true},
		"pipeline_object": {kind: "pipeline_object", value: "pipeline_object{{example}}", expected: "example", expectedOk: true},
		"run_object":      {kind: "run_object", value: "run_object{{example}}", expected: "example", expectedOk: true},
		"padded_key":      {kind: "pipeline_secret", value: "pipeline_secret{{ example }}", expected: "example", expectedOk: true},
		"incorrect_kind":  {kind: "pipeline_secret", value: "run_object{{example}}", expected: "run_object{{example}}", expectedOk: false},
		"normal_value":    {kind: "pipeline_secret", value: "normal_value", expected: "normal_value", expectedOk: false},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			result, ok := parseInterpolationSyntax(test.kind, test.value)

			if result != test.expected {
				t.Errorf("incorrect interpolation result; want %s got %s", test.expected, result)
			}

			if ok != test.expectedOk {
				t.Errorf("incorrect interpolation match; want %t got %t", test.expectedOk, ok)
			}
		})
	}
}

func TestCombineVariables(t *testing.T) {
	apictx := &APIContext{}

	run := &models.Run{
		PipelineID: "test_pipeline",
		RunID:      1,
		Variables: []models.Variable{
			{Key: "from_run", Value: "run_value", Source: models.VariableSourceRunOptions},
			{Key: "shared", Value: "run_wins", Source: models.VariableSourceRunOptions},
		},
	}

	task := &models.Task{
		ID:    "test_task",
		Image: "ubuntu:latest",
		Variables: []models.Variable{
			{Key: "from_task", Value: "task_value", Source: models.VariableSourcePipelineConfig},
			{Key: "SHARED", Value: "task_loses", Source: models.VariableSourcePipelineConfig},
			{Key: "GOFER_TASK_ID", Value: "overridden", Source: models.VariableSourcePipelineConfig},
		},
	}

	result := apictx.combineVariables(run, task)

	// The resolved list is persisted as-is, so it must come back sorted by key.
	expected := []models.Variable{
		{Key: "FROM_RUN", Value: "run_value", Source: models.VariableSourceRunOptions},
		{Key: "FROM_TASK", Value: "task_value", Source: models.VariableSourcePipelineConfig},
		{Key: "GOFER_PIPELINE_ID", Value: "test_pipeline", Source: models.VariableSourceSystem},
		{Key: "GOFER_RUN_ID", Value: "1", Source: models.VariableSourceSystem},
		{Key: "GOFER_TASK_ID", Value: "overridden", Source: models.VariableSourcePipelineConfig},
		{Key: "GOFER_TASK_IMAGE", Value: "ubuntu:latest", Source: models.VariableSourceSystem},
		{Key: "SHARED", Value: "run_wins", Source: models.VariableSourceRunOptions},
	}

	if diff := cmp.Diff(expected, result); diff != "" {
		t.Errorf("unexpected combined variables (-want +got):\n%s", diff)
	}
}
