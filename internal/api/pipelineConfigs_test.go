package api

import (
	"strings"
	"testing"

	"github.com/clintjedwards/gofer/internal/models"
)

func TestValidateIdentifier(t *testing.T) {
	tests := map[string]struct {
		value   string
		wantErr bool
	}{
		"simple":         {value: "my_pipeline", wantErr: false},
		"alphanumeric":   {value: "pipeline123", wantErr: false},
		"too_short":      {value: "ab", wantErr: true},
		"too_long":       {value: strings.Repeat("a", 71), wantErr: true},
		"dashes":         {value: "my-pipeline", wantErr: true},
		"spaces":         {value: "my pipeline", wantErr: true},
		"special_charas": {value: "my$pipeline", wantErr: true},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := validateIdentifier("id", test.value)
			if (err != nil) != test.wantErr {
				t.Errorf("validateIdentifier(%q) error = %v; wantErr %t", test.value, err, test.wantErr)
			}
		})
	}
}

func TestValidateTaskDAGSimple(t *testing.T) {
	tasks := map[string]models.Task{
		"first":  {ID: "first"},
		"second": {ID: "second", DependsOn: map[string]models.RequiredParentStatus{"first": models.RequiredParentStatusSuccess}},
		"third":  {ID: "third", DependsOn: map[string]models.RequiredParentStatus{"second": models.RequiredParentStatusAny}},
	}

	err := validateTaskDAG(tasks)
	if err != nil {
		t.Errorf("unexpected error for valid task graph: %v", err)
	}
}

func TestValidateTaskDAGFanOutFanIn(t *testing.T) {
	tasks := map[string]models.Task{
		"root": {ID: "root"},
		"left": {ID: "left", DependsOn: map[string]models.RequiredParentStatus{"root": models.RequiredParentStatusSuccess}},
		"right": {ID: "right", DependsOn: map[string]models.RequiredParentStatus{
			"root": models.RequiredParentStatusSuccess,
		}},
		"join": {ID: "join", DependsOn: map[string]models.RequiredParentStatus{
			"left":  models.RequiredParentStatusSuccess,
			"right": models.RequiredParentStatusAny,
		}},
	}

	err := validateTaskDAG(tasks)
	if err != nil {
		t.Errorf("unexpected error for valid task graph: %v", err)
	}
}

func TestValidateTaskDAGCycle(t *testing.T) {
	tasks := map[string]models.Task{
		"first":  {ID: "first", DependsOn: map[string]models.RequiredParentStatus{"third": models.RequiredParentStatusAny}},
		"second": {ID: "second", DependsOn: map[string]models.RequiredParentStatus{"first": models.RequiredParentStatusSuccess}},
		"third":  {ID: "third", DependsOn: map[string]models.RequiredParentStatus{"second": models.RequiredParentStatusSuccess}},
	}

	err := validateTaskDAG(tasks)
	if err == nil {
		t.Error("expected error for cyclic task graph, got nil")
	}
}

func TestValidateTaskDAGSelfReference(t *testing.T) {
	tasks := map[string]models.Task{
		"first": {ID: "first", DependsOn: map[string]models.RequiredParentStatus{"first": models.RequiredParentStatusSuccess}},
	}

	err := validateTaskDAG(tasks)
	if err == nil {
		t.Error("expected error for self referencing task, got nil")
	}
}

func TestValidateTaskDAGMissingParent(t *testing.T) {
	tasks := map[string]models.Task{
		"first": {ID: "first", DependsOn: map[string]models.RequiredParentStatus{"ghost": models.RequiredParentStatusSuccess}},
	}

	err := validateTaskDAG(tasks)
	if err == nil {
		t.Error("expected error for dependency on nonexistent task, got nil")
	}
}
