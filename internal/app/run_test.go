package app

import "testing"

func TestNewRun(t *testing.T) {
	tests := []struct {
		name       string
		operation  string
		parameters string
	}{
		{
			name:       "with parameters",
			operation:  "Execute",
			parameters: "plan-42",
		},
		{
			name:       "empty parameters",
			operation:  "Scan",
			parameters: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := NewRun(tt.operation, tt.parameters)

			if run.Operation != tt.operation {
				t.Errorf("Operation = %q, want %q", run.Operation, tt.operation)
			}
			if run.Parameters != tt.parameters {
				t.Errorf("Parameters = %q, want %q", run.Parameters, tt.parameters)
			}
			if run.Status != "success" {
				t.Errorf("Status = %q, want %q", run.Status, "success")
			}
			if run.ID != 0 {
				t.Errorf("ID = %d, want 0", run.ID)
			}
		})
	}
}

func TestRun_Persisted(t *testing.T) {
	tests := []struct {
		name string
		id   int64
		want bool
	}{
		{name: "not persisted when ID is 0", id: 0, want: false},
		{name: "persisted when ID is positive", id: 1, want: true},
		{name: "persisted when ID is large", id: 99999, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := &Run{ID: tt.id}
			if got := run.Persisted(); got != tt.want {
				t.Errorf("Persisted() = %v, want %v", got, tt.want)
			}
		})
	}
}
