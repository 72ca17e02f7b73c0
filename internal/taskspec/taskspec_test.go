package taskspec

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseFullSpec(t *testing.T) {
	body := `
apiVersion: quasar/v1
kind: Task
task: sum
args: [1, 2, 3]
kwargs:
  scale: 2
dispatchId: run-7
taskId: "3"
`
	spec, err := Parse([]byte(body))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if spec.Task != "sum" {
		t.Errorf("task: %q", spec.Task)
	}
	if len(spec.Args) != 3 {
		t.Errorf("args: %v", spec.Args)
	}
	if spec.Kwargs["scale"] != 2 {
		t.Errorf("kwargs: %v", spec.Kwargs)
	}
	if spec.DispatchID != "run-7" || spec.TaskID != "3" {
		t.Errorf("ids: %q %q", spec.DispatchID, spec.TaskID)
	}
}

func TestParseMinimalSpec(t *testing.T) {
	spec, err := Parse([]byte("task: echo\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if spec.Task != "echo" {
		t.Errorf("task: %q", spec.Task)
	}
}

func TestParseRejections(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing task name", "kind: Task\nargs: [1]\n"},
		{"wrong kind", "kind: Deployment\ntask: echo\n"},
		{"not yaml", "task: [unclosed\n"},
	}
	for _, tc := range cases {
		if _, err := Parse([]byte(tc.body)); err == nil {
			t.Errorf("%s: expected parse error", tc.name)
		}
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "task.yaml")
	if err := os.WriteFile(path, []byte("task: echo\nargs: [hi]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	spec, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if spec.Task != "echo" || len(spec.Args) != 1 {
		t.Errorf("unexpected spec: %+v", spec)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
