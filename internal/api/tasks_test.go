package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/fishcontrol/fishcontrol-core/internal/task"
)

func feedTask() task.Task {
	return task.Task{
		Name: "Morning Feed",
		Steps: []task.Step{
			{
				Actions: task.Actions{
					task.Direct{DeviceID: "pump1", Kind: task.KindPower, Value: 60, Duration: 5 * time.Second},
				},
			},
		},
	}
}

func createTask(t *testing.T, env *testEnv) task.Task {
	t.Helper()
	var created task.Task
	if status := env.do(t, http.MethodPost, "/api/v1/tasks", feedTask(), &created); status != http.StatusCreated {
		t.Fatalf("create task status = %d, want 201", status)
	}
	if created.ID == "" {
		t.Fatal("task ID not generated")
	}
	return created
}

func TestTaskCreateAndGet(t *testing.T) {
	env := newTestEnv(t)
	created := createTask(t, env)

	var got task.Task
	if status := env.do(t, http.MethodGet, "/api/v1/tasks/"+created.ID, nil, &got); status != http.StatusOK {
		t.Fatalf("get status = %d, want 200", status)
	}
	if got.Name != "Morning Feed" {
		t.Errorf("name = %q, want Morning Feed", got.Name)
	}
	if len(got.Steps) != 1 {
		t.Fatalf("steps = %d, want 1", len(got.Steps))
	}
	direct, ok := got.Steps[0].Actions[0].(task.Direct)
	if !ok {
		t.Fatalf("action type = %T, want Direct", got.Steps[0].Actions[0])
	}
	if direct.DeviceID != "pump1" || direct.Value != 60 {
		t.Errorf("direct = %+v, round trip corrupted the action", direct)
	}
}

func TestTaskCreateInvalid(t *testing.T) {
	env := newTestEnv(t)

	bad := feedTask()
	bad.Name = ""
	if status := env.do(t, http.MethodPost, "/api/v1/tasks", bad, nil); status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
}

func TestTaskList(t *testing.T) {
	env := newTestEnv(t)
	createTask(t, env)

	var got struct {
		Tasks []task.Task `json:"tasks"`
		Count int         `json:"count"`
	}
	if status := env.do(t, http.MethodGet, "/api/v1/tasks", nil, &got); status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if got.Count != 1 {
		t.Errorf("count = %d, want 1", got.Count)
	}
}

func TestTaskUpdate(t *testing.T) {
	env := newTestEnv(t)
	created := createTask(t, env)

	var updated task.Task
	status := env.do(t, http.MethodPatch, "/api/v1/tasks/"+created.ID,
		map[string]any{"name": "Evening Feed"}, &updated)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if updated.Name != "Evening Feed" {
		t.Errorf("name = %q, want Evening Feed", updated.Name)
	}
	if len(updated.Steps) != 1 {
		t.Error("steps must survive a partial update")
	}
}

func TestTaskDelete(t *testing.T) {
	env := newTestEnv(t)
	created := createTask(t, env)

	if status := env.do(t, http.MethodDelete, "/api/v1/tasks/"+created.ID, nil, nil); status != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", status)
	}
	if status := env.do(t, http.MethodGet, "/api/v1/tasks/"+created.ID, nil, nil); status != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", status)
	}
}

func TestTaskExportImport(t *testing.T) {
	env := newTestEnv(t)
	createTask(t, env)

	var exported TaskExport
	if status := env.do(t, http.MethodGet, "/api/v1/tasks/export", nil, &exported); status != http.StatusOK {
		t.Fatalf("export status = %d, want 200", status)
	}
	if len(exported.Tasks) != 1 {
		t.Fatalf("exported %d tasks, want 1", len(exported.Tasks))
	}

	fresh := newTestEnv(t)
	var imp struct {
		Imported int `json:"imported"`
	}
	if status := fresh.do(t, http.MethodPost, "/api/v1/tasks/import", exported, &imp); status != http.StatusOK {
		t.Fatalf("import status = %d, want 200", status)
	}
	if imp.Imported != 1 {
		t.Errorf("imported = %d, want 1", imp.Imported)
	}

	// Importing the same document again updates in place.
	if status := fresh.do(t, http.MethodPost, "/api/v1/tasks/import", exported, &imp); status != http.StatusOK {
		t.Fatalf("re-import status = %d, want 200", status)
	}
	var list struct {
		Count int `json:"count"`
	}
	fresh.do(t, http.MethodGet, "/api/v1/tasks", nil, &list)
	if list.Count != 1 {
		t.Errorf("count after re-import = %d, want 1", list.Count)
	}
}
