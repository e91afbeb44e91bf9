package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/example/task-tracker/domain/apperr"
	domain "github.com/example/task-tracker/domain/user"
	"github.com/example/task-tracker/middleware/ratelimit"
	"github.com/example/task-tracker/modules/activity"
	"github.com/example/task-tracker/modules/task"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTaskPort implements task.TaskPort for testing
type mockTaskPort struct {
	createFunc func(ctx context.Context, token, description, category string) (*task.TaskResponse, error)
	listFunc   func(ctx context.Context, token string) (*task.ListTasksResponse, error)
	getFunc    func(ctx context.Context, token string, id uint) (*task.TaskResponse, error)
	updateFunc func(ctx context.Context, req *task.UpdateTaskRequest) (*task.TaskResponse, error)
	deleteFunc func(ctx context.Context, token string, id uint) error
}

func (m *mockTaskPort) CreateTask(ctx context.Context, token, description, category string) (*task.TaskResponse, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, token, description, category)
	}
	return nil, errors.New("not implemented")
}

func (m *mockTaskPort) ListTasks(ctx context.Context, token string) (*task.ListTasksResponse, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, token)
	}
	return &task.ListTasksResponse{Tasks: []task.TaskResponse{}}, nil
}

func (m *mockTaskPort) GetTask(ctx context.Context, token string, id uint) (*task.TaskResponse, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, token, id)
	}
	return nil, errors.New("not implemented")
}

func (m *mockTaskPort) UpdateTask(ctx context.Context, req *task.UpdateTaskRequest) (*task.TaskResponse, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockTaskPort) DeleteTask(ctx context.Context, token string, id uint) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, token, id)
	}
	return errors.New("not implemented")
}

// mockActivityPort implements activity.ActivityPort for testing
type mockActivityPort struct {
	listFunc func(ctx context.Context, ownerID uint) (*activity.ListActivityResponse, error)
}

func (m *mockActivityPort) ListActivity(ctx context.Context, ownerID uint) (*activity.ListActivityResponse, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, ownerID)
	}
	return &activity.ListActivityResponse{Entries: []activity.Entry{}}, nil
}

// deniedLimiter refuses every request.
type deniedLimiter struct{}

func (deniedLimiter) Allow(_ context.Context, _ string) (*ratelimit.Result, error) {
	return &ratelimit.Result{Allowed: false, RetryAfter: time.Minute, ResetAt: time.Now().Add(time.Minute)}, nil
}

var ana = &domain.User{ID: 1, Name: "Ana", Email: "ana@x.io"}

func testApp(accounts *mockAccountPort, tasks *mockTaskPort, throttle fiber.Handler) *fiber.App {
	return newApp(NewHandlers(accounts, tasks, &mockActivityPort{}, &nopLogger{}, false), throttle, &nopLogger{})
}

func formRequest(method, target string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", fiber.MIMEApplicationForm)
	return req
}

func withSession(req *http.Request, token string) *http.Request {
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	return req
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, v), string(body))
}

func TestLanding(t *testing.T) {
	app := testApp(signedIn("tok", ana), &mockTaskPort{}, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	var anon LandingResponse
	decode(t, resp, &anon)
	assert.False(t, anon.Authenticated)
	assert.Equal(t, "/register", anon.Links["register"])

	resp, err = app.Test(withSession(httptest.NewRequest("GET", "/", nil), "tok"))
	require.NoError(t, err)
	var signed LandingResponse
	decode(t, resp, &signed)
	assert.True(t, signed.Authenticated)
}

func TestForms(t *testing.T) {
	app := testApp(&mockAccountPort{}, &mockTaskPort{}, nil)

	for path, fields := range map[string][]string{
		"/register": {"name", "email", "password"},
		"/login":    {"email", "password"},
	} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		var form FormDescriptor
		decode(t, resp, &form)
		assert.Equal(t, path, form.Action)
		assert.Equal(t, fiber.MethodPost, form.Method)
		assert.Equal(t, fields, form.Fields)
	}
}

func TestRegister(t *testing.T) {
	var got []string
	accounts := &mockAccountPort{
		registerFunc: func(ctx context.Context, name, email, password string) (*domain.User, error) {
			got = []string{name, email, password}
			if email == "taken@x.io" {
				return nil, fmt.Errorf("register request failed: %w", apperr.ErrDuplicateEmail)
			}
			if name == "" {
				return nil, fmt.Errorf("%w: name is required", apperr.ErrValidation)
			}
			return &domain.User{ID: 1, Name: name, Email: email}, nil
		},
	}
	app := testApp(accounts, &mockTaskPort{}, nil)

	t.Run("form body redirects to login", func(t *testing.T) {
		resp, err := app.Test(formRequest("POST", "/register", url.Values{
			"name": {"Ana"}, "email": {"ana@x.io"}, "password": {"pw1"},
		}))
		require.NoError(t, err)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/login", resp.Header.Get("Location"))
		assert.Equal(t, []string{"Ana", "ana@x.io", "pw1"}, got)
	})

	t.Run("json body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/register", strings.NewReader(`{"name":"Bo","email":"bo@x.io","password":"pw2"}`))
		req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, []string{"Bo", "bo@x.io", "pw2"}, got)
	})

	t.Run("duplicate email", func(t *testing.T) {
		resp, err := app.Test(formRequest("POST", "/register", url.Values{
			"name": {"Ana"}, "email": {"taken@x.io"}, "password": {"pw1"},
		}))
		require.NoError(t, err)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("missing name", func(t *testing.T) {
		resp, err := app.Test(formRequest("POST", "/register", url.Values{
			"email": {"ana@x.io"}, "password": {"pw1"},
		}))
		require.NoError(t, err)
		var body ErrorResponse
		decode(t, resp, &body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body.Message, "name is required")
	})

	t.Run("unparseable body", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("POST", "/register", strings.NewReader("x")))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestLogin(t *testing.T) {
	expires := time.Now().Add(time.Hour)
	accounts := &mockAccountPort{
		authenticateFunc: func(ctx context.Context, email, password string) (*domain.SessionToken, error) {
			if email != "ana@x.io" || password != "pw1" {
				return nil, fmt.Errorf("authenticate request failed: %w", apperr.ErrInvalidCredentials)
			}
			return &domain.SessionToken{Token: "tok", ExpiresAt: expires}, nil
		},
	}

	t.Run("sets session cookie", func(t *testing.T) {
		app := testApp(accounts, &mockTaskPort{}, nil)
		resp, err := app.Test(formRequest("POST", "/login", url.Values{"email": {"ana@x.io"}, "password": {"pw1"}}))
		require.NoError(t, err)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/tasks", resp.Header.Get("Location"))

		cookie := resp.Header.Get("Set-Cookie")
		assert.Contains(t, cookie, SessionCookie+"=tok")
		assert.Contains(t, strings.ToLower(cookie), "httponly")
	})

	t.Run("wrong password", func(t *testing.T) {
		app := testApp(accounts, &mockTaskPort{}, nil)
		resp, err := app.Test(formRequest("POST", "/login", url.Values{"email": {"ana@x.io"}, "password": {"nope"}}))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Empty(t, resp.Header.Get("Set-Cookie"))
	})

	t.Run("missing fields", func(t *testing.T) {
		app := testApp(accounts, &mockTaskPort{}, nil)
		resp, err := app.Test(formRequest("POST", "/login", url.Values{"email": {"ana@x.io"}}))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("throttled", func(t *testing.T) {
		app := testApp(accounts, &mockTaskPort{}, ratelimit.ByIP(deniedLimiter{}, 5, &nopLogger{}))
		resp, err := app.Test(formRequest("POST", "/login", url.Values{"email": {"ana@x.io"}, "password": {"pw1"}}))
		require.NoError(t, err)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Empty(t, resp.Header.Get("Set-Cookie"))

		// The forms stay reachable.
		resp, err = app.Test(httptest.NewRequest("GET", "/login", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestLogout(t *testing.T) {
	var ended string
	accounts := signedIn("tok", ana)
	accounts.endSessionFunc = func(ctx context.Context, token string) error {
		ended = token
		return nil
	}
	app := testApp(accounts, &mockTaskPort{}, nil)

	resp, err := app.Test(withSession(httptest.NewRequest("GET", "/logout", nil), "tok"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.Equal(t, "tok", ended)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Set-Cookie"), SessionCookie+"=;"))

	resp, err = app.Test(httptest.NewRequest("GET", "/logout", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTasksRequireSession(t *testing.T) {
	app := testApp(signedIn("tok", ana), &mockTaskPort{}, nil)

	for _, tc := range []struct{ method, path string }{
		{"GET", "/tasks"},
		{"POST", "/tasks"},
		{"GET", "/update/1"},
		{"POST", "/update/1"},
		{"GET", "/delete/1"},
		{"GET", "/activity"},
	} {
		resp, err := app.Test(httptest.NewRequest(tc.method, tc.path, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", tc.method, tc.path)
	}
}

func TestListTasks(t *testing.T) {
	tasks := &mockTaskPort{
		listFunc: func(ctx context.Context, token string) (*task.ListTasksResponse, error) {
			assert.Equal(t, "tok", token)
			return &task.ListTasksResponse{
				Tasks: []task.TaskResponse{{ID: 3, Description: "Write report", Category: "Work", Status: "Todo", OwnerID: 1}},
				Total: 1,
			}, nil
		},
	}
	app := testApp(signedIn("tok", ana), tasks, nil)

	resp, err := app.Test(withSession(httptest.NewRequest("GET", "/tasks", nil), "tok"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Tasks []task.TaskResponse `json:"tasks"`
		Total int                 `json:"total"`
		User  struct {
			ID   uint   `json:"id"`
			Name string `json:"name"`
		} `json:"user"`
	}
	decode(t, resp, &body)
	require.Len(t, body.Tasks, 1)
	assert.Equal(t, "Write report", body.Tasks[0].Description)
	assert.Equal(t, 1, body.Total)
	assert.Equal(t, "Ana", body.User.Name)
}

func TestCreateTask(t *testing.T) {
	var got []string
	tasks := &mockTaskPort{
		createFunc: func(ctx context.Context, token, description, category string) (*task.TaskResponse, error) {
			got = []string{token, description, category}
			if description == "" {
				return nil, fmt.Errorf("%w: description is required", apperr.ErrValidation)
			}
			return &task.TaskResponse{ID: 1, Description: description, Category: category, Status: "Todo"}, nil
		},
	}
	app := testApp(signedIn("tok", ana), tasks, nil)

	resp, err := app.Test(withSession(formRequest("POST", "/tasks", url.Values{
		"description": {"Write report"}, "category": {"Work"},
	}), "tok"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/tasks", resp.Header.Get("Location"))
	assert.Equal(t, []string{"tok", "Write report", "Work"}, got)

	resp, err = app.Test(withSession(formRequest("POST", "/tasks", url.Values{"category": {"Work"}}), "tok"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetTask(t *testing.T) {
	tasks := &mockTaskPort{
		getFunc: func(ctx context.Context, token string, id uint) (*task.TaskResponse, error) {
			if id != 3 {
				return nil, task.ErrTaskNotFound
			}
			return &task.TaskResponse{ID: 3, Description: "Write report", Status: "Doing"}, nil
		},
	}
	app := testApp(signedIn("tok", ana), tasks, nil)

	resp, err := app.Test(withSession(httptest.NewRequest("GET", "/update/3", nil), "tok"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Task task.TaskResponse `json:"task"`
		Form FormDescriptor    `json:"form"`
	}
	decode(t, resp, &body)
	assert.Equal(t, "Doing", body.Task.Status)
	assert.Equal(t, "/update/3", body.Form.Action)
	assert.Equal(t, []string{"Todo", "Doing", "Done"}, body.Form.Options)

	resp, err = app.Test(withSession(httptest.NewRequest("GET", "/update/4", nil), "tok"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateTask(t *testing.T) {
	var got *task.UpdateTaskRequest
	tasks := &mockTaskPort{
		updateFunc: func(ctx context.Context, req *task.UpdateTaskRequest) (*task.TaskResponse, error) {
			got = req
			switch {
			case req.TaskID != 3:
				return nil, apperr.FromRemote(errors.New("update-task request failed: task resource not found"))
			case req.Status != "Todo" && req.Status != "Doing" && req.Status != "Done":
				return nil, fmt.Errorf("%w: %q", apperr.ErrInvalidStatus, req.Status)
			}
			return &task.TaskResponse{ID: req.TaskID, Status: req.Status}, nil
		},
	}
	app := testApp(signedIn("tok", ana), tasks, nil)

	tests := []struct {
		name           string
		path           string
		status         string
		expectedStatus int
	}{
		{name: "done", path: "/update/3", status: "Done", expectedStatus: http.StatusSeeOther},
		{name: "invalid status", path: "/update/3", status: "Paused", expectedStatus: http.StatusUnprocessableEntity},
		{name: "unknown task", path: "/update/9", status: "Done", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(withSession(formRequest("POST", tt.path, url.Values{
				"description": {"Write report"}, "category": {"Work"}, "status": {tt.status},
			}), "tok"))
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			require.NotNil(t, got)
			assert.Equal(t, "tok", got.Token)
			assert.Equal(t, tt.status, got.Status)
		})
	}
}

func TestDeleteTask(t *testing.T) {
	var deleted []uint
	tasks := &mockTaskPort{
		deleteFunc: func(ctx context.Context, token string, id uint) error {
			if id != 3 {
				return task.ErrTaskNotFound
			}
			deleted = append(deleted, id)
			return nil
		},
	}
	app := testApp(signedIn("tok", ana), tasks, nil)

	tests := []struct {
		path           string
		expectedStatus int
	}{
		{"/delete/3", http.StatusSeeOther},
		{"/delete/4", http.StatusNotFound},
		{"/delete/abc", http.StatusNotFound},
		{"/delete/0", http.StatusNotFound},
		{"/delete/-2", http.StatusNotFound},
	}

	for _, tt := range tests {
		resp, err := app.Test(withSession(httptest.NewRequest("GET", tt.path, nil), "tok"))
		require.NoError(t, err)
		assert.Equal(t, tt.expectedStatus, resp.StatusCode, tt.path)
	}
	assert.Equal(t, []uint{3}, deleted)
}

func TestListActivity(t *testing.T) {
	var asked uint
	trail := &mockActivityPort{
		listFunc: func(ctx context.Context, ownerID uint) (*activity.ListActivityResponse, error) {
			asked = ownerID
			return &activity.ListActivityResponse{
				Entries: []activity.Entry{{Event: "TaskCreated", TaskID: 3, OwnerID: ownerID, Detail: "Write report"}},
				Total:   1,
			}, nil
		},
	}
	app := newApp(NewHandlers(signedIn("tok", ana), &mockTaskPort{}, trail, &nopLogger{}, false), nil, &nopLogger{})

	resp, err := app.Test(withSession(httptest.NewRequest("GET", "/activity", nil), "tok"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body activity.ListActivityResponse
	decode(t, resp, &body)
	assert.Equal(t, ana.ID, asked)
	require.Len(t, body.Entries, 1)
	assert.Equal(t, "TaskCreated", body.Entries[0].Event)
}

func TestHealth(t *testing.T) {
	app := testApp(&mockAccountPort{}, &mockTaskPort{}, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
