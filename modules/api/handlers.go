package api

import (
	"github.com/example/task-tracker/domain/apperr"
	taskdomain "github.com/example/task-tracker/domain/task"
	domain "github.com/example/task-tracker/domain/user"
	"github.com/example/task-tracker/modules/account"
	"github.com/example/task-tracker/modules/activity"
	"github.com/example/task-tracker/modules/task"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
)

// Handlers contains HTTP handlers for the API.
type Handlers struct {
	accounts     account.AccountPort
	tasks        task.TaskPort
	activity     activity.ActivityPort
	logger       types.Logger
	secureCookie bool
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(accounts account.AccountPort, tasks task.TaskPort, activity activity.ActivityPort, logger types.Logger, secureCookie bool) *Handlers {
	return &Handlers{
		accounts:     accounts,
		tasks:        tasks,
		activity:     activity,
		logger:       logger,
		secureCookie: secureCookie,
	}
}

func invalidBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:   "bad_request",
		Message: "Invalid request body",
	})
}

// taskID reads the :id parameter. Anything that is not a positive integer
// is treated as an unknown task.
func taskID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, task.ErrTaskNotFound
	}
	return uint(id), nil
}

func currentToken(c *fiber.Ctx) string {
	token, _ := c.Locals(TokenContextKey).(string)
	return token
}

// Landing describes the application and whether the caller is signed in.
func (h *Handlers) Landing(c *fiber.Ctx) error {
	authenticated := false
	if token := sessionToken(c); token != "" {
		state, err := h.accounts.Resolve(c.UserContext(), token)
		if err != nil {
			return writeError(c, err, h.logger)
		}
		authenticated = state.IsAuthenticated()
	}

	return c.JSON(LandingResponse{
		Name:          "task-tracker",
		Authenticated: authenticated,
		Links: map[string]string{
			"register": "/register",
			"login":    "/login",
			"logout":   "/logout",
			"tasks":    "/tasks",
		},
	})
}

// RegisterForm describes the registration form.
func (h *Handlers) RegisterForm(c *fiber.Ctx) error {
	return c.JSON(FormDescriptor{
		Form:   "register",
		Method: fiber.MethodPost,
		Action: "/register",
		Fields: []string{"name", "email", "password"},
	})
}

// Register creates an account and sends the client to the login form.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var form RegisterForm
	if err := c.BodyParser(&form); err != nil {
		return invalidBody(c)
	}

	user, err := h.accounts.Register(c.UserContext(), form.Name, form.Email, form.Password)
	if err != nil {
		return writeError(c, err, h.logger)
	}

	h.logger.Info("Account created", "userID", user.ID)
	return c.Redirect("/login", fiber.StatusSeeOther)
}

// LoginForm describes the login form.
func (h *Handlers) LoginForm(c *fiber.Ctx) error {
	return c.JSON(FormDescriptor{
		Form:   "login",
		Method: fiber.MethodPost,
		Action: "/login",
		Fields: []string{"email", "password"},
	})
}

// Login opens a session, stores its token in the session cookie and sends
// the client to the task list.
func (h *Handlers) Login(c *fiber.Ctx) error {
	var form LoginForm
	if err := c.BodyParser(&form); err != nil {
		return invalidBody(c)
	}
	if form.Email == "" || form.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Email and password are required",
		})
	}

	session, err := h.accounts.Authenticate(c.UserContext(), form.Email, form.Password)
	if err != nil {
		return writeError(c, err, h.logger)
	}

	setSessionCookie(c, session.Token, session.ExpiresAt, h.secureCookie)
	return c.Redirect("/tasks", fiber.StatusSeeOther)
}

// Logout ends the current session.
func (h *Handlers) Logout(c *fiber.Ctx) error {
	if err := h.accounts.EndSession(c.UserContext(), currentToken(c)); err != nil {
		return writeError(c, err, h.logger)
	}

	clearSessionCookie(c)
	return c.Redirect("/login", fiber.StatusSeeOther)
}

// ListTasks returns the caller's tasks.
func (h *Handlers) ListTasks(c *fiber.Ctx) error {
	resp, err := h.tasks.ListTasks(c.UserContext(), currentToken(c))
	if err != nil {
		return writeError(c, err, h.logger)
	}

	user, _ := c.Locals(UserContextKey).(*domain.User)
	body := fiber.Map{
		"tasks": resp.Tasks,
		"total": resp.Total,
	}
	if user != nil {
		body["user"] = fiber.Map{"id": user.ID, "name": user.Name}
	}
	return c.JSON(body)
}

// CreateTask adds a task and sends the client back to the list.
func (h *Handlers) CreateTask(c *fiber.Ctx) error {
	var form TaskForm
	if err := c.BodyParser(&form); err != nil {
		return invalidBody(c)
	}

	if _, err := h.tasks.CreateTask(c.UserContext(), currentToken(c), form.Description, form.Category); err != nil {
		return writeError(c, err, h.logger)
	}
	return c.Redirect("/tasks", fiber.StatusSeeOther)
}

// DeleteTask removes a task and sends the client back to the list.
func (h *Handlers) DeleteTask(c *fiber.Ctx) error {
	id, err := taskID(c)
	if err != nil {
		return writeError(c, err, h.logger)
	}

	if err := h.tasks.DeleteTask(c.UserContext(), currentToken(c), id); err != nil {
		return writeError(c, err, h.logger)
	}
	return c.Redirect("/tasks", fiber.StatusSeeOther)
}

// GetTask returns a task for editing along with the allowed statuses.
func (h *Handlers) GetTask(c *fiber.Ctx) error {
	id, err := taskID(c)
	if err != nil {
		return writeError(c, err, h.logger)
	}

	resp, err := h.tasks.GetTask(c.UserContext(), currentToken(c), id)
	if err != nil {
		return writeError(c, err, h.logger)
	}

	return c.JSON(fiber.Map{
		"task": resp,
		"form": FormDescriptor{
			Form:    "update",
			Method:  fiber.MethodPost,
			Action:  c.Path(),
			Fields:  []string{"description", "category", "status"},
			Options: statusOptions(),
		},
	})
}

// UpdateTask replaces a task's fields and sends the client back to the list.
func (h *Handlers) UpdateTask(c *fiber.Ctx) error {
	id, err := taskID(c)
	if err != nil {
		return writeError(c, err, h.logger)
	}

	var form TaskForm
	if err := c.BodyParser(&form); err != nil {
		return invalidBody(c)
	}

	_, err = h.tasks.UpdateTask(c.UserContext(), &task.UpdateTaskRequest{
		Token:       currentToken(c),
		TaskID:      id,
		Description: form.Description,
		Category:    form.Category,
		Status:      form.Status,
	})
	if err != nil {
		return writeError(c, err, h.logger)
	}
	return c.Redirect("/tasks", fiber.StatusSeeOther)
}

// ListActivity returns the lifecycle events recorded for the caller's tasks.
func (h *Handlers) ListActivity(c *fiber.Ctx) error {
	user, ok := c.Locals(UserContextKey).(*domain.User)
	if !ok || user == nil {
		return writeError(c, apperr.ErrUnauthenticated, h.logger)
	}

	resp, err := h.activity.ListActivity(c.UserContext(), user.ID)
	if err != nil {
		return writeError(c, err, h.logger)
	}
	return c.JSON(resp)
}

func statusOptions() []string {
	options := make([]string, 0, len(taskdomain.Statuses))
	for _, s := range taskdomain.Statuses {
		options = append(options, string(s))
	}
	return options
}

// Health reports that the HTTP surface is up.
func (h *Handlers) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"module": "api",
	})
}
