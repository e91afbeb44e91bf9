package api

// RegisterForm is the body of POST /register.
type RegisterForm struct {
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// LoginForm is the body of POST /login.
type LoginForm struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// TaskForm is the body of POST /tasks and POST /update/:id. Status is
// ignored on creation.
type TaskForm struct {
	Description string `json:"description" form:"description"`
	Category    string `json:"category" form:"category"`
	Status      string `json:"status" form:"status"`
}

// FormDescriptor tells a client how to submit a form.
type FormDescriptor struct {
	Form    string   `json:"form"`
	Method  string   `json:"method"`
	Action  string   `json:"action"`
	Fields  []string `json:"fields"`
	Options []string `json:"options,omitempty"`
}

// LandingResponse is the body of GET /.
type LandingResponse struct {
	Name          string            `json:"name"`
	Authenticated bool              `json:"authenticated"`
	Links         map[string]string `json:"links"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
