package errors

import (
	"net/http"
)

// Form operations understood by the Handler.
const (
	FormLogin    = "login"
	FormRegister = "register"
)

// Handler turns request failures into the inline messages shown on forms.
type Handler struct{}

// NewHandler creates a new error handler.
func NewHandler() *Handler {
	return &Handler{}
}

// FormErrors maps an error returned by a login or register call to field
// messages. Client-side FieldErrors pass through unchanged.
func (h *Handler) FormErrors(form string, err error) FieldErrors {
	if err == nil {
		return nil
	}

	var fieldErrs FieldErrors
	if As(err, &fieldErrs) {
		return fieldErrs
	}

	if Is(err, ErrNetwork) {
		return FieldErrors{"": "Cannot reach the server. Check your connection and try again."}
	}

	switch StatusCode(err) {
	case http.StatusUnauthorized:
		return FieldErrors{
			"email":    "Invalid email or password",
			"password": "Invalid email or password",
		}
	case http.StatusBadRequest, http.StatusConflict:
		if form == FormRegister {
			return FieldErrors{"email": "Invalid email"}
		}
		return FieldErrors{"email": "Invalid email or password"}
	}

	return FieldErrors{"": "Something went wrong. Please try again."}
}

// UserMessage returns a one-line description suitable for a status bar.
func (h *Handler) UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var ctxErr *ContextualError
	if As(err, &ctxErr) {
		return ctxErr.GetUserMessage()
	}

	switch {
	case Is(err, ErrLoginRequired):
		return "Your session has ended. Please log in again."
	case Is(err, ErrNetwork):
		return "Cannot reach the server."
	case Is(err, ErrNotFound):
		return "Not found."
	case Is(err, ErrUnauthorized):
		return "You are not allowed to do that."
	case Is(err, ErrValidation):
		return "The server rejected the request."
	case Is(err, ErrNotConnected):
		return "Not connected to the channel."
	}
	return err.Error()
}
