// Package notice carries the short user-facing messages the UI shows as toasts.
package notice

import (
	"encoding/json"
	"net/http"
)

type Variant string

const (
	Default     Variant = "default"
	Destructive Variant = "destructive"
	Warning     Variant = "warning"
)

// Notice is a transient message. Handlers attach it to their responses and
// the UI decides how to present it.
type Notice struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Variant     Variant `json:"variant"`
}

func Success(title string) *Notice {
	return &Notice{Title: title, Variant: Default}
}

func Error(title string) *Notice {
	return &Notice{Title: title, Variant: Destructive}
}

func Warn(title, description string) *Notice {
	return &Notice{Title: title, Description: description, Variant: Warning}
}

// Respond writes data together with the notice the UI should show.
func Respond(w http.ResponseWriter, status int, data interface{}, n *Notice) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]interface{}{}
	if data != nil {
		body["data"] = data
	}
	if n != nil {
		body["notice"] = n
		if n.Variant == Destructive {
			body["error"] = n.Title
		}
	}
	json.NewEncoder(w).Encode(body)
}

// RespondValidation reports a blocked form submission.
func RespondValidation(w http.ResponseWriter, n *Notice, errors interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":  "Validation failed",
		"errors": errors,
		"notice": n,
	})
}
