package api

import (
	"errors"
	"fmt"
)

// Kind classifies request failures.
type Kind string

const (
	// KindNetwork: the request never got a response.
	KindNetwork Kind = "network"
	// KindHTTP: non-2xx status.
	KindHTTP Kind = "http"
	// KindDecode: the body was not the expected JSON.
	KindDecode Kind = "decode"
	// KindServer: 2xx with {"success": false}.
	KindServer Kind = "server"
)

// Error is returned by every Client call that fails.
type Error struct {
	Kind    Kind
	Op      string // "GET /api/dashboard/counters"
	Status  int
	Message string // server-supplied message, if any
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("%s: %s %d: %s", e.Op, e.Kind, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s: %s %d", e.Op, e.Kind, e.Status)
	case e.Message != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Result is the uniform outcome shape handed to the coordinator and UI.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Normalize turns err into a Result whose message names the failed
// action, e.g. Normalize(err, "одобряване на поръчката").
func Normalize(err error, action string) Result {
	if err == nil {
		return Result{Success: true}
	}
	return Result{Success: false, Message: "Грешка при " + action + ": " + describe(err)}
}

func describe(err error) string {
	e, ok := AsError(err)
	if !ok {
		return "неочаквана грешка"
	}
	if e.Message != "" {
		return e.Message
	}
	switch e.Kind {
	case KindNetwork:
		return "няма връзка със сървъра"
	case KindHTTP:
		switch e.Status {
		case 401:
			return "сесията е изтекла, влезте отново"
		case 403:
			return "нямате права за това действие"
		case 404:
			return "ресурсът не е намерен"
		}
		return fmt.Sprintf("сървърът върна грешка (%d)", e.Status)
	case KindDecode:
		return "невалиден отговор от сървъра"
	case KindServer:
		return "сървърът отказа операцията"
	}
	return "неочаквана грешка"
}
