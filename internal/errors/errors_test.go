package errors

import (
	"fmt"
	"testing"
)

func TestShareError_Error(t *testing.T) {
	err := &ShareError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "backup not found",
	}

	expected := "NOT_FOUND: backup not found"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("url is required")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "url is required" {
		t.Errorf("Message = %q, want %q", err.Message, "url is required")
	}
}

func TestNewMalformedAddress(t *testing.T) {
	err := NewMalformedAddress("tubestreak://other?foo=bar", "missing share marker")

	if err.Code != ErrMalformedAddress {
		t.Errorf("Code = %q, want %q", err.Code, ErrMalformedAddress)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Details["address"] != "tubestreak://other?foo=bar" {
		t.Errorf("Details[address] = %v", err.Details["address"])
	}
	if err.Details["reason"] != "missing share marker" {
		t.Errorf("Details[reason] = %v", err.Details["reason"])
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("group.tubestreak")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["identifier"] != "group.tubestreak" {
		t.Errorf("Details[identifier] = %v, want %q", err.Details["identifier"], "group.tubestreak")
	}
}

func TestNewUnsupportedContent(t *testing.T) {
	err := NewUnsupportedContent(2)

	if err.Code != ErrUnsupportedContent {
		t.Errorf("Code = %q, want %q", err.Code, ErrUnsupportedContent)
	}
	if err.Status != 415 {
		t.Errorf("Status = %d, want 415", err.Status)
	}
	if err.Details["candidates"] != 2 {
		t.Errorf("Details[candidates] = %v, want 2", err.Details["candidates"])
	}
}

func TestNewDispatchTargetNotFound(t *testing.T) {
	err := NewDispatchTargetNotFound([]string{"browser", "command"})

	if err.Code != ErrDispatchTargetNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrDispatchTargetNotFound)
	}
	if err.Status != 502 {
		t.Errorf("Status = %d, want 502", err.Status)
	}
	if tried, ok := err.Details["tried"].([]string); !ok || len(tried) != 2 {
		t.Errorf("Details[tried] = %v", err.Details["tried"])
	}
}

func TestNewHostUnavailable(t *testing.T) {
	err := NewHostUnavailable("/tmp/host.sock", fmt.Errorf("connection refused"))

	if err.Code != ErrHostUnavailable {
		t.Errorf("Code = %q, want %q", err.Code, ErrHostUnavailable)
	}
	if err.Status != 503 {
		t.Errorf("Status = %d, want 503", err.Status)
	}
	want := "host not reachable at /tmp/host.sock: connection refused"
	if err.Message != want {
		t.Errorf("Message = %q, want %q", err.Message, want)
	}
}

func TestNewInternal(t *testing.T) {
	t.Run("with error", func(t *testing.T) {
		err := NewInternal(fmt.Errorf("database connection failed"))

		if err.Code != ErrInternal {
			t.Errorf("Code = %q, want %q", err.Code, ErrInternal)
		}
		if err.Status != 500 {
			t.Errorf("Status = %d, want 500", err.Status)
		}
		if err.Message != "an internal error occurred" {
			t.Errorf("Message = %q, want %q", err.Message, "an internal error occurred")
		}
		if err.Details["internal_error"] != "database connection failed" {
			t.Errorf("Details[internal_error] = %q, want %q", err.Details["internal_error"], "database connection failed")
		}
	})

	t.Run("with nil", func(t *testing.T) {
		err := NewInternal(nil)

		if err.Message != "an internal error occurred" {
			t.Errorf("Message = %q, want %q", err.Message, "an internal error occurred")
		}
		if err.Details == nil {
			t.Error("Details should not be nil")
		}
	})
}

func TestIs(t *testing.T) {
	t.Run("matching code", func(t *testing.T) {
		if !Is(NewNotFound("test"), ErrNotFound) {
			t.Error("Is() = false, want true")
		}
	})

	t.Run("non-matching code", func(t *testing.T) {
		if Is(NewNotFound("test"), ErrInternal) {
			t.Error("Is() = true, want false")
		}
	})

	t.Run("plain error", func(t *testing.T) {
		if Is(fmt.Errorf("plain error"), ErrNotFound) {
			t.Error("Is() = true, want false for non-ShareError")
		}
	})

	t.Run("wrapped ShareError", func(t *testing.T) {
		wrapped := fmt.Errorf("dispatch: %w", NewHostUnavailable("sock", nil))
		if !Is(wrapped, ErrHostUnavailable) {
			t.Error("Is() = false, want true for wrapped ShareError")
		}
		if Is(wrapped, ErrNotFound) {
			t.Error("Is() = true, want false for wrong code on wrapped ShareError")
		}
	})
}
