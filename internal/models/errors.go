package models

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Error codes returned to clients.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeNotAuthor       = "NOT_AUTHOR"
	CodeSelfReference   = "SELF_REFERENCE"
	CodeAlreadyRelated  = "ALREADY_RELATED"
	CodeAlreadyFriends  = "ALREADY_FRIENDS"
	CodeNoSuchRequest   = "NO_SUCH_REQUEST"
	CodeNoSuchRelation  = "NO_SUCH_RELATION"
	CodeEmptyContent    = "EMPTY_CONTENT"
	CodePartialDeletion = "PARTIAL_DELETION"
	CodeInternal        = "INTERNAL_ERROR"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	// Field names the offending request field, when one can be attributed.
	Field string
	Err   error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

// NewFieldValidationError attributes a validation failure to a request field.
func NewFieldValidationError(field, message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
		Field:   field,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

// NewNotAuthorError rejects a mutation attempted by someone other than the
// owning author.
func NewNotAuthorError(message string) *AppError {
	return &AppError{
		Code:    CodeNotAuthor,
		Message: message,
	}
}

func NewSelfReferenceError() *AppError {
	return &AppError{
		Code:    CodeSelfReference,
		Message: "Cannot add yourself as a friend",
	}
}

func NewAlreadyRelatedError() *AppError {
	return &AppError{
		Code:    CodeAlreadyRelated,
		Message: "Already friends or a request is pending",
	}
}

func NewAlreadyFriendsError() *AppError {
	return &AppError{
		Code:    CodeAlreadyFriends,
		Message: "Cannot accept or reject a user that is already a friend",
	}
}

func NewNoSuchRequestError() *AppError {
	return &AppError{
		Code:    CodeNoSuchRequest,
		Message: "No friend request to begin with",
	}
}

func NewNoSuchRelationError() *AppError {
	return &AppError{
		Code:    CodeNoSuchRelation,
		Message: "That user is not a friend",
	}
}

func NewEmptyContentError(field string) *AppError {
	return &AppError{
		Code:    CodeEmptyContent,
		Message: "Content must not be empty",
		Field:   field,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// PartialDeletionError reports a cascading account deletion that stopped
// mid-sequence. Every step is idempotent, so the caller-visible contract is
// to retry the whole operation.
type PartialDeletionError struct {
	// Step is the step that failed.
	Step string
	// Completed lists the steps that finished before the failure.
	Completed []string
	Err       error
}

func (e *PartialDeletionError) Error() string {
	return fmt.Sprintf("account deletion interrupted at %q (completed: %s): %v",
		e.Step, strings.Join(e.Completed, ", "), e.Err)
}

func (e *PartialDeletionError) Unwrap() error {
	return e.Err
}

// NewPartialDeletionError wraps a failed cascade step as an AppError.
func NewPartialDeletionError(step string, completed []string, err error) *AppError {
	return &AppError{
		Code:    CodePartialDeletion,
		Message: "Account deletion was interrupted; retry the operation",
		Err:     &PartialDeletionError{Step: step, Completed: completed, Err: err},
	}
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	if appErr, ok := err.(*AppError); ok {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
			Field: appErr.Field,
		}
		if appErr.Err != nil {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}
