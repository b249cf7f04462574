package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrAccountNotFound = &AppError{http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Sender account not found"}
	ErrJobNotFound     = &AppError{http.StatusNotFound, "BULK_JOB_NOT_FOUND", "Bulk job not found"}
	ErrJobNotRunnable  = &AppError{http.StatusConflict, "BULK_JOB_ALREADY_STARTED", "Bulk job has already been started"}
	ErrInvalidAmount   = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be positive with at most 4 decimal places"}
	ErrFieldTooLong    = &AppError{http.StatusBadRequest, "FIELD_TOO_LONG", "A field exceeds its maximum length"}
	ErrUploadTooLarge  = &AppError{http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE", "Uploaded file is too large"}
	ErrDispatchBusy    = &AppError{http.StatusServiceUnavailable, "BULK_QUEUE_FULL", "Too many bulk jobs in flight, retry later"}
	ErrTransferFailed  = &AppError{http.StatusServiceUnavailable, "TRANSFER_FAILED", "Transfer was rejected or the hub is unavailable"}
)
