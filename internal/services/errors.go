package services

import "errors"

var (
	// ErrValidation is wrapped by every input validation failure.
	ErrValidation = errors.New("invalid input")

	// ErrInvalidCredentials is returned when an email/password pair does not match.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidStatus is returned for unknown order statuses.
	ErrInvalidStatus = errors.New("invalid order status")

	// ErrInvalidTransition is returned when an order may not move to the requested status.
	ErrInvalidTransition = errors.New("order status transition not allowed")

	// ErrUploadsDisabled is returned when an image is uploaded without object storage configured.
	ErrUploadsDisabled = errors.New("image uploads are not configured")
)
