package app

import "errors"

var (
	// ErrUserNotFound is returned when no user matches the lookup key.
	// Local and federated logins report it distinctly from ErrPasswordIncorrect.
	ErrUserNotFound = errors.New("User Not Found")
	// ErrPasswordIncorrect is returned when the password does not match the stored digest,
	// including accounts that were registered without a password.
	ErrPasswordIncorrect = errors.New("Password incorrect")

	ErrEmailAlreadyExists       = errors.New("email already exists")
	ErrFederatedIDAlreadyExists = errors.New("google id already exists")

	ErrProductNotFound = errors.New("product not found")
	// ErrDuplicateRating is returned when the author already rated the product.
	ErrDuplicateRating = errors.New("You have already reviewed and rated this product")
	ErrInvalidScore    = errors.New("rating must be an integer between 1 and 5")

	ErrFieldsRequired = errors.New("required fields missing")
)
