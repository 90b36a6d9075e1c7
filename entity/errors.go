package entity

import "errors"

var (
	ErrEventNotFound         = errors.New("event not found")
	ErrCustomerNotFound      = errors.New("customer not found")
	ErrEventInactive         = errors.New("event is not open for sales")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrInvalidQuantity       = errors.New("invalid quantity")
	ErrDuplicateCode         = errors.New("duplicate ticket code")
	ErrLockTimeout           = errors.New("inventory lock timed out")
	ErrNotificationNotFound  = errors.New("notification not found")
)
