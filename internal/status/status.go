package status

import "errors"

var (
	ErrInsufficientInventory = errors.New("inventory: insufficient inventory")
	ErrInsufficientBalance   = errors.New("payout: insufficient balance")
	ErrInvalidState          = errors.New("state: invalid state transition")
	ErrStorageFailure        = errors.New("storage: storage failure")

	ErrNotFound           = errors.New("lookup: not found")
	ErrInvalidInput       = errors.New("input: invalid input")
	ErrForbidden          = errors.New("access: forbidden")
	ErrEmptyCart          = errors.New("cart: cart is empty")
	ErrCheckoutInProgress = errors.New("checkout: attempt already in progress")
	ErrNotRefundable      = errors.New("refund: ticket is not refundable")
)
