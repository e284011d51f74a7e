package refund

import "errors"

// Codes de validation renvoyés au back-office. Toutes ces erreurs sont
// récupérables : l'opérateur corrige sa saisie et resoumet.
type ValidationCode string

const (
	CodeEmptyRefund       ValidationCode = "empty_refund"
	CodeExceedsOrderTotal ValidationCode = "exceeds_order_total"
	CodeNoItemsSelected   ValidationCode = "no_items_selected"
)

type ValidationError struct {
	Code    ValidationCode `json:"code"`
	Message string         `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// AsValidation extrait une ValidationError d'une chaîne d'erreurs
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
