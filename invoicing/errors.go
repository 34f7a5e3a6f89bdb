package invoicing

import "errors"

var ErrUnverifiedPayment = errors.New("payment could not be verified on the ledger")
