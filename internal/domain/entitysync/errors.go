package entitysync

import "exchange-hub-go/internal/apperror"

var (
	ErrExchangeNotFound = apperror.NotFound("exchange_not_found", "exchange not found")
	ErrNoMatterData     = apperror.Validation("no_matter_data", "exchange has no PracticePanther data to sync")
)
