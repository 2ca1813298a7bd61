package domain

import "errors"

// Доменные ошибки. HTTP-слой маппит их на статусы через errors.Is.
var (
	ErrNotFound            = errors.New("resource not found")
	ErrForbidden           = errors.New("forbidden")
	ErrConflict            = errors.New("conflict")
	ErrEntitlementRequired = errors.New("need to purchase this course")
	ErrExternalProvider    = errors.New("payment provider error")
	ErrReconciliation      = errors.New("webhook reconciliation failed")
)
