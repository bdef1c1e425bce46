package models

import (
	"errors"
	"fmt"
)

var (
	ErrPriceUnavailable  = errors.New("price unavailable")
	ErrBrokerUnavailable = errors.New("broker unavailable")
	ErrOrderRejected     = errors.New("order rejected")
	ErrExceedsCap        = errors.New("notional exceeds position cap")
	ErrInvalidOrder      = errors.New("invalid order")
	ErrConfigMissing     = errors.New("trading config missing")
	ErrInstrumentBusy    = errors.New("instrument execution in progress")
	ErrTradeNotRecorded  = errors.New("trade not recorded")
	ErrNotFound          = errors.New("not found")
)

// ExecutionError classifies why an order could not be executed.
type ExecutionError struct {
	Kind       error
	Instrument string
	OrderID    string
	Err        error
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("execute %s: %v", e.Instrument, e.Kind)
	if e.OrderID != "" {
		msg += " (order " + e.OrderID + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExecutionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
