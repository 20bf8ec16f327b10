package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/adlens/campledger/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
)

var (
	ErrNotFound  = errors.New("invoice_not_found")
	ErrInvalidID = errors.New("invalid_invoice_id")
	// ErrBatchOwnership is returned when a batch references line items that
	// do not exist or belong to another invoice. Nothing is written.
	ErrBatchOwnership = errors.New("invoice_line_items_not_in_invoice")
	ErrEmptyBatch     = errors.New("empty_adjustment_batch")
)

// AdjustmentUpdate is one requested adjustment write, with the raw value as
// submitted by the client.
type AdjustmentUpdate struct {
	InvoiceLineItemID string `json:"id" binding:"required"`
	Adjustments       string `json:"adjustments" binding:"required"`
}

// InvalidAdjustment identifies one line item whose raw value failed
// normalization.
type InvalidAdjustment struct {
	InvoiceLineItemID string `json:"id"`
	Adjustments       string `json:"adjustments"`
}

// BatchValidationError rejects the whole batch and names every offending row.
type BatchValidationError struct {
	Invalid []InvalidAdjustment
}

func (e *BatchValidationError) Error() string {
	return fmt.Sprintf("invalid adjustment values for %d line items", len(e.Invalid))
}

// LineItemView is an invoice line item shaped for API responses, with
// amounts rendered at two decimal places.
type LineItemView struct {
	ID             snowflake.ID `json:"id"`
	InvoiceID      snowflake.ID `json:"invoice_id"`
	LineItemID     snowflake.ID `json:"line_item_id"`
	ActualAmount   string       `json:"actual_amount"`
	Adjustments    string       `json:"adjustments"`
	BillableAmount string       `json:"billable_amount"`
	UpdatedAt      string       `json:"updated_at"`
}

type InvoiceDetail struct {
	Invoice   Invoice        `json:"invoice"`
	LineItems []LineItemView `json:"line_items"`
}

type ListRequest struct {
	pagination.Pagination
}

type ListResponse struct {
	Invoices []ListRow           `json:"invoices"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type Service interface {
	GetByID(ctx context.Context, id string) (InvoiceDetail, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	// BatchUpdateAdjustments validates, locks and applies every update in one
	// transaction. Validation and ownership failures reject the whole batch.
	BatchUpdateAdjustments(ctx context.Context, invoiceID string, updates []AdjustmentUpdate, actorID snowflake.ID) ([]LineItemView, error)
}
