package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type OpenShiftRequest struct {
	StationID string `json:"station_id" validate:"required,uuid"`
	ShiftDate string `json:"shift_date" validate:"required,datetime=2006-01-02"`
	ShiftType string `json:"shift_type" validate:"required,oneof=MORNING EVENING"`
}

// CloseSaleEntry is the attendant's closing meter index for one nozzle.
type CloseSaleEntry struct {
	NozzleID     string          `json:"nozzle_id"     validate:"required,uuid"`
	ClosingIndex decimal.Decimal `json:"closing_index" validate:"min=0"`
}

// CloseDipEntry is the closing dip reading for one tank.
type CloseDipEntry struct {
	TankID       string          `json:"tank_id"       validate:"required,uuid"`
	ClosingLevel decimal.Decimal `json:"closing_level" validate:"min=0"`
}

// CashDeclaration is the physically counted money at close. Card receipts and
// recorded expenses both count toward covering theoretical revenue.
type CashDeclaration struct {
	Counted  decimal.Decimal `json:"counted"  validate:"min=0"`
	Card     decimal.Decimal `json:"card"     validate:"min=0"`
	Expenses decimal.Decimal `json:"expenses" validate:"min=0"`
}

type CloseShiftRequest struct {
	Sales         []CloseSaleEntry `json:"sales"      validate:"required,min=1,dive"`
	TankDips      []CloseDipEntry  `json:"tank_dips"  validate:"required,min=1,dive"`
	Cash          CashDeclaration  `json:"cash"       validate:"required"`
	Justification *string          `json:"justification"`
}

type ShiftFilter struct {
	StationID string `form:"station_id"`
	Page      int    `form:"page"`
	Limit     int    `form:"limit"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SaleResponse struct {
	ID           string           `json:"id"`
	NozzleID     string           `json:"nozzle_id"`
	TankID       string           `json:"tank_id"`
	FuelType     string           `json:"fuel_type"`
	OpeningIndex decimal.Decimal  `json:"opening_index"`
	ClosingIndex *decimal.Decimal `json:"closing_index"`
	VolumeSold   *decimal.Decimal `json:"volume_sold"`
	UnitPrice    decimal.Decimal  `json:"unit_price"`
	Revenue      *decimal.Decimal `json:"revenue"`
}

type TankDipResponse struct {
	ID               string           `json:"id"`
	TankID           string           `json:"tank_id"`
	OpeningLevel     decimal.Decimal  `json:"opening_level"`
	ClosingLevel     *decimal.Decimal `json:"closing_level"`
	TheoreticalStock *decimal.Decimal `json:"theoretical_stock"`
	StockVariance    *decimal.Decimal `json:"stock_variance"`
}

type ShiftResponse struct {
	ID            string                     `json:"id"`
	StationID     string                     `json:"station_id"`
	ShiftDate     string                     `json:"shift_date"`
	ShiftType     string                     `json:"shift_type"`
	Status        string                     `json:"status"`
	PriceSnapshot map[string]decimal.Decimal `json:"price_snapshot"`

	TotalRevenue    *decimal.Decimal `json:"total_revenue"`
	TheoreticalCash *decimal.Decimal `json:"theoretical_cash"`
	CashCounted     *decimal.Decimal `json:"cash_counted"`
	CardAmount      *decimal.Decimal `json:"card_amount"`
	ExpensesAmount  *decimal.Decimal `json:"expenses_amount"`
	CashVariance    *decimal.Decimal `json:"cash_variance"`
	StockVariance   *decimal.Decimal `json:"stock_variance"`
	Justification   *string          `json:"justification"`

	OpenedBy string  `json:"opened_by"`
	ClosedBy *string `json:"closed_by"`
	OpenedAt string  `json:"opened_at"`
	ClosedAt *string `json:"closed_at"`

	Sales    []SaleResponse    `json:"sales"`
	TankDips []TankDipResponse `json:"tank_dips"`
}

type ShiftListResponse struct {
	Data  []ShiftResponse `json:"data"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}
