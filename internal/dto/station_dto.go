package dto

import "github.com/shopspring/decimal"

type TankResponse struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	FuelType     string          `json:"fuel_type"`
	Capacity     decimal.Decimal `json:"capacity"`
	CurrentLevel decimal.Decimal `json:"current_level"`
	Ullage       decimal.Decimal `json:"ullage"`
	Version      int64           `json:"version"`
}

type NozzleResponse struct {
	ID           string          `json:"id"`
	PumpNumber   int             `json:"pump_number"`
	Number       int             `json:"number"`
	TankID       string          `json:"tank_id"`
	FuelType     string          `json:"fuel_type"`
	CurrentIndex decimal.Decimal `json:"current_index"`
}
