package entity

import "github.com/shopspring/decimal"

type Student struct {
	ID uint64

	FirstName string
	LastName  string
	Email     *string
	Phone     *string
	ChatID    *string

	DefaultFee      *decimal.Decimal
	DefaultCurrency *string
}

func (s *Student) FullName() string {
	switch {
	case s.FirstName != "" && s.LastName != "":
		return s.FirstName + " " + s.LastName
	case s.FirstName != "":
		return s.FirstName
	default:
		return s.LastName
	}
}
