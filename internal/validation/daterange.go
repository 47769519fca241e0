// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"time"
)

const dateLayout = "2006-01-02"

// ErrInvalidDate возвращается для даты, не соответствующей формату YYYY-MM-DD.
var (
	ErrInvalidDate = errors.New("invalid date format, expected YYYY-MM-DD")
	// ErrInvalidRange возвращается, если начало периода позже его конца.
	ErrInvalidRange = errors.New("start_date must not be after end_date")
)

// ParseDateRange разбирает необязательные календарные границы периода.
// Обе границы включительные; правая граница возвращается как начало следующих суток,
// чтобы сравнение с метками времени выполнялось строго "меньше".
func ParseDateRange(startDate, endDate string) (*time.Time, *time.Time, error) {
	var from, to *time.Time

	if startDate != "" {
		t, err := time.Parse(dateLayout, startDate)
		if err != nil {
			return nil, nil, ErrInvalidDate
		}
		from = &t
	}

	if endDate != "" {
		t, err := time.Parse(dateLayout, endDate)
		if err != nil {
			return nil, nil, ErrInvalidDate
		}
		next := t.AddDate(0, 0, 1)
		to = &next
	}

	if from != nil && to != nil && !from.Before(*to) {
		return nil, nil, ErrInvalidRange
	}

	return from, to, nil
}
