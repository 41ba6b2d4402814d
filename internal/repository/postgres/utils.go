package postgres

import (
	"fmt"

	"github.com/ilyakh/busline/internal/domain"
	"github.com/jackc/pgx/v5"
)

func scanTicketViews(op string, rows pgx.Rows) ([]domain.TicketView, error) {
	defer rows.Close()

	var out []domain.TicketView
	for rows.Next() {
		var tv domain.TicketView
		if err := rows.Scan(
			&tv.ID,
			&tv.SeatNo,
			&tv.PassengerID,
			&tv.FirstName,
			&tv.LastName,
			&tv.Price,
			&tv.Duration,
			&tv.DepartureCity,
			&tv.DestinationCity,
			&tv.DepartureTS,
			&tv.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}

		out = append(out, tv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}
