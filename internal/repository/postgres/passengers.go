package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ilyakh/busline/internal/domain"
	"github.com/ilyakh/busline/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PassengerRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *PassengerRepo) With(db DB) *PassengerRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *PassengerRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const passengerSelect = `
	SELECT id, role, last_name, first_name, middle_name, gender,
       	   phone_number, email, birth_date, document_number, password, created_at
 	  FROM passengers`

func scanPassenger(row interface{ Scan(dest ...any) error }) (*domain.Passenger, error) {
	var p domain.Passenger
	err := row.Scan(
		&p.ID,
		&p.Role,
		&p.LastName,
		&p.FirstName,
		&p.MiddleName,
		&p.Gender,
		&p.PhoneNumber,
		&p.Email,
		&p.BirthDate,
		&p.DocumentNumber,
		&p.PasswordHash,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a passenger row.
//
// Returns:
//   - error: repository.ErrConflict if the phone number or email is taken.
func (r *PassengerRepo) Create(ctx context.Context, p domain.Passenger) error {
	const op = "postgres.PassengerRepo.Create"

	db := r.handle()

	if _, err := db.Exec(ctx,
		`INSERT INTO passengers(id, role, last_name, first_name, middle_name, gender,
                            	phone_number, email, birth_date, document_number, password)
       	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.Role, p.LastName, p.FirstName, p.MiddleName, p.Gender,
		p.PhoneNumber, p.Email, p.BirthDate, p.DocumentNumber, p.PasswordHash,
	); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// GetByID retrieves a passenger by id.
//
// Returns:
//   - error: repository.ErrNotFound if the passenger does not exist.
func (r *PassengerRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Passenger, error) {
	const op = "postgres.PassengerRepo.GetByID"

	db := r.handle()

	p, err := scanPassenger(db.QueryRow(ctx, passengerSelect+` WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return p, nil
}

// GetByPhone retrieves a passenger by phone number.
//
// Returns:
//   - error: repository.ErrNotFound if the phone is not registered.
func (r *PassengerRepo) GetByPhone(ctx context.Context, phone string) (*domain.Passenger, error) {
	const op = "postgres.PassengerRepo.GetByPhone"

	db := r.handle()

	p, err := scanPassenger(db.QueryRow(ctx, passengerSelect+` WHERE phone_number = $1`, phone))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return p, nil
}

// PhoneExists reports whether a phone number is already registered.
func (r *PassengerRepo) PhoneExists(ctx context.Context, phone string) (bool, error) {
	const op = "postgres.PassengerRepo.PhoneExists"

	db := r.handle()

	var exists bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM passengers WHERE phone_number = $1)`,
		phone,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return exists, nil
}

// EmailExists reports whether an email is already registered.
func (r *PassengerRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	const op = "postgres.PassengerRepo.EmailExists"

	db := r.handle()

	var exists bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM passengers WHERE email = $1)`,
		email,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return exists, nil
}

// Role returns the stored role of a passenger.
//
// Returns:
//   - error: repository.ErrNotFound if the passenger does not exist.
func (r *PassengerRepo) Role(ctx context.Context, id uuid.UUID) (string, error) {
	const op = "postgres.PassengerRepo.Role"

	db := r.handle()

	var role string
	if err := db.QueryRow(ctx,
		`SELECT role FROM passengers WHERE id = $1`,
		id,
	).Scan(&role); err != nil {
		return "", fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return role, nil
}

// ProfilePatch carries the whitelisted mutable profile fields. Nil pointers
// leave the corresponding column untouched.
type ProfilePatch struct {
	LastName       *string
	FirstName      *string
	MiddleName     *string
	Gender         *bool
	BirthDate      *time.Time
	DocumentNumber *string
	Email          *string
}

// UpdateProfile patches a passenger's profile fields.
//
// Returns:
//   - error: repository.ErrNotFound if the passenger does not exist.
//   - error: repository.ErrConflict if the new email is taken.
func (r *PassengerRepo) UpdateProfile(ctx context.Context, id uuid.UUID, patch ProfilePatch) error {
	const op = "postgres.PassengerRepo.UpdateProfile"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE passengers
        	SET last_name       = COALESCE($2, last_name),
            	first_name      = COALESCE($3, first_name),
            	middle_name     = COALESCE($4, middle_name),
            	gender          = COALESCE($5, gender),
            	birth_date      = COALESCE($6, birth_date),
            	document_number = COALESCE($7, document_number),
            	email           = COALESCE($8, email)
      	 WHERE id = $1`,
		id, patch.LastName, patch.FirstName, patch.MiddleName,
		patch.Gender, patch.BirthDate, patch.DocumentNumber, patch.Email,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// UpdatePassword replaces the stored credential hash.
func (r *PassengerRepo) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	const op = "postgres.PassengerRepo.UpdatePassword"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE passengers SET password = $2 WHERE id = $1`,
		id, hash,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// List returns all passengers ordered by signup time.
func (r *PassengerRepo) List(ctx context.Context) ([]domain.Passenger, error) {
	const op = "postgres.PassengerRepo.List"

	db := r.handle()

	rows, err := db.Query(ctx, passengerSelect+` ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.Passenger
	for rows.Next() {
		p, err := scanPassenger(rows)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}

		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// Delete removes a passenger.
//
// Returns:
//   - error: repository.ErrNotFound if the passenger does not exist.
//   - error: repository.ErrReferenced if tickets still reference them.
func (r *PassengerRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "postgres.PassengerRepo.Delete"

	db := r.handle()

	tag, err := db.Exec(ctx, `DELETE FROM passengers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}
