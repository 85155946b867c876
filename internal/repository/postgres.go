// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/mmeshcher/carsharing-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с уже существующим email.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrCarNotFound возвращается, если автомобиль не найден.
	ErrCarNotFound = errors.New("car not found")
	// ErrRentalNotFound возвращается, если аренда не найдена.
	ErrRentalNotFound = errors.New("rental not found")
	// ErrPaymentNotFound возвращается, если платёж не найден.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrNegativeInventory возвращается, если изменение остатка сделало бы его отрицательным.
	ErrNegativeInventory = errors.New("inventory change would result in negative stock")
	// ErrAlreadyReturned возвращается при повторной попытке вернуть автомобиль.
	ErrAlreadyReturned = errors.New("rental already has actual return date")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет операцию при сериализационных сбоях, дедлоках и сетевых ошибках.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				return retry.RetryableError(err)
			}
			return err
		}

		if isConnectionError(err) {
			return retry.RetryableError(err)
		}

		return err
	})
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя с ролью CUSTOMER.
func (r *PostgresRepository) CreateUser(ctx context.Context, email string, passwordHash []byte, firstName, lastName string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, first_name, last_name, role)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		email, passwordHash, firstName, lastName, string(model.RoleCustomer),
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, email)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByEmail возвращает пользователя по email.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, first_name, last_name, role, created_at
		 FROM users WHERE email = $1`,
		email,
	)
	return scanUser(row)
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, first_name, last_name, role, created_at
		 FROM users WHERE id = $1`,
		id,
	)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Role = model.UserRole(role)
	return &u, nil
}

// UpdateUserProfile обновляет учётные данные и имя пользователя.
// Хэш пароля пересчитывается вызывающей стороной, так как зависит от email.
func (r *PostgresRepository) UpdateUserProfile(ctx context.Context, id int64, email string, passwordHash []byte, firstName, lastName string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE users SET email = $2, password_hash = $3, first_name = $4, last_name = $5
		 WHERE id = $1`,
		id, email, passwordHash, firstName, lastName,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrUserExists, email)
		}
		return fmt.Errorf("update user profile: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateUserRole назначает пользователю новую роль.
func (r *PostgresRepository) UpdateUserRole(ctx context.Context, id int64, role model.UserRole) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE users SET role = $2 WHERE id = $1`,
		id, string(role),
	)
	if err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CreateCar сохраняет новый автомобиль и возвращает его идентификатор.
func (r *PostgresRepository) CreateCar(ctx context.Context, car *model.Car) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO cars (model, brand, type, inventory, daily_fee)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		car.Model, car.Brand, string(car.Type), car.Inventory, car.DailyFeeCents,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create car: %w", err)
	}
	return id, nil
}

// GetCarByID возвращает автомобиль по идентификатору.
func (r *PostgresRepository) GetCarByID(ctx context.Context, id int64) (*model.Car, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, model, brand, type, inventory, daily_fee
		 FROM cars WHERE id = $1 AND NOT is_deleted`,
		id,
	)

	var c model.Car
	var carType string
	err := row.Scan(&c.ID, &c.Model, &c.Brand, &carType, &c.Inventory, &c.DailyFeeCents)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCarNotFound
		}
		return nil, fmt.Errorf("get car: %w", err)
	}
	c.Type = model.CarType(carType)
	return &c, nil
}

// ListCars возвращает страницу автомобилей и общее количество.
func (r *PostgresRepository) ListCars(ctx context.Context, page, size int) ([]model.Car, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM cars WHERE NOT is_deleted`,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count cars: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, model, brand, type, inventory, daily_fee
		 FROM cars
		 WHERE NOT is_deleted
		 ORDER BY id
		 LIMIT $1 OFFSET $2`,
		size, page*size,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("select cars: %w", err)
	}
	defer rows.Close()

	var cars []model.Car
	for rows.Next() {
		var c model.Car
		var carType string
		if err := rows.Scan(&c.ID, &c.Model, &c.Brand, &carType, &c.Inventory, &c.DailyFeeCents); err != nil {
			return nil, 0, fmt.Errorf("scan car: %w", err)
		}
		c.Type = model.CarType(carType)
		cars = append(cars, c)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return cars, total, nil
}

// UpdateCar обновляет данные автомобиля.
func (r *PostgresRepository) UpdateCar(ctx context.Context, car *model.Car) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE cars SET model = $2, brand = $3, type = $4, inventory = $5, daily_fee = $6
		 WHERE id = $1 AND NOT is_deleted`,
		car.ID, car.Model, car.Brand, string(car.Type), car.Inventory, car.DailyFeeCents,
	)
	if err != nil {
		return fmt.Errorf("update car: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrCarNotFound
	}
	return nil
}

// DeleteCar помечает автомобиль удалённым.
func (r *PostgresRepository) DeleteCar(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE cars SET is_deleted = TRUE WHERE id = $1 AND NOT is_deleted`,
		id,
	)
	if err != nil {
		return fmt.Errorf("delete car: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrCarNotFound
	}
	return nil
}

// applyInventoryDeltaTx изменяет остаток автомобиля внутри транзакции.
// Строка автомобиля блокируется, чтобы сериализовать изменения остатка по машине.
func applyInventoryDeltaTx(ctx context.Context, tx pgx.Tx, carID int64, delta int) error {
	var inventory int
	err := tx.QueryRow(ctx,
		`SELECT inventory FROM cars WHERE id = $1 AND NOT is_deleted FOR UPDATE`,
		carID,
	).Scan(&inventory)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCarNotFound
		}
		return fmt.Errorf("lock car for update: %w", err)
	}

	newInventory := inventory + delta
	if newInventory < 0 {
		return ErrNegativeInventory
	}

	if _, err := tx.Exec(ctx,
		`UPDATE cars SET inventory = $2 WHERE id = $1`,
		carID, newInventory,
	); err != nil {
		return fmt.Errorf("update inventory: %w", err)
	}

	return nil
}

// ApplyInventoryDelta атомарно изменяет остаток автомобиля на delta.
// Единственная точка изменения поля inventory.
func (r *PostgresRepository) ApplyInventoryDelta(ctx context.Context, carID int64, delta int) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := applyInventoryDeltaTx(ctx, tx, carID, delta); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// CreateRental резервирует одну единицу остатка и сохраняет аренду в одной транзакции.
// Если резервирование не прошло, аренда не создаётся.
func (r *PostgresRepository) CreateRental(ctx context.Context, userID, carID int64, rentalDate, returnDate time.Time) (*model.Rental, error) {
	var rental *model.Rental

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := applyInventoryDeltaTx(ctx, tx, carID, -1); err != nil {
			return err
		}

		var id int64
		err = tx.QueryRow(ctx,
			`INSERT INTO rentals (user_id, car_id, rental_date, return_date)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			userID, carID, rentalDate, returnDate,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert rental: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		rental = &model.Rental{
			ID:         id,
			UserID:     userID,
			CarID:      carID,
			RentalDate: rentalDate,
			ReturnDate: returnDate,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rental, nil
}

// GetRentalByID возвращает аренду по идентификатору.
func (r *PostgresRepository) GetRentalByID(ctx context.Context, id int64) (*model.Rental, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, user_id, car_id, rental_date, return_date, actual_return_date
		 FROM rentals WHERE id = $1 AND NOT is_deleted`,
		id,
	)

	var rental model.Rental
	err := row.Scan(&rental.ID, &rental.UserID, &rental.CarID,
		&rental.RentalDate, &rental.ReturnDate, &rental.ActualReturnDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRentalNotFound
		}
		return nil, fmt.Errorf("get rental: %w", err)
	}

	return &rental, nil
}

// ListRentals возвращает страницу аренд с необязательными фильтрами по пользователю и активности.
func (r *PostgresRepository) ListRentals(ctx context.Context, userID *int64, isActive *bool, page, size int) ([]model.Rental, int64, error) {
	where := `NOT is_deleted
		AND ($1::bigint IS NULL OR user_id = $1)
		AND ($2::boolean IS NULL
			OR ($2 AND actual_return_date IS NULL)
			OR (NOT $2 AND actual_return_date IS NOT NULL))`

	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM rentals WHERE `+where,
		userID, isActive,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count rentals: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, car_id, rental_date, return_date, actual_return_date
		 FROM rentals
		 WHERE `+where+`
		 ORDER BY id
		 LIMIT $3 OFFSET $4`,
		userID, isActive, size, page*size,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("select rentals: %w", err)
	}
	defer rows.Close()

	var rentals []model.Rental
	for rows.Next() {
		var rental model.Rental
		if err := rows.Scan(&rental.ID, &rental.UserID, &rental.CarID,
			&rental.RentalDate, &rental.ReturnDate, &rental.ActualReturnDate); err != nil {
			return nil, 0, fmt.Errorf("scan rental: %w", err)
		}
		rentals = append(rentals, rental)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return rentals, total, nil
}

// ReturnRental выставляет фактическую дату возврата и освобождает одну единицу остатка
// в одной транзакции. Повторный возврат отклоняется на уровне условия в UPDATE.
func (r *PostgresRepository) ReturnRental(ctx context.Context, rentalID int64, actualReturnDate time.Time) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var carID int64
		err = tx.QueryRow(ctx,
			`UPDATE rentals SET actual_return_date = $2
			 WHERE id = $1 AND actual_return_date IS NULL AND NOT is_deleted
			 RETURNING car_id`,
			rentalID, actualReturnDate,
		).Scan(&carID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return returnRentalConflict(ctx, tx, rentalID)
			}
			return fmt.Errorf("update rental: %w", err)
		}

		if err := applyInventoryDeltaTx(ctx, tx, carID, +1); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

func returnRentalConflict(ctx context.Context, tx pgx.Tx, rentalID int64) error {
	var exists bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM rentals WHERE id = $1 AND NOT is_deleted)`,
		rentalID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check rental: %w", err)
	}
	if !exists {
		return ErrRentalNotFound
	}
	return ErrAlreadyReturned
}

// OverdueRental описывает просроченную аренду с данными арендатора и автомобиля для отчёта.
type OverdueRental struct {
	RentalID   int64
	ReturnDate time.Time
	UserID     int64
	FirstName  string
	LastName   string
	Email      string
	CarID      int64
	CarBrand   string
	CarModel   string
}

// GetOverdueRentals возвращает аренды с истёкшей ожидаемой датой возврата без фактического возврата.
func (r *PostgresRepository) GetOverdueRentals(ctx context.Context, today time.Time) ([]OverdueRental, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT r.id, r.return_date, u.id, u.first_name, u.last_name, u.email, c.id, c.brand, c.model
		 FROM rentals r
		 JOIN users u ON u.id = r.user_id
		 JOIN cars c ON c.id = r.car_id
		 WHERE r.return_date <= $1 AND r.actual_return_date IS NULL AND NOT r.is_deleted
		 ORDER BY r.id`,
		today,
	)
	if err != nil {
		return nil, fmt.Errorf("select overdue rentals: %w", err)
	}
	defer rows.Close()

	var res []OverdueRental
	for rows.Next() {
		var o OverdueRental
		if err := rows.Scan(&o.RentalID, &o.ReturnDate, &o.UserID, &o.FirstName, &o.LastName,
			&o.Email, &o.CarID, &o.CarBrand, &o.CarModel); err != nil {
			return nil, fmt.Errorf("scan overdue rental: %w", err)
		}
		res = append(res, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreatePayment сохраняет новый платёж и возвращает его идентификатор.
func (r *PostgresRepository) CreatePayment(ctx context.Context, p *model.Payment) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO payments (rental_id, type, status, session_id, session_url, amount)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		p.RentalID, string(p.Type), string(p.Status), p.SessionID, p.SessionURL, p.AmountCents,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create payment: %w", err)
	}
	return id, nil
}

const paymentColumns = `id, rental_id, type, status, session_id, session_url, amount`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var p model.Payment
	var pType, status string
	err := row.Scan(&p.ID, &p.RentalID, &pType, &status, &p.SessionID, &p.SessionURL, &p.AmountCents)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	p.Type = model.PaymentType(pType)
	p.Status = model.PaymentStatus(status)
	return &p, nil
}

// GetPaymentByID возвращает платёж по идентификатору.
func (r *PostgresRepository) GetPaymentByID(ctx context.Context, id int64) (*model.Payment, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`,
		id,
	)
	return scanPayment(row)
}

// GetPaymentBySessionID возвращает платёж по идентификатору платёжной сессии.
func (r *PostgresRepository) GetPaymentBySessionID(ctx context.Context, sessionID string) (*model.Payment, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE session_id = $1`,
		sessionID,
	)
	return scanPayment(row)
}

// GetPendingPayment возвращает PENDING-платёж для пары (аренда, тип), если он есть.
func (r *PostgresRepository) GetPendingPayment(ctx context.Context, rentalID int64, pType model.PaymentType) (*model.Payment, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE rental_id = $1 AND type = $2 AND status = $3`,
		rentalID, string(pType), string(model.PaymentStatusPending),
	)
	return scanPayment(row)
}

// HasPaidPayment сообщает, существует ли оплаченный платёж для пары (аренда, тип).
func (r *PostgresRepository) HasPaidPayment(ctx context.Context, rentalID int64, pType model.PaymentType) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM payments
		 WHERE rental_id = $1 AND type = $2 AND status = $3)`,
		rentalID, string(pType), string(model.PaymentStatusPaid),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check paid payment: %w", err)
	}
	return exists, nil
}

// UpdatePaymentStatus переводит платёж в указанный статус.
func (r *PostgresRepository) UpdatePaymentStatus(ctx context.Context, id int64, status model.PaymentStatus) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE payments SET status = $2 WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// UpdatePaymentSession заменяет платёжную сессию и статус платежа при продлении.
func (r *PostgresRepository) UpdatePaymentSession(ctx context.Context, id int64, sessionID, sessionURL string, status model.PaymentStatus) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE payments SET session_id = $2, session_url = $3, status = $4 WHERE id = $1`,
		id, sessionID, sessionURL, string(status),
	)
	if err != nil {
		return fmt.Errorf("update payment session: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// ListPayments возвращает страницу платежей с необязательным фильтром по владельцу аренды.
func (r *PostgresRepository) ListPayments(ctx context.Context, userID *int64, page, size int) ([]model.Payment, int64, error) {
	where := `($1::bigint IS NULL
		OR rental_id IN (SELECT id FROM rentals WHERE user_id = $1))`

	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM payments WHERE `+where,
		userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE `+where+`
		 ORDER BY id
		 LIMIT $2 OFFSET $3`,
		userID, size, page*size,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	payments, err := collectPayments(rows)
	if err != nil {
		return nil, 0, err
	}

	return payments, total, nil
}

// GetPaymentsByStatus возвращает все платежи в указанном статусе.
func (r *PostgresRepository) GetPaymentsByStatus(ctx context.Context, status model.PaymentStatus) ([]model.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE status = $1 ORDER BY id`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("select payments by status: %w", err)
	}
	defer rows.Close()

	return collectPayments(rows)
}

func collectPayments(rows pgx.Rows) ([]model.Payment, error) {
	var payments []model.Payment
	for rows.Next() {
		var p model.Payment
		var pType, status string
		if err := rows.Scan(&p.ID, &p.RentalID, &pType, &status, &p.SessionID, &p.SessionURL, &p.AmountCents); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p.Type = model.PaymentType(pType)
		p.Status = model.PaymentStatus(status)
		payments = append(payments, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return payments, nil
}
