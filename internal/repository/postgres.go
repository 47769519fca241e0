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
	"github.com/mmeshcher/clubrank-system/internal/model"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrMemberNotFound возвращается, если участник не найден.
var (
	ErrMemberNotFound = errors.New("member not found")
	// ErrUserExists возвращается при попытке создать пользователя с уже существующим логином.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
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

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Если ошибка контекста — выходим сразу
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Ретраим только сериализационные конфликты и дедлоки
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		// Если это не pg-ошибка, но сетевая
		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
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

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (login, password_hash) VALUES ($1, $2) RETURNING id`,
		login, passwordHash,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, login)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByLogin возвращает пользователя по логину.
func (r *PostgresRepository) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, login, password_hash, created_at FROM users WHERE login = $1`,
		login,
	)

	var u model.User
	err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &u, nil
}

// GetMemberByID возвращает участника по идентификатору.
func (r *PostgresRepository) GetMemberByID(ctx context.Context, id int64) (*model.Member, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, points, created_at, last_active FROM members WHERE id = $1`,
		id,
	)

	var m model.Member
	err := row.Scan(&m.ID, &m.Name, &m.Points, &m.CreatedAt, &m.LastActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("get member: %w", err)
	}

	return &m, nil
}

// ListMembers возвращает всех участников, упорядоченных по убыванию баллов.
func (r *PostgresRepository) ListMembers(ctx context.Context) ([]model.Member, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, points, created_at, last_active
		 FROM members
		 ORDER BY points DESC, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		var m model.Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Points, &m.CreatedAt, &m.LastActive); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return members, nil
}

// AddContributionByName записывает вклад участника по имени, создавая участника при необходимости.
// Инкремент счёта и запись в журнал выполняются в одной транзакции.
// Возвращает идентификатор участника, новую сумму баллов и признак создания нового участника.
func (r *PostgresRepository) AddContributionByName(ctx context.Context, name string, action model.ActionType, points int64) (int64, int64, bool, error) {
	var (
		memberID int64
		total    int64
		created  bool
	)

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		cmdTag, err := tx.Exec(ctx,
			`INSERT INTO members (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`,
			name,
		)
		if err != nil {
			return fmt.Errorf("insert member: %w", err)
		}
		created = cmdTag.RowsAffected() == 1

		// Инкремент выполняется на стороне БД, чтобы параллельные записи не теряли обновления.
		err = tx.QueryRow(ctx,
			`UPDATE members SET points = points + $2, last_active = now()
			 WHERE name = $1
			 RETURNING id, points`,
			name, points,
		).Scan(&memberID, &total)
		if err != nil {
			return fmt.Errorf("increment points: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO contributions (member_id, action, points) VALUES ($1, $2, $3)`,
			memberID, string(action), points,
		)
		if err != nil {
			return fmt.Errorf("insert contribution: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, 0, false, err
	}

	return memberID, total, created, nil
}

// AddContributionByID записывает вклад существующего участника и возвращает новую сумму баллов.
func (r *PostgresRepository) AddContributionByID(ctx context.Context, memberID int64, action model.ActionType, points int64) (int64, error) {
	var total int64

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		err = tx.QueryRow(ctx,
			`UPDATE members SET points = points + $2, last_active = now()
			 WHERE id = $1
			 RETURNING points`,
			memberID, points,
		).Scan(&total)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrMemberNotFound
			}
			return fmt.Errorf("increment points: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO contributions (member_id, action, points) VALUES ($1, $2, $3)`,
			memberID, string(action), points,
		)
		if err != nil {
			return fmt.Errorf("insert contribution: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return total, nil
}

// SetMemberPoints устанавливает счёт участника в точное значение, минуя журнал вкладов.
func (r *PostgresRepository) SetMemberPoints(ctx context.Context, memberID int64, points int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE members SET points = $2, last_active = now() WHERE id = $1`,
		memberID, points,
	)
	if err != nil {
		return fmt.Errorf("set points: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrMemberNotFound
	}

	return nil
}

// DeleteMember удаляет участника. Записи о его вкладах остаются в журнале.
func (r *PostgresRepository) DeleteMember(ctx context.Context, memberID int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`DELETE FROM members WHERE id = $1`,
		memberID,
	)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrMemberNotFound
	}

	return nil
}

// LeaderboardRow описывает агрегированные данные участника для таблицы лидеров.
type LeaderboardRow struct {
	MemberID     int64
	Name         string
	TotalPoints  int64
	PeriodPoints int64
	LeadEvents   int
	Sponsorships int
}

// GetLeaderboard возвращает участников с суммой баллов за период [from, to),
// упорядоченных по убыванию баллов за период. Нулевые границы означают отсутствие ограничения.
func (r *PostgresRepository) GetLeaderboard(ctx context.Context, from, to *time.Time, limit int) ([]LeaderboardRow, error) {
	var res []LeaderboardRow

	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT m.id, m.name, m.points,
			        COALESCE(SUM(c.points) FILTER (
			            WHERE ($1::timestamptz IS NULL OR c.recorded_at >= $1)
			              AND ($2::timestamptz IS NULL OR c.recorded_at < $2)
			        ), 0) AS period_points,
			        COUNT(c.id) FILTER (WHERE c.action = $3) AS lead_events,
			        COUNT(c.id) FILTER (WHERE c.action = $4) AS sponsorships
			 FROM members m
			 LEFT JOIN contributions c ON c.member_id = m.id
			 GROUP BY m.id, m.name, m.points
			 ORDER BY period_points DESC, m.points DESC, m.id
			 LIMIT $5`,
			from, to,
			string(model.ActionLeadEvent), string(model.ActionBringSponsorship),
			limit,
		)
		if err != nil {
			return fmt.Errorf("select leaderboard: %w", err)
		}
		defer rows.Close()

		res = res[:0]
		for rows.Next() {
			var row LeaderboardRow
			if err := rows.Scan(&row.MemberID, &row.Name, &row.TotalPoints, &row.PeriodPoints, &row.LeadEvents, &row.Sponsorships); err != nil {
				return fmt.Errorf("scan leaderboard row: %w", err)
			}
			res = append(res, row)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// GetContributionsByMember возвращает вклады участника, начиная с самых свежих.
func (r *PostgresRepository) GetContributionsByMember(ctx context.Context, memberID int64) ([]model.Contribution, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, member_id, action, points, recorded_at
		 FROM contributions
		 WHERE member_id = $1
		 ORDER BY recorded_at DESC`,
		memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("select contributions: %w", err)
	}
	defer rows.Close()

	var res []model.Contribution
	for rows.Next() {
		var (
			c      model.Contribution
			action string
		)
		if err := rows.Scan(&c.ID, &c.MemberID, &action, &c.Points, &c.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		c.Action = model.ActionType(action)
		res = append(res, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CountMembersWithMorePoints возвращает количество участников со счётом строго больше указанного.
func (r *PostgresRepository) CountMembersWithMorePoints(ctx context.Context, points int64) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM members WHERE points > $1`,
		points,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return count, nil
}
