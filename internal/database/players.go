package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/stardrift/server/internal/worldmap"
)

// Sentinel errors for constraint violations callers want to branch on.
var (
	ErrUsernameTaken = errors.New("username already taken")
	ErrEmailTaken    = errors.New("email already registered")
)

// Player is a registered account plus its last known world position, so a
// returning player resumes streaming where they left off.
type Player struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         string
	LastPosition worldmap.Point
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// PlayerStorage handles player persistence.
type PlayerStorage struct {
	db *sql.DB
}

// NewPlayerStorage creates a new player storage instance.
func NewPlayerStorage(db *sql.DB) *PlayerStorage {
	return &PlayerStorage{db: db}
}

// Create inserts a new player and returns it with its assigned ID.
// Duplicate usernames and emails map to the sentinel errors above.
func (s *PlayerStorage) Create(username, email, passwordHash string) (*Player, error) {
	player := &Player{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         "player",
	}
	err := s.db.QueryRow(
		`INSERT INTO players (username, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, role, last_x, last_y, created_at`,
		username, email, passwordHash,
	).Scan(&player.ID, &player.Role, &player.LastPosition.X, &player.LastPosition.Y, &player.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			if strings.Contains(pqErr.Constraint, "email") {
				return nil, ErrEmailTaken
			}
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("creating player: %w", err)
	}
	return player, nil
}

// GetByUsername retrieves a player by username. Returns nil without error
// when no such player exists.
func (s *PlayerStorage) GetByUsername(username string) (*Player, error) {
	return s.scanPlayer(s.db.QueryRow(
		`SELECT id, username, email, password_hash, role, last_x, last_y, created_at, last_login
		 FROM players WHERE username = $1`, username))
}

// GetByID retrieves a player by ID. Returns nil without error when no such
// player exists.
func (s *PlayerStorage) GetByID(id int64) (*Player, error) {
	return s.scanPlayer(s.db.QueryRow(
		`SELECT id, username, email, password_hash, role, last_x, last_y, created_at, last_login
		 FROM players WHERE id = $1`, id))
}

func (s *PlayerStorage) scanPlayer(row *sql.Row) (*Player, error) {
	var player Player
	var lastLogin sql.NullTime
	err := row.Scan(
		&player.ID,
		&player.Username,
		&player.Email,
		&player.PasswordHash,
		&player.Role,
		&player.LastPosition.X,
		&player.LastPosition.Y,
		&player.CreatedAt,
		&lastLogin,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying player: %w", err)
	}
	if lastLogin.Valid {
		player.LastLogin = &lastLogin.Time
	}
	return &player, nil
}

// UpdatePosition records the player's latest world position.
func (s *PlayerStorage) UpdatePosition(id int64, position worldmap.Point) error {
	result, err := s.db.Exec(
		`UPDATE players SET last_x = $2, last_y = $3 WHERE id = $1`,
		id, position.X, position.Y,
	)
	if err != nil {
		return fmt.Errorf("updating player position: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating player position: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("player %d not found", id)
	}
	return nil
}

// TouchLastLogin stamps the player's last successful login.
func (s *PlayerStorage) TouchLastLogin(id int64) error {
	if _, err := s.db.Exec(
		`UPDATE players SET last_login = now() WHERE id = $1`, id,
	); err != nil {
		return fmt.Errorf("updating last login: %w", err)
	}
	return nil
}
