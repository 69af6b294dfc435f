package session

import (
	"context"
	"database/sql"
	"fmt"

	"kontratago/internal/models"
)

// Database write-through. Reads happen once at startup; writes follow
// every mutation and are logged-only on failure so the in-memory
// state stays usable without a working database.

func (s *Store) loadAll(ctx context.Context) ([]*models.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, pinned, archived, created_at, updated_at FROM sessions`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*models.Session)
	var sessions []*models.Session
	for rows.Next() {
		se := new(models.Session)
		if err := rows.Scan(&se.ID, &se.Title, &se.Pinned, &se.Archived, &se.CreatedAt, &se.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		byID[se.ID] = se
		sessions = append(sessions, se)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	msgRows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, file_name, downloadable, created_at
		 FROM messages ORDER BY session_id, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer msgRows.Close()

	for msgRows.Next() {
		m := new(models.Message)
		var fileName sql.NullString
		if err := msgRows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &fileName, &m.Downloadable, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.FileName = fileName.String
		if se, ok := byID[m.SessionID]; ok {
			se.Messages = append(se.Messages, m)
		}
	}
	return sessions, msgRows.Err()
}

func (s *Store) persistSession(ctx context.Context, se *models.Session) {
	if s.db == nil {
		return
	}
	// update-then-insert keeps the statement portable across sqlite
	// and mysql.
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET title = ?, pinned = ?, archived = ?, updated_at = ? WHERE id = ?`,
		se.Title, se.Pinned, se.Archived, se.UpdatedAt, se.ID,
	)
	if err != nil {
		logPersistErr("update session", err)
		return
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, title, pinned, archived, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		se.ID, se.Title, se.Pinned, se.Archived, se.CreatedAt, se.UpdatedAt,
	)
	logPersistErr("insert session", err)
}

func (s *Store) persistMessage(ctx context.Context, se *models.Session, m *models.Message) {
	if s.db == nil {
		return
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, role, content, file_name, downloadable, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.SessionID, m.Role, m.Content, m.FileName, m.Downloadable, m.CreatedAt,
	)
	logPersistErr("insert message", err)
	s.persistSession(ctx, se)
}

func (s *Store) deleteSessionRows(ctx context.Context, id int64) {
	if s.db == nil {
		return
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logPersistErr("begin delete", err)
		return
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		logPersistErr("delete messages", err)
		tx.Rollback()
		return
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		logPersistErr("delete session", err)
		tx.Rollback()
		return
	}
	logPersistErr("commit delete", tx.Commit())
}
