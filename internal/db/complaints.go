package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"jalrakshak-monitor/internal/models"

	"github.com/google/uuid"
)

const complaintColumns = `id, type, location, description, status, admin_response, owner_id, owner_email, created_at`

// ComplaintQuery represents filters for complaint listings
type ComplaintQuery struct {
	Status models.Status
	Limit  int
	Offset int
}

// CreateComplaint stores a new complaint and assigns its id and creation time
func (db *Database) CreateComplaint(in models.NewComplaint) (*models.Complaint, error) {
	now := time.Now().UTC()
	created := now
	if in.CreatedAt != nil && !in.CreatedAt.IsZero() {
		created = in.CreatedAt.UTC()
	}

	c := &models.Complaint{
		ID:          uuid.NewString(),
		Type:        models.ComplaintType(strings.TrimSpace(string(in.Type))),
		Location:    strings.TrimSpace(in.Location),
		Description: in.Description,
		Status:      models.StatusOpen,
		OwnerID:     in.OwnerID,
		OwnerEmail:  in.OwnerEmail,
		CreatedAt:   created,
	}

	query := `
		INSERT INTO complaints
		(id, type, location, description, status, owner_id, owner_email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.conn.Exec(query,
		c.ID, c.Type, c.Location, c.Description, c.Status,
		nullString(c.OwnerID), nullString(c.OwnerEmail), c.CreatedAt, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert complaint: %w", err)
	}
	return c, nil
}

// GetComplaint retrieves a complaint by ID
func (db *Database) GetComplaint(id string) (*models.Complaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE id = ?`

	c, err := scanComplaint(db.conn.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListComplaints returns complaints newest first
func (db *Database) ListComplaints(q ComplaintQuery) ([]models.Complaint, error) {
	var args []interface{}
	query := `SELECT ` + complaintColumns + ` FROM complaints`

	if q.Status != "" {
		query += " WHERE status = ?"
		args = append(args, q.Status)
	}

	query += " ORDER BY created_at DESC"

	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
		if q.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", q.Offset)
		}
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []models.Complaint{}
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *c)
	}
	return results, rows.Err()
}

// UpdateComplaintStatus applies a status change. A nil admin response keeps
// the stored one.
func (db *Database) UpdateComplaintStatus(id string, upd models.StatusUpdate) (*models.Complaint, error) {
	var response sql.NullString
	if upd.AdminResponse != nil {
		response = sql.NullString{String: *upd.AdminResponse, Valid: true}
	}

	query := `
		UPDATE complaints
		SET status = ?, admin_response = COALESCE(?, admin_response), updated_at = ?
		WHERE id = ?
	`
	result, err := db.conn.Exec(query, upd.Status, response, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("update complaint: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, models.ErrNotFound
	}
	return db.GetComplaint(id)
}

// SeedComplaints inserts records that do not exist yet, keeping their ids
func (db *Database) SeedComplaints(records []models.Complaint) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO complaints
		(id, type, location, description, status, admin_response, owner_id, owner_email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	var count int64
	for _, c := range records {
		res, err := stmt.Exec(
			c.ID, c.Type, c.Location, c.Description, c.Status, nullString(c.AdminResponse),
			nullString(c.OwnerID), nullString(c.OwnerEmail), c.CreatedAt.UTC(), now,
		)
		if err != nil {
			return count, err
		}
		n, _ := res.RowsAffected()
		count += n
	}

	return count, tx.Commit()
}

// GetStats returns complaint counts by status
func (db *Database) GetStats() (map[string]interface{}, error) {
	stats := map[string]interface{}{
		"total_complaints": int64(0),
		"open":             int64(0),
		"in_progress":      int64(0),
		"resolved":         int64(0),
	}

	rows, err := db.conn.Query(`SELECT status, COUNT(*) FROM complaints GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var total int64
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		total += n
		switch models.Status(status) {
		case models.StatusOpen:
			stats["open"] = n
		case models.StatusInProgress:
			stats["in_progress"] = n
		case models.StatusResolved:
			stats["resolved"] = n
		}
	}
	stats["total_complaints"] = total
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanComplaint(row rowScanner) (*models.Complaint, error) {
	var c models.Complaint
	var response, ownerID, ownerEmail sql.NullString
	err := row.Scan(
		&c.ID, &c.Type, &c.Location, &c.Description, &c.Status,
		&response, &ownerID, &ownerEmail, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.AdminResponse = response.String
	c.OwnerID = ownerID.String
	c.OwnerEmail = ownerEmail.String
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
