package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// JobRecord is one persisted render job.
type JobRecord struct {
	JobID       string     `json:"job_id"`
	Name        string     `json:"name"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	OutputPath  string     `json:"output_path,omitempty"`
	Transcript  string     `json:"transcript,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// MetadataDB persists render job records in SQLite.
type MetadataDB struct {
	db *sql.DB
}

// NewMetadataDB opens (and migrates) the job metadata database.
func NewMetadataDB(dbPath string) (*MetadataDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS render_jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		output_path TEXT,
		transcript TEXT,
		error TEXT,
		created_at DATETIME NOT NULL,
		completed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_render_jobs_created_at ON render_jobs(created_at);
	CREATE INDEX IF NOT EXISTS idx_render_jobs_status ON render_jobs(status);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create table: %v", err)
	}

	return &MetadataDB{db: db}, nil
}

// SaveJob inserts or replaces a job record.
func (mdb *MetadataDB) SaveJob(rec JobRecord) error {
	query := `
	INSERT INTO render_jobs (job_id, name, kind, status, output_path, transcript, error, created_at, completed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(job_id) DO UPDATE SET
		status = excluded.status,
		output_path = excluded.output_path,
		transcript = excluded.transcript,
		error = excluded.error,
		completed_at = excluded.completed_at
	`

	_, err := mdb.db.Exec(query, rec.JobID, rec.Name, rec.Kind, rec.Status,
		rec.OutputPath, rec.Transcript, rec.Error, rec.CreatedAt, rec.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to save job record: %v", err)
	}
	return nil
}

// GetJob retrieves a job record by ID.
func (mdb *MetadataDB) GetJob(jobID string) (JobRecord, error) {
	query := `
	SELECT job_id, name, kind, status, output_path, transcript, error, created_at, completed_at
	FROM render_jobs WHERE job_id = ?
	`

	var rec JobRecord
	var outputPath, transcript, errMsg sql.NullString
	var completedAt sql.NullTime

	err := mdb.db.QueryRow(query, jobID).Scan(&rec.JobID, &rec.Name, &rec.Kind,
		&rec.Status, &outputPath, &transcript, &errMsg, &rec.CreatedAt, &completedAt)
	if err != nil {
		return JobRecord{}, fmt.Errorf("failed to get job: %v", err)
	}

	rec.OutputPath = outputPath.String
	rec.Transcript = transcript.String
	rec.Error = errMsg.String
	if completedAt.Valid {
		rec.CompletedAt = &completedAt.Time
	}
	return rec, nil
}

// ListJobs returns the most recent job records.
func (mdb *MetadataDB) ListJobs(limit int) ([]JobRecord, error) {
	query := `
	SELECT job_id, name, kind, status, output_path, transcript, error, created_at, completed_at
	FROM render_jobs ORDER BY created_at DESC LIMIT ?
	`

	rows, err := mdb.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %v", err)
	}
	defer rows.Close()

	var records []JobRecord
	for rows.Next() {
		var rec JobRecord
		var outputPath, transcript, errMsg sql.NullString
		var completedAt sql.NullTime

		if err := rows.Scan(&rec.JobID, &rec.Name, &rec.Kind, &rec.Status,
			&outputPath, &transcript, &errMsg, &rec.CreatedAt, &completedAt); err != nil {
			continue
		}
		rec.OutputPath = outputPath.String
		rec.Transcript = transcript.String
		rec.Error = errMsg.String
		if completedAt.Valid {
			rec.CompletedAt = &completedAt.Time
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the database connection.
func (mdb *MetadataDB) Close() error {
	return mdb.db.Close()
}
