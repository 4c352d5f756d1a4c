package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a transcription row does not exist.
var ErrNotFound = errors.New("transcription not found")

// TranscriptionRow is the input for inserting a finished transcript.
type TranscriptionRow struct {
	JobID            string
	Filename         string
	Language         string
	DetectedLanguage string
	ModelSize        string
	NativeText       string
	UrduText         string
	EnglishText      string
	Segments         json.RawMessage // native segments with timestamps
	UrduUnavailable  bool
	UrduIsNative     bool
	Warning          string
	AudioDuration    float64
	AudioKey         string // storage key of the archived source audio
}

// TranscriptionAPI is the transcript representation for API responses.
type TranscriptionAPI struct {
	ID               int64           `json:"id"`
	JobID            string          `json:"job_id"`
	CreatedAt        time.Time       `json:"created_at"`
	Filename         string          `json:"filename"`
	Language         string          `json:"language"`
	DetectedLanguage string          `json:"detected_language,omitempty"`
	ModelSize        string          `json:"model_size"`
	NativeText       string          `json:"native_text"`
	UrduText         string          `json:"urdu_text"`
	EnglishText      string          `json:"english_text"`
	Segments         json.RawMessage `json:"segments,omitempty"`
	UrduUnavailable  bool            `json:"urdu_unavailable,omitempty"`
	UrduIsNative     bool            `json:"urdu_is_native,omitempty"`
	Warning          string          `json:"warning,omitempty"`
	AudioDuration    float64         `json:"audio_duration,omitempty"`
	AudioKey         string          `json:"audio_key,omitempty"`
}

// TranscriptionFilter specifies filters for listing transcripts.
type TranscriptionFilter struct {
	Language  string
	Search    string // substring match across the three text views
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

const transcriptionColumns = `id, job_id, created_at, filename, language, detected_language,
	model_size, native_text, urdu_text, english_text, segments,
	urdu_unavailable, urdu_is_native, warning, audio_duration, audio_key`

// insertTranscriptionSQL upserts on job_id: a re-run replaces every
// data column of the earlier row, keeping only the original
// created_at.
const insertTranscriptionSQL = `
	INSERT INTO transcriptions (
		job_id, filename, language, detected_language, model_size,
		native_text, urdu_text, english_text, segments,
		urdu_unavailable, urdu_is_native, warning, audio_duration, audio_key
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (job_id) DO UPDATE SET
		filename = EXCLUDED.filename,
		language = EXCLUDED.language,
		detected_language = EXCLUDED.detected_language,
		model_size = EXCLUDED.model_size,
		native_text = EXCLUDED.native_text,
		urdu_text = EXCLUDED.urdu_text,
		english_text = EXCLUDED.english_text,
		segments = EXCLUDED.segments,
		urdu_unavailable = EXCLUDED.urdu_unavailable,
		urdu_is_native = EXCLUDED.urdu_is_native,
		warning = EXCLUDED.warning,
		audio_duration = EXCLUDED.audio_duration,
		audio_key = EXCLUDED.audio_key
	RETURNING id`

// InsertTranscription stores a finished transcript and returns its id.
// Re-running the same job id replaces the earlier row.
func (db *DB) InsertTranscription(ctx context.Context, row *TranscriptionRow) (int64, error) {
	var id int64
	err := db.Pool.QueryRow(ctx, insertTranscriptionSQL,
		row.JobID, row.Filename, row.Language, row.DetectedLanguage, row.ModelSize,
		row.NativeText, row.UrduText, row.EnglishText, row.Segments,
		row.UrduUnavailable, row.UrduIsNative, row.Warning, row.AudioDuration, row.AudioKey,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert transcription: %w", err)
	}
	return id, nil
}

// HasFilename reports whether any transcript exists for the given
// source filename. The watch-folder startup scan uses it to skip
// files already processed on a previous run.
func (db *DB) HasFilename(ctx context.Context, filename string) (bool, error) {
	var exists bool
	err := db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM transcriptions WHERE filename = $1)`, filename,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check filename: %w", err)
	}
	return exists, nil
}

// GetTranscription returns one transcript by id.
func (db *DB) GetTranscription(ctx context.Context, id int64) (*TranscriptionAPI, error) {
	var t TranscriptionAPI
	err := db.Pool.QueryRow(ctx,
		`SELECT `+transcriptionColumns+` FROM transcriptions WHERE id = $1`, id,
	).Scan(
		&t.ID, &t.JobID, &t.CreatedAt, &t.Filename, &t.Language, &t.DetectedLanguage,
		&t.ModelSize, &t.NativeText, &t.UrduText, &t.EnglishText, &t.Segments,
		&t.UrduUnavailable, &t.UrduIsNative, &t.Warning, &t.AudioDuration, &t.AudioKey,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTranscriptions returns transcripts matching the filter, newest
// first, along with the total count before pagination.
func (db *DB) ListTranscriptions(ctx context.Context, filter TranscriptionFilter) ([]TranscriptionAPI, int, error) {
	qb := newQueryBuilder()
	if filter.Language != "" {
		qb.Add("language = %s", filter.Language)
	}
	if filter.Search != "" {
		// One parameter reused across the three text views.
		p := fmt.Sprintf("$%d", qb.argIdx)
		qb.Add("(native_text ILIKE %s OR urdu_text ILIKE "+p+" OR english_text ILIKE "+p+")", "%"+filter.Search+"%")
	}
	if filter.StartTime != nil {
		qb.Add("created_at >= %s", *filter.StartTime)
	}
	if filter.EndTime != nil {
		qb.Add("created_at < %s", *filter.EndTime)
	}

	whereClause := qb.WhereClause()

	var total int
	countQuery := "SELECT count(*) FROM transcriptions" + whereClause
	if err := db.Pool.QueryRow(ctx, countQuery, qb.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	dataQuery := fmt.Sprintf(
		`SELECT %s FROM transcriptions%s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		transcriptionColumns, whereClause, limit, filter.Offset,
	)

	rows, err := db.Pool.Query(ctx, dataQuery, qb.Args()...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []TranscriptionAPI
	for rows.Next() {
		var t TranscriptionAPI
		if err := rows.Scan(
			&t.ID, &t.JobID, &t.CreatedAt, &t.Filename, &t.Language, &t.DetectedLanguage,
			&t.ModelSize, &t.NativeText, &t.UrduText, &t.EnglishText, &t.Segments,
			&t.UrduUnavailable, &t.UrduIsNative, &t.Warning, &t.AudioDuration, &t.AudioKey,
		); err != nil {
			return nil, 0, err
		}
		result = append(result, t)
	}
	if result == nil {
		result = []TranscriptionAPI{}
	}
	return result, total, rows.Err()
}

// DeleteTranscription removes one transcript by id.
func (db *DB) DeleteTranscription(ctx context.Context, id int64) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM transcriptions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
