package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ayush/helsa/backend/internal/models"
)

// InsertSearch writes the search and all of its children in one transaction.
// Either everything is stored or nothing is.
func (s *PostgresStore) InsertSearch(ctx context.Context, search *models.Search) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("insert search: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var sex *string
	if search.SexAtBirth != nil {
		v := string(*search.SexAtBirth)
		sex = &v
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO searches
			(id, user_id, symptoms, duration, patient_age_years, sex_at_birth, response_tone, language_style)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		search.ID, search.UserID, search.Symptoms, search.Duration, search.PatientAgeYears,
		sex, string(search.ResponseTone), string(search.LanguageStyle),
	).Scan(&search.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert search: %w", err)
	}

	for _, d := range search.Diagnoses {
		if _, err := tx.Exec(ctx,
			`INSERT INTO search_diagnoses (id, search_id, position, name, description, recommended_action)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			d.ID, search.ID, d.Position, d.Name, d.Description, d.RecommendedAction,
		); err != nil {
			return fmt.Errorf("insert search diagnose: %w", err)
		}
	}

	for _, img := range search.Images {
		if _, err := tx.Exec(ctx,
			`INSERT INTO search_images (id, search_id, position, image_src, width, height)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			img.ID, search.ID, img.Position, img.ImageSrc, img.Width, img.Height,
		); err != nil {
			return fmt.Errorf("insert search image: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("insert search: commit: %w", err)
	}
	return nil
}

const searchCols = `id, user_id, symptoms, duration, patient_age_years, sex_at_birth, response_tone, language_style, created_at`

func scanSearch(row pgx.Row) (*models.Search, error) {
	var (
		sr          models.Search
		sex         *string
		tone, style string
	)
	if err := row.Scan(&sr.ID, &sr.UserID, &sr.Symptoms, &sr.Duration, &sr.PatientAgeYears,
		&sex, &tone, &style, &sr.CreatedAt); err != nil {
		return nil, err
	}
	if sex != nil {
		v := models.SexAtBirth(*sex)
		sr.SexAtBirth = &v
	}
	sr.ResponseTone = models.ResponseTone(tone)
	sr.LanguageStyle = models.LanguageStyle(style)
	sr.Diagnoses = []models.SearchDiagnose{}
	sr.Images = []models.SearchImage{}
	return &sr, nil
}

// ListSearches returns the user's searches, newest first, with children.
func (s *PostgresStore) ListSearches(ctx context.Context, userID uuid.UUID) ([]models.Search, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+searchCols+` FROM searches WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list searches: %w", err)
	}
	defer rows.Close()

	var (
		searches []models.Search
		ids      []uuid.UUID
	)
	for rows.Next() {
		sr, err := scanSearch(rows)
		if err != nil {
			return nil, fmt.Errorf("list searches: scan: %w", err)
		}
		searches = append(searches, *sr)
		ids = append(ids, sr.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list searches: %w", err)
	}
	if len(searches) == 0 {
		return []models.Search{}, nil
	}

	index := make(map[uuid.UUID]int, len(searches))
	for i := range searches {
		index[searches[i].ID] = i
	}
	if err := s.loadChildren(ctx, ids, func(id uuid.UUID) *models.Search {
		return &searches[index[id]]
	}); err != nil {
		return nil, err
	}
	return searches, nil
}

// GetSearch returns one search owned by userID.
func (s *PostgresStore) GetSearch(ctx context.Context, id, userID uuid.UUID) (*models.Search, error) {
	sr, err := scanSearch(s.db.QueryRow(ctx,
		`SELECT `+searchCols+` FROM searches WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get search: %w", err)
	}
	if err := s.loadChildren(ctx, []uuid.UUID{sr.ID}, func(uuid.UUID) *models.Search { return sr }); err != nil {
		return nil, err
	}
	return sr, nil
}

func (s *PostgresStore) loadChildren(ctx context.Context, ids []uuid.UUID, parent func(uuid.UUID) *models.Search) error {
	rows, err := s.db.Query(ctx,
		`SELECT id, search_id, position, name, description, recommended_action
		 FROM search_diagnoses WHERE search_id = ANY($1) ORDER BY search_id, position`, ids)
	if err != nil {
		return fmt.Errorf("load diagnoses: %w", err)
	}
	for rows.Next() {
		var d models.SearchDiagnose
		if err := rows.Scan(&d.ID, &d.SearchID, &d.Position, &d.Name, &d.Description, &d.RecommendedAction); err != nil {
			rows.Close()
			return fmt.Errorf("load diagnoses: scan: %w", err)
		}
		p := parent(d.SearchID)
		p.Diagnoses = append(p.Diagnoses, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load diagnoses: %w", err)
	}

	rows, err = s.db.Query(ctx,
		`SELECT id, search_id, position, image_src, width, height
		 FROM search_images WHERE search_id = ANY($1) ORDER BY search_id, position`, ids)
	if err != nil {
		return fmt.Errorf("load images: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var img models.SearchImage
		if err := rows.Scan(&img.ID, &img.SearchID, &img.Position, &img.ImageSrc, &img.Width, &img.Height); err != nil {
			return fmt.Errorf("load images: scan: %w", err)
		}
		p := parent(img.SearchID)
		p.Images = append(p.Images, img)
	}
	return rows.Err()
}
