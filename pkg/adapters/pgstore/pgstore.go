// Package pgstore persists templates, generated-visual records and user
// profiles in PostgreSQL.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/postergen/pkg/pipeline"
	"github.com/user/postergen/pkg/ports"
)

// Querier is the subset of *pgxpool.Pool the store uses.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connect opens a connection pool for dsn.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS types_contenus (
	id TEXT PRIMARY KEY,
	nom TEXT NOT NULL,
	description TEXT,
	icone TEXT,
	ordre INTEGER NOT NULL DEFAULT 0,
	actif BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS templates (
	id TEXT PRIMARY KEY,
	type_contenu_id TEXT REFERENCES types_contenus(id),
	nom TEXT NOT NULL,
	description TEXT,
	html_structure TEXT NOT NULL,
	css_styles TEXT NOT NULL,
	champs_config JSONB NOT NULL DEFAULT '[]',
	preview_url TEXT,
	largeur INTEGER NOT NULL,
	hauteur INTEGER NOT NULL,
	format TEXT NOT NULL DEFAULT 'png',
	actif BOOLEAN NOT NULL DEFAULT TRUE,
	ordre INTEGER NOT NULL DEFAULT 0,
	created_by TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS visuels_generes (
	id TEXT PRIMARY KEY,
	template_id TEXT,
	user_id TEXT,
	contenu_json JSONB NOT NULL,
	image_url TEXT,
	format_export TEXT NOT NULL,
	largeur INTEGER,
	hauteur INTEGER,
	taille_fichier BIGINT,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_visuels_generes_user ON visuels_generes(user_id, created_at DESC);
CREATE TABLE IF NOT EXISTS user_profiles (
	id TEXT PRIMARY KEY,
	nom_complet TEXT,
	delegation TEXT,
	role TEXT NOT NULL,
	avatar_url TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);`

// Store implements the template, record and profile stores on PostgreSQL.
type Store struct {
	db Querier
}

// New creates a Store over db.
func New(db Querier) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the tables when they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const templateColumns = `id, COALESCE(type_contenu_id, ''), nom, COALESCE(description, ''), html_structure, css_styles,
	champs_config, COALESCE(preview_url, ''), largeur, hauteur, format, actif, ordre, COALESCE(created_by, '')`

func scanTemplate(row pgx.Row) (pipeline.TemplateDefinition, error) {
	var (
		tpl    pipeline.TemplateDefinition
		fields []byte
	)
	if err := row.Scan(&tpl.ID, &tpl.ContentTypeID, &tpl.Name, &tpl.Description, &tpl.HTMLStructure, &tpl.CSSStyles,
		&fields, &tpl.PreviewURL, &tpl.Width, &tpl.Height, &tpl.Format, &tpl.Active, &tpl.Order, &tpl.CreatedBy); err != nil {
		return tpl, err
	}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &tpl.FieldSchema); err != nil {
			return tpl, fmt.Errorf("decode champs_config of %s: %w", tpl.ID, err)
		}
	}
	return tpl, nil
}

func (s *Store) FindTemplate(ctx context.Context, id string) (*pipeline.TemplateDefinition, error) {
	tpl, err := scanTemplate(s.db.QueryRow(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select template: %w", err)
	}
	return &tpl, nil
}

func (s *Store) ListTemplates(ctx context.Context, contentTypeID string) ([]pipeline.TemplateDefinition, error) {
	rows, err := s.db.Query(ctx, `SELECT `+templateColumns+` FROM templates
		WHERE actif AND ($1 = '' OR type_contenu_id = $1)
		ORDER BY ordre, id`, contentTypeID)
	if err != nil {
		return nil, fmt.Errorf("select templates: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (pipeline.TemplateDefinition, error) {
		return scanTemplate(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan templates: %w", err)
	}
	return out, nil
}

func (s *Store) ListContentTypes(ctx context.Context) ([]pipeline.ContentType, error) {
	rows, err := s.db.Query(ctx, `SELECT id, nom, COALESCE(description, ''), COALESCE(icone, ''), ordre, actif
		FROM types_contenus WHERE actif ORDER BY ordre, id`)
	if err != nil {
		return nil, fmt.Errorf("select content types: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (pipeline.ContentType, error) {
		var ct pipeline.ContentType
		err := row.Scan(&ct.ID, &ct.Name, &ct.Description, &ct.Icon, &ct.Order, &ct.Active)
		return ct, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan content types: %w", err)
	}
	return out, nil
}

func (s *Store) InsertGeneratedVisual(ctx context.Context, rec pipeline.GeneratedVisualRecord) error {
	content, err := json.Marshal(rec.Content)
	if err != nil {
		return fmt.Errorf("encode contenu_json: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO visuels_generes (id, template_id, user_id, contenu_json, image_url, format_export, largeur, hauteur, taille_fichier, created_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4::jsonb, NULLIF($5, ''), $6, $7, $8, $9, $10)
	`, rec.ID, rec.TemplateID, rec.UserID, string(content), rec.ImageURL, string(rec.FormatExport),
		rec.Width, rec.Height, rec.FileSize, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert generated visual: %w", err)
	}
	return nil
}

func (s *Store) ListGeneratedVisuals(ctx context.Context, userID string, limit int) ([]pipeline.GeneratedVisualRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, COALESCE(template_id, ''), COALESCE(user_id, ''), contenu_json, COALESCE(image_url, ''), format_export,
			COALESCE(largeur, 0), COALESCE(hauteur, 0), COALESCE(taille_fichier, 0), created_at
		FROM visuels_generes WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("select generated visuals: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (pipeline.GeneratedVisualRecord, error) {
		return scanRecord(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan generated visuals: %w", err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (pipeline.GeneratedVisualRecord, error) {
	var (
		rec     pipeline.GeneratedVisualRecord
		content []byte
		format  string
	)
	if err := row.Scan(&rec.ID, &rec.TemplateID, &rec.UserID, &content, &rec.ImageURL, &format,
		&rec.Width, &rec.Height, &rec.FileSize, &rec.CreatedAt); err != nil {
		return rec, err
	}
	rec.FormatExport = pipeline.ExportFormat(format)
	if err := decodeContent(content, &rec.Content); err != nil {
		return rec, fmt.Errorf("decode contenu_json of %s: %w", rec.ID, err)
	}
	return rec, nil
}

// decodeContent reads a JSON object whose values may be strings, numbers or
// booleans into a FormState.
func decodeContent(data []byte, dst *pipeline.FormState) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(pipeline.FormState, len(raw))
	for k, v := range raw {
		switch v := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = v
		default:
			out[k] = pipeline.FieldSpec{DefaultValue: v}.DefaultString()
		}
	}
	*dst = out
	return nil
}

func (s *Store) CreateProfile(ctx context.Context, p pipeline.UserProfile) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_profiles (id, nom_complet, delegation, role, avatar_url, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), $6, $6)
	`, p.ID, p.FullName, p.Delegation, p.Role, p.AvatarURL, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (s *Store) FindProfile(ctx context.Context, id string) (*pipeline.UserProfile, error) {
	var p pipeline.UserProfile
	err := s.db.QueryRow(ctx, `
		SELECT id, COALESCE(nom_complet, ''), COALESCE(delegation, ''), role, COALESCE(avatar_url, ''), created_at
		FROM user_profiles WHERE id = $1
	`, id).Scan(&p.ID, &p.FullName, &p.Delegation, &p.Role, &p.AvatarURL, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select profile: %w", err)
	}
	return &p, nil
}

var (
	_ ports.TemplateStore     = (*Store)(nil)
	_ ports.VisualRecordStore = (*Store)(nil)
	_ ports.ProfileStore      = (*Store)(nil)
	_ Querier                 = (*pgxpool.Pool)(nil)
)
