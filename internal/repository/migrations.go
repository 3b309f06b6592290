package repository

import (
	"database/sql"

	"github.com/lopezator/migrator"
)

func Migrate(db *sql.DB) error {
	m, err := migrator.New(
		migrator.Migrations(
			&migrator.Migration{
				Name: "00001_posts",
				Func: func(tx *sql.Tx) error {
					_, err := tx.Exec(`
					CREATE TABLE IF NOT EXISTS posts (
						id text PRIMARY KEY,
						user_id text NOT NULL,
						content text NOT NULL,
						template_id text,
						status text NOT NULL DEFAULT 'draft',
						scheduled_at timestamptz,
						published_at timestamptz,
						external_post_id text,
						publish_error text,
						created_at timestamptz NOT NULL DEFAULT NOW(),
						updated_at timestamptz NOT NULL DEFAULT NOW()
					);
					CREATE INDEX IF NOT EXISTS posts_user_id_idx ON posts (user_id);
					CREATE INDEX IF NOT EXISTS posts_status_scheduled_at_idx ON posts (status, scheduled_at);
					`)
					return err
				},
			},
			&migrator.Migration{
				Name: "00002_social_accounts",
				Func: func(tx *sql.Tx) error {
					_, err := tx.Exec(`
					CREATE TABLE IF NOT EXISTS social_accounts (
						id bigserial PRIMARY KEY,
						user_id text NOT NULL,
						platform text NOT NULL,
						account_id text NOT NULL,
						account_name text NOT NULL DEFAULT '',
						profile_picture_url text NOT NULL DEFAULT '',
						access_token text NOT NULL DEFAULT '',
						refresh_token text NOT NULL DEFAULT '',
						token_expires_at timestamptz NOT NULL,
						account_status text NOT NULL DEFAULT 'connected',
						created_at timestamptz NOT NULL DEFAULT NOW(),
						updated_at timestamptz NOT NULL DEFAULT NOW(),
						UNIQUE (user_id, platform)
					);
					`)
					return err
				},
			},
			&migrator.Migration{
				Name: "00003_posting_history",
				Func: func(tx *sql.Tx) error {
					_, err := tx.Exec(`
					CREATE TABLE IF NOT EXISTS posting_history (
						id bigserial PRIMARY KEY,
						user_id text NOT NULL,
						post_id text NOT NULL,
						external_post_id text,
						error_message text,
						created_at timestamptz NOT NULL DEFAULT NOW()
					);
					CREATE INDEX IF NOT EXISTS posting_history_post_id_idx ON posting_history (post_id);
					`)
					return err
				},
			},
		),
	)
	if err != nil {
		return err
	}
	return m.Migrate(db)
}
