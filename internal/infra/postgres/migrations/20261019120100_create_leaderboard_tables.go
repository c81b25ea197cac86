package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS quiz_submissions (
    id            BIGSERIAL PRIMARY KEY,
    user_id       BIGINT NOT NULL,
    quiz_id       BIGINT NOT NULL REFERENCES quizzes(id),
    score         INT NOT NULL,
    submitted_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS quiz_submissions_user_id_idx ON quiz_submissions (user_id);

CREATE TABLE IF NOT EXISTS user_ranks (
    user_id      BIGINT PRIMARY KEY,
    rank         INT NOT NULL,
    total_score  INT NOT NULL,
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS user_ranks_total_score_idx ON user_ranks (total_score DESC);`)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `
DROP TABLE IF EXISTS user_ranks;
DROP TABLE IF EXISTS quiz_submissions;`)
			return err
		},
	)
}
