package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	VoteLike    = "like"
	VoteDislike = "dislike"
)

type RatingRepo struct {
	pool *pgxpool.Pool
}

type RatingTally struct {
	Likes    int
	Dislikes int
	UserVote *string
}

func NewRatingRepo(pool *pgxpool.Pool) *RatingRepo {
	return &RatingRepo{pool: pool}
}

func (r *RatingRepo) UpsertVote(ctx context.Context, bookID, userUID, vote string) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	bookID = strings.TrimSpace(bookID)
	userUID = strings.TrimSpace(userUID)
	vote = strings.ToLower(strings.TrimSpace(vote))
	if bookID == "" || userUID == "" {
		return fmt.Errorf("invalid vote payload")
	}
	if vote != VoteLike && vote != VoteDislike {
		return fmt.Errorf("unsupported vote type: %s", vote)
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO ratings (book_id, user_uid, vote, voted_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (book_id, user_uid) DO UPDATE
SET vote = EXCLUDED.vote, voted_at = NOW()
`, bookID, userUID, vote); err != nil {
		return fmt.Errorf("upsert vote: %w", err)
	}

	return nil
}

func (r *RatingRepo) TallyForBook(ctx context.Context, bookID, userUID string) (RatingTally, error) {
	if r.pool == nil {
		return RatingTally{}, fmt.Errorf("postgres pool is nil")
	}
	bookID = strings.TrimSpace(bookID)
	if bookID == "" {
		return RatingTally{}, fmt.Errorf("invalid book id")
	}

	var tally RatingTally
	err := r.pool.QueryRow(ctx, `
SELECT
	COUNT(*) FILTER (WHERE vote = 'like'),
	COUNT(*) FILTER (WHERE vote = 'dislike')
FROM ratings
WHERE book_id = $1
`, bookID).Scan(&tally.Likes, &tally.Dislikes)
	if err != nil {
		return RatingTally{}, fmt.Errorf("tally votes: %w", err)
	}

	userUID = strings.TrimSpace(userUID)
	if userUID == "" {
		return tally, nil
	}

	var vote string
	err = r.pool.QueryRow(ctx, `
SELECT vote FROM ratings WHERE book_id = $1 AND user_uid = $2 LIMIT 1
`, bookID, userUID).Scan(&vote)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tally, nil
		}
		return RatingTally{}, fmt.Errorf("load user vote: %w", err)
	}

	tally.UserVote = &vote
	return tally, nil
}
