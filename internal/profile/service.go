package profile

import (
	"context"
	"time"

	"backend-runpulse/internal/db"
	"backend-runpulse/internal/stats"
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) Get(ctx context.Context, userID string) (Profile, error) {
	row := s.db.QueryRow(ctx, `
		SELECT user_id, weight_kg, age, sex, updated_at
		FROM profiles WHERE user_id=$1
	`, userID)
	var p Profile
	if err := row.Scan(&p.UserID, &p.WeightKg, &p.Age, &p.Sex, &p.UpdatedAt); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (s *Service) Upsert(ctx context.Context, p Profile) (Profile, error) {
	p.UpdatedAt = time.Now()
	_, err := s.db.Exec(ctx, `
		INSERT INTO profiles (user_id, weight_kg, age, sex, updated_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (user_id) DO UPDATE SET weight_kg=EXCLUDED.weight_kg, age=EXCLUDED.age, sex=EXCLUDED.sex, updated_at=EXCLUDED.updated_at
	`, p.UserID, p.WeightKg, p.Age, p.Sex, p.UpdatedAt)
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

// StatsProfile resolves the calorie profile for a user, falling back to the
// documented defaults (70 kg, 30 y) when no row exists.
func (s *Service) StatsProfile(ctx context.Context, userID string) stats.Profile {
	p, err := s.Get(ctx, userID)
	if err != nil {
		// includes pgx.ErrNoRows for users who never saved a profile
		return stats.DefaultProfile()
	}
	return stats.Profile{WeightKg: p.WeightKg, Age: p.Age, Sex: p.Sex}
}
