package run

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"backend-runpulse/internal/db"
	"backend-runpulse/internal/offline"
	"backend-runpulse/internal/segment"

	"github.com/google/uuid"
)

// Service is the pgx-backed run registration/completion collaborator.
type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// StartRun registers a run and returns its identifier.
func (s *Service) StartRun(ctx context.Context, userID string) (string, error) {
	id := uuid.NewString()
	row := s.db.QueryRow(ctx, `
		INSERT INTO runs (id, user_id, started_at, status)
		VALUES ($1,$2,$3,'active')
		RETURNING id
	`, id, userID, time.Now())
	if err := row.Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

// EndRun stores the final record and computes the reward points, one per
// started 100 m.
func (s *Service) EndRun(ctx context.Context, rec FinalRecord) (ServerRecord, error) {
	points := int(math.Floor(rec.DistanceM / 100))

	_, err := s.db.Exec(ctx, `
		INSERT INTO runs (id, user_id, started_at, status)
		VALUES ($1,$2,$3,'active')
		ON CONFLICT (id) DO NOTHING
	`, rec.RunID, rec.UserID, rec.StartedAt)
	if err != nil {
		return ServerRecord{}, err
	}

	row := s.db.QueryRow(ctx, `
		UPDATE runs
		SET ended_at=$2, status='finished', distance_m=$3, duration_s=$4, paused_s=$5, points=$6
		WHERE id=$1
		RETURNING ended_at
	`, rec.RunID, rec.EndedAt, rec.DistanceM, rec.DurationS, rec.PausedS, points)

	server := ServerRecord{RunID: rec.RunID, Points: points, DistanceM: rec.DistanceM}
	if err := row.Scan(&server.EndedAt); err != nil {
		return ServerRecord{}, err
	}
	return server, nil
}

// UploadSegments persists the run's segment slices.
func (s *Service) UploadSegments(ctx context.Context, runID string, segs []segment.Segment) error {
	for _, seg := range segs {
		locations, err := json.Marshal(seg.Locations)
		if err != nil {
			return err
		}
		_, err = s.db.Exec(ctx, `
			INSERT INTO run_segments (run_id, ordinal, distance_m, duration_s, started_at, heart_rate_bpm, cadence_spm, calorie_share, locations)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (run_id, ordinal) DO NOTHING
		`, runID, seg.ID, seg.DistanceM, seg.DurationSec, seg.StartedAt, seg.HeartRateBpm, seg.CadenceSpm, seg.CalorieShare, locations)
		if err != nil {
			return err
		}
	}
	return nil
}

// Resubmit replays a queued offline item through the matching operation.
func (s *Service) Resubmit(ctx context.Context, item offline.Item) error {
	switch item.Kind {
	case "record":
		var rec FinalRecord
		if err := json.Unmarshal(item.Payload, &rec); err != nil {
			return err
		}
		_, err := s.EndRun(ctx, rec)
		return err
	case "segments":
		var upload SegmentUpload
		if err := json.Unmarshal(item.Payload, &upload); err != nil {
			return err
		}
		return s.UploadSegments(ctx, upload.RunID, upload.Segments)
	}
	return nil
}
