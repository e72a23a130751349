package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/videoannot/ingestworker/internal/domain/model"
	"github.com/videoannot/ingestworker/internal/domain/repository"
)

func TestVideoRepository_Create(t *testing.T) {
	tests := []struct {
		name    string
		video   *model.Video
		mockFn  func(mock pgxmock.PgxPoolIface, video *model.Video)
		wantErr error
	}{
		{
			name: "successful creation",
			video: &model.Video{
				ID:          uuid.New(),
				VideoUID:    uuid.New().String(),
				Status:      model.StatusProcessing,
				StoragePath: "uploads/abc.mp4",
				CreatedAt:   time.Now(),
				UpdatedAt:   time.Now(),
			},
			mockFn: func(mock pgxmock.PgxPoolIface, video *model.Video) {
				mock.ExpectExec("INSERT INTO videos").
					WithArgs(
						video.ID,
						video.VideoUID,
						video.Status.String(),
						video.StoragePath,
						video.HLSPath,
						video.StructuredTranscriptPath,
						pgxmock.AnyArg(),
						pgxmock.AnyArg(),
					).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
			wantErr: nil,
		},
		{
			name: "duplicate video error",
			video: &model.Video{
				ID:          uuid.New(),
				VideoUID:    uuid.New().String(),
				Status:      model.StatusProcessing,
				StoragePath: "uploads/abc.mp4",
				CreatedAt:   time.Now(),
				UpdatedAt:   time.Now(),
			},
			mockFn: func(mock pgxmock.PgxPoolIface, video *model.Video) {
				mock.ExpectExec("INSERT INTO videos").
					WithArgs(
						video.ID,
						video.VideoUID,
						video.Status.String(),
						video.StoragePath,
						video.HLSPath,
						video.StructuredTranscriptPath,
						pgxmock.AnyArg(),
						pgxmock.AnyArg(),
					).
					WillReturnError(&pgconn.PgError{Code: "23505"})
			},
			wantErr: repository.ErrDuplicateVideo,
		},
		{
			name: "database error",
			video: &model.Video{
				ID:          uuid.New(),
				VideoUID:    uuid.New().String(),
				Status:      model.StatusProcessing,
				StoragePath: "uploads/abc.mp4",
				CreatedAt:   time.Now(),
				UpdatedAt:   time.Now(),
			},
			mockFn: func(mock pgxmock.PgxPoolIface, video *model.Video) {
				mock.ExpectExec("INSERT INTO videos").
					WithArgs(
						video.ID,
						video.VideoUID,
						video.Status.String(),
						video.StoragePath,
						video.HLSPath,
						video.StructuredTranscriptPath,
						pgxmock.AnyArg(),
						pgxmock.AnyArg(),
					).
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: errors.New("failed to create video"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer mock.Close()

			tt.mockFn(mock, tt.video)

			repo := NewVideoRepository(mock)
			err = repo.Create(context.Background(), tt.video)

			if tt.wantErr != nil {
				if err == nil {
					t.Errorf("Create() expected error, got nil")
					return
				}
				if !errors.Is(err, tt.wantErr) && !containsError(err, tt.wantErr) {
					t.Errorf("Create() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Errorf("Create() unexpected error = %v", err)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestVideoRepository_GetByVideoUID(t *testing.T) {
	now := time.Now()
	videoID := uuid.New()
	videoUID := uuid.New().String()

	tests := []struct {
		name    string
		mockFn  func(mock pgxmock.PgxPoolIface)
		want    *model.Video
		wantErr error
	}{
		{
			name: "successful retrieval",
			mockFn: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows([]string{
					"id", "video_uid", "status", "storage_path", "hls_path", "structured_transcript_path", "created_at", "updated_at",
				}).AddRow(
					videoID, videoUID, "PROCESSING", "uploads/abc.mp4", nil, nil, now, now,
				)
				mock.ExpectQuery("SELECT (.+) FROM videos").WithArgs(videoUID).WillReturnRows(rows)
			},
			want: &model.Video{
				ID:          videoID,
				VideoUID:    videoUID,
				Status:      model.StatusProcessing,
				StoragePath: "uploads/abc.mp4",
				CreatedAt:   now,
				UpdatedAt:   now,
			},
		},
		{
			name: "not found",
			mockFn: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows([]string{
					"id", "video_uid", "status", "storage_path", "hls_path", "structured_transcript_path", "created_at", "updated_at",
				})
				mock.ExpectQuery("SELECT (.+) FROM videos").WithArgs(videoUID).WillReturnRows(rows)
			},
			wantErr: repository.ErrVideoNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer mock.Close()

			tt.mockFn(mock)

			repo := NewVideoRepository(mock)
			got, err := repo.GetByVideoUID(context.Background(), videoUID)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("GetByVideoUID() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("GetByVideoUID() unexpected error = %v", err)
			}
			if got.VideoUID != tt.want.VideoUID || got.Status != tt.want.Status {
				t.Errorf("GetByVideoUID() = %+v, want %+v", got, tt.want)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestVideoRepository_Update_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer mock.Close()

	video := &model.Video{
		ID:          uuid.New(),
		VideoUID:    uuid.New().String(),
		Status:      model.StatusReady,
		StoragePath: "uploads/abc.mp4",
	}

	mock.ExpectExec("UPDATE videos").
		WithArgs(video.ID, video.Status.String(), video.StoragePath, video.HLSPath, video.StructuredTranscriptPath, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewVideoRepository(mock)
	err = repo.Update(context.Background(), video)
	if !errors.Is(err, repository.ErrVideoNotFound) {
		t.Errorf("Update() error = %v, want ErrVideoNotFound", err)
	}
}

func containsError(err, expected error) bool {
	if err == nil || expected == nil {
		return false
	}
	return err.Error() != "" && expected.Error() != "" &&
		len(err.Error()) >= len(expected.Error()) &&
		err.Error()[:len(expected.Error())] == expected.Error()[:len(expected.Error())]
}
