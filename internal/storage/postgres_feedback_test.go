package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
	gormLogger "gorm.io/gorm/logger"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	apperrors "gitlab.com/servio/api/station-feedback-service/internal/apperrors"
	"gitlab.com/servio/api/station-feedback-service/internal/model"
	"gitlab.com/servio/api/station-feedback-service/pkg/logger"
)

func newTestFeedbackRepo(t *testing.T) (*PostgresRepo, sqlmock.Sqlmock) {
	logger.Log = zaptest.NewLogger(t).Named("test")
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	assert.NoError(t, err)
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger:                 gormLogger.Default.LogMode(gormLogger.Silent),
		SkipDefaultTransaction: true,
	})
	assert.NoError(t, err)
	return newRepoWithDB(gormDB), mock
}

const insertFeedbackQuery = `INSERT INTO "feedback" ("phone","is_testimonial","rating_air","rating_washroom","comment","photo_air","photo_washroom","photo_receipt","terms_accepted","ro_number","status","feedback_method","session_id","created_at") VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14) RETURNING "id"`

func TestPostgresRepo_CreateFeedback(t *testing.T) {
	repo, mock := newTestFeedbackRepo(t)
	ctx := context.Background()

	feedback := &model.Feedback{
		Phone:          "15551234567",
		RatingAir:      model.IntPtr(2),
		RatingWashroom: model.IntPtr(1),
		Comment:        "great service",
		TermsAccepted:  true,
		Status:         model.StatusSubmitted,
		Method:         model.MethodWhatsApp,
	}
	rows := sqlmock.NewRows([]string{"id"}).AddRow(int64(42))
	mock.ExpectQuery(insertFeedbackQuery).
		WithArgs(
			feedback.Phone, feedback.IsTestimonial, feedback.RatingAir, feedback.RatingWashroom,
			// Empty photo blobs travel as zero-length bytea, not NULL.
			feedback.Comment, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			feedback.TermsAccepted, feedback.RONumber,
			feedback.Status, feedback.Method, feedback.SessionID, AnyTime{},
		).
		WillReturnRows(rows)

	err := repo.CreateFeedback(ctx, feedback)
	assert.NoError(t, err)
	assert.Equal(t, int64(42), feedback.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_FindFeedbackByID_Found(t *testing.T) {
	repo, mock := newTestFeedbackRepo(t)
	ctx := context.Background()
	now := time.Now()

	cols := []string{"id", "phone", "rating_air", "rating_washroom", "comment", "status", "feedback_method", "created_at"}
	rows := sqlmock.NewRows(cols).AddRow(int64(7), "15551234567", 2, 1, "ok", model.StatusSubmitted, model.MethodWhatsApp, now)
	selectQuery := `SELECT * FROM "feedback" WHERE "feedback"."id" = $1 ORDER BY "feedback"."id" LIMIT $2`
	mock.ExpectQuery(selectQuery).WithArgs(int64(7), 1).WillReturnRows(rows)

	found, err := repo.FindFeedbackByID(ctx, 7)
	assert.NoError(t, err)
	assert.NotNil(t, found)
	assert.Equal(t, int64(7), found.ID)
	assert.Equal(t, "15551234567", found.Phone)
	assert.Equal(t, 2, *found.RatingAir)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_FindFeedbackByID_NotFound(t *testing.T) {
	repo, mock := newTestFeedbackRepo(t)
	ctx := context.Background()

	selectQuery := `SELECT * FROM "feedback" WHERE "feedback"."id" = $1 ORDER BY "feedback"."id" LIMIT $2`
	mock.ExpectQuery(selectQuery).WithArgs(int64(99), 1).WillReturnError(gorm.ErrRecordNotFound)

	found, err := repo.FindFeedbackByID(ctx, 99)
	assert.Nil(t, found)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_UpdateFeedback_Success(t *testing.T) {
	repo, mock := newTestFeedbackRepo(t)
	ctx := context.Background()
	now := time.Now()

	existingCols := []string{"id", "phone", "status", "created_at"}
	existingRows := sqlmock.NewRows(existingCols).AddRow(int64(5), "15551234567", model.StatusPending, now.Add(-time.Hour))
	mock.ExpectBegin()
	selectQuery := `SELECT * FROM "feedback" WHERE "feedback"."id" = $1 ORDER BY "feedback"."id" LIMIT $2 FOR UPDATE`
	mock.ExpectQuery(selectQuery).WithArgs(int64(5), 1).WillReturnRows(existingRows)
	updatePattern := `UPDATE "feedback" SET "status"=$1 WHERE "id" = $2`
	mock.ExpectExec(updatePattern).WithArgs(model.StatusSubmitted, int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateFeedback(ctx, 5, map[string]interface{}{"status": model.StatusSubmitted})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_UpdateFeedback_ResolvedIsImmutable(t *testing.T) {
	repo, mock := newTestFeedbackRepo(t)
	ctx := context.Background()
	now := time.Now()

	existingCols := []string{"id", "phone", "status", "created_at"}
	existingRows := sqlmock.NewRows(existingCols).AddRow(int64(5), "15551234567", model.StatusResolved, now.Add(-time.Hour))
	mock.ExpectBegin()
	selectQuery := `SELECT * FROM "feedback" WHERE "feedback"."id" = $1 ORDER BY "feedback"."id" LIMIT $2 FOR UPDATE`
	mock.ExpectQuery(selectQuery).WithArgs(int64(5), 1).WillReturnRows(existingRows)
	mock.ExpectRollback()

	err := repo.UpdateFeedback(ctx, 5, map[string]interface{}{"comment": "late edit"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_UpdateFeedback_NotFound(t *testing.T) {
	repo, mock := newTestFeedbackRepo(t)
	ctx := context.Background()

	mock.ExpectBegin()
	selectQuery := `SELECT * FROM "feedback" WHERE "feedback"."id" = $1 ORDER BY "feedback"."id" LIMIT $2 FOR UPDATE`
	mock.ExpectQuery(selectQuery).WithArgs(int64(77), 1).WillReturnError(gorm.ErrRecordNotFound)
	mock.ExpectRollback()

	err := repo.UpdateFeedback(ctx, 77, map[string]interface{}{"status": model.StatusResolved})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_UpdateFeedback_StripsCreatedAt(t *testing.T) {
	repo, mock := newTestFeedbackRepo(t)
	ctx := context.Background()
	now := time.Now()

	existingCols := []string{"id", "phone", "status", "created_at"}
	existingRows := sqlmock.NewRows(existingCols).AddRow(int64(5), "15551234567", model.StatusPending, now.Add(-time.Hour))
	mock.ExpectBegin()
	selectQuery := `SELECT * FROM "feedback" WHERE "feedback"."id" = $1 ORDER BY "feedback"."id" LIMIT $2 FOR UPDATE`
	mock.ExpectQuery(selectQuery).WithArgs(int64(5), 1).WillReturnRows(existingRows)
	updatePattern := `UPDATE "feedback" SET "comment"=$1 WHERE "id" = $2`
	mock.ExpectExec(updatePattern).WithArgs("edited", int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateFeedback(ctx, 5, map[string]interface{}{"comment": "edited", "created_at": now})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_DeleteFeedback_Success(t *testing.T) {
	repo, mock := newTestFeedbackRepo(t)
	ctx := context.Background()

	deleteQuery := `DELETE FROM "feedback" WHERE "feedback"."id" = $1`
	mock.ExpectExec(deleteQuery).WithArgs(int64(9)).WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.DeleteFeedback(ctx, 9)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_DeleteFeedback_NotFound(t *testing.T) {
	repo, mock := newTestFeedbackRepo(t)
	ctx := context.Background()

	deleteQuery := `DELETE FROM "feedback" WHERE "feedback"."id" = $1`
	mock.ExpectExec(deleteQuery).WithArgs(int64(9)).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteFeedback(ctx, 9)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_FindAllFeedback(t *testing.T) {
	repo, mock := newTestFeedbackRepo(t)
	ctx := context.Background()
	now := time.Now()

	cols := []string{"id", "phone", "status", "created_at"}
	rows := sqlmock.NewRows(cols).
		AddRow(int64(2), "15551111111", model.StatusSubmitted, now).
		AddRow(int64(1), "15552222222", model.StatusPending, now.Add(-time.Hour))
	selectQuery := `SELECT * FROM "feedback" ORDER BY created_at DESC`
	mock.ExpectQuery(selectQuery).WillReturnRows(rows)

	records, err := repo.FindAllFeedback(ctx)
	assert.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, int64(2), records[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_FindFeedbackCreatedWithin(t *testing.T) {
	repo, mock := newTestFeedbackRepo(t)
	ctx := context.Background()
	end := time.Now()
	start := end.Add(-24 * time.Hour)

	cols := []string{"id", "phone", "status", "created_at"}
	rows := sqlmock.NewRows(cols).
		AddRow(int64(1), "15552222222", model.StatusSubmitted, start.Add(time.Hour)).
		AddRow(int64(2), "15551111111", model.StatusSubmitted, start.Add(2*time.Hour))
	selectQuery := `SELECT * FROM "feedback" WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at ASC`
	mock.ExpectQuery(selectQuery).WithArgs(start, end).WillReturnRows(rows)

	records, err := repo.FindFeedbackCreatedWithin(ctx, start, end)
	assert.NoError(t, err)
	assert.Len(t, records, 2)
	assert.True(t, records[0].CreatedAt.Before(records[1].CreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_FindFeedbackCreatedWithin_Empty(t *testing.T) {
	repo, mock := newTestFeedbackRepo(t)
	ctx := context.Background()
	end := time.Now()
	start := end.Add(-24 * time.Hour)

	cols := []string{"id", "phone", "status", "created_at"}
	selectQuery := `SELECT * FROM "feedback" WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at ASC`
	mock.ExpectQuery(selectQuery).WithArgs(start, end).WillReturnRows(sqlmock.NewRows(cols))

	records, err := repo.FindFeedbackCreatedWithin(ctx, start, end)
	assert.NoError(t, err)
	assert.Empty(t, records)
	assert.NoError(t, mock.ExpectationsWereMet())
}
