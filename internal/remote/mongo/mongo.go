// Package mongo implements the remote log store on MongoDB using the
// official driver. It registers itself as the "mongo" driver.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/faceyourself/faceyourself/internal/remote"
	"github.com/faceyourself/faceyourself/internal/schema"
)

func init() {
	remote.Register("mongo", Open)
}

const defaultDatabase = "faceyourself"

// Store implements remote.Store backed by MongoDB.
type Store struct {
	client *mongo.Client
	daily  *mongo.Collection
	weekly *mongo.Collection
	logger *log.Logger
}

type dailyDoc struct {
	ID        int64            `bson:"log_id"`
	UserID    string           `bson:"user_id"`
	Date      string           `bson:"date"`
	Tasks     []schema.TaskLog `bson:"tasks"`
	CreatedAt time.Time        `bson:"created_at"`
	UpdatedAt time.Time        `bson:"updated_at"`
}

type weeklyDoc struct {
	ID        int64              `bson:"log_id"`
	UserID    string             `bson:"user_id"`
	WeekStart string             `bson:"week_start"`
	Tasks     schema.WeeklyTasks `bson:"tasks"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

// Open connects to MongoDB using cfg.DSN and ensures the uniqueness
// indexes exist. cfg.Database defaults to "faceyourself".
func Open(cfg *remote.Config) (remote.Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.DSN))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, remote.Unavailable(fmt.Errorf("failed to reach mongodb: %w", err))
	}

	dbName := cfg.Database
	if dbName == "" {
		dbName = defaultDatabase
	}
	db := client.Database(dbName)

	s := &Store{
		client: client,
		daily:  db.Collection("daily_logs"),
		weekly: db.Collection("weekly_logs"),
		logger: logger,
	}
	if err := s.initIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	logger.Printf("Connected to mongodb database %s", dbName)
	return s, nil
}

// initIndexes enforces one log per (user, period) pair.
func (s *Store) initIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)

	_, err := s.daily.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "date", Value: 1}},
		Options: unique,
	})
	if err != nil {
		return fmt.Errorf("failed to create daily log index: %w", wrapErr(err))
	}

	_, err = s.weekly.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "week_start", Value: 1}},
		Options: unique,
	})
	if err != nil {
		return fmt.Errorf("failed to create weekly log index: %w", wrapErr(err))
	}
	return nil
}

// UpsertDailyLog inserts or replaces the log for (user, date).
func (s *Store) UpsertDailyLog(ctx context.Context, dl schema.DailyLog) error {
	now := time.Now().UTC()
	created := dl.CreatedAt
	if created.IsZero() {
		created = now
	}

	filter := bson.M{"user_id": dl.UserID, "date": dl.Date}
	update := bson.M{
		"$set": bson.M{
			"tasks":      tasksOrEmpty(dl.Tasks),
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"log_id":     newLogID(),
			"created_at": created,
		},
	}

	_, err := s.daily.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert daily log: %w", wrapErr(err))
	}
	return nil
}

// UpsertWeeklyLog inserts or replaces the log for (user, week start).
func (s *Store) UpsertWeeklyLog(ctx context.Context, wl schema.WeeklyLog) error {
	now := time.Now().UTC()
	created := wl.CreatedAt
	if created.IsZero() {
		created = now
	}

	filter := bson.M{"user_id": wl.UserID, "week_start": wl.WeekStart}
	update := bson.M{
		"$set": bson.M{
			"tasks":      wl.Tasks,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"log_id":     newLogID(),
			"created_at": created,
		},
	}

	_, err := s.weekly.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert weekly log: %w", wrapErr(err))
	}
	return nil
}

// DailyLogs returns up to limit logs for the user, most recent first.
func (s *Store) DailyLogs(ctx context.Context, userID string, limit int) ([]schema.DailyLog, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.daily.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily logs: %w", wrapErr(err))
	}
	defer cursor.Close(ctx)

	var docs []dailyDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to read daily logs: %w", wrapErr(err))
	}

	logs := make([]schema.DailyLog, 0, len(docs))
	for _, d := range docs {
		logs = append(logs, schema.DailyLog{
			ID:        d.ID,
			UserID:    d.UserID,
			Date:      d.Date,
			Tasks:     d.Tasks,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		})
	}
	return logs, nil
}

// WeeklyLogs returns up to limit logs for the user, most recent first.
func (s *Store) WeeklyLogs(ctx context.Context, userID string, limit int) ([]schema.WeeklyLog, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "week_start", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.weekly.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query weekly logs: %w", wrapErr(err))
	}
	defer cursor.Close(ctx)

	var docs []weeklyDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to read weekly logs: %w", wrapErr(err))
	}

	logs := make([]schema.WeeklyLog, 0, len(docs))
	for _, d := range docs {
		logs = append(logs, schema.WeeklyLog{
			ID:        d.ID,
			UserID:    d.UserID,
			WeekStart: d.WeekStart,
			Tasks:     d.Tasks,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		})
	}
	return logs, nil
}

// UpdateDailyLog replaces the task list of an existing log.
func (s *Store) UpdateDailyLog(ctx context.Context, logID int64, userID string, tasks []schema.TaskLog) error {
	res, err := s.daily.UpdateOne(ctx,
		bson.M{"log_id": logID, "user_id": userID},
		bson.M{"$set": bson.M{"tasks": tasksOrEmpty(tasks), "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to update daily log: %w", wrapErr(err))
	}
	if res.MatchedCount == 0 {
		return remote.ErrNotFound
	}
	return nil
}

// UpdateWeeklyLog replaces the tasks of an existing log.
func (s *Store) UpdateWeeklyLog(ctx context.Context, logID int64, userID string, tasks schema.WeeklyTasks) error {
	res, err := s.weekly.UpdateOne(ctx,
		bson.M{"log_id": logID, "user_id": userID},
		bson.M{"$set": bson.M{"tasks": tasks, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to update weekly log: %w", wrapErr(err))
	}
	if res.MatchedCount == 0 {
		return remote.ErrNotFound
	}
	return nil
}

// DeleteDailyLog removes a log owned by the user.
func (s *Store) DeleteDailyLog(ctx context.Context, logID int64, userID string) error {
	res, err := s.daily.DeleteOne(ctx, bson.M{"log_id": logID, "user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete daily log: %w", wrapErr(err))
	}
	if res.DeletedCount == 0 {
		return remote.ErrNotFound
	}
	return nil
}

// DeleteWeeklyLog removes a log owned by the user.
func (s *Store) DeleteWeeklyLog(ctx context.Context, logID int64, userID string) error {
	res, err := s.weekly.DeleteOne(ctx, bson.M{"log_id": logID, "user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete weekly log: %w", wrapErr(err))
	}
	if res.DeletedCount == 0 {
		return remote.ErrNotFound
	}
	return nil
}

// Ping checks that mongodb is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return remote.Unavailable(err)
	}
	return nil
}

// Close disconnects from mongodb.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// newLogID generates a numeric log id for new documents.
func newLogID() int64 {
	return time.Now().UnixNano()
}

// tasksOrEmpty normalizes nil task lists to empty arrays so reads
// round-trip cleanly.
func tasksOrEmpty(tasks []schema.TaskLog) []schema.TaskLog {
	if tasks == nil {
		return []schema.TaskLog{}
	}
	return tasks
}

// wrapErr tags connection-level failures as transient.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		mongo.IsTimeout(err) || mongo.IsNetworkError(err) ||
		errors.Is(err, mongo.ErrClientDisconnected) {
		return remote.Unavailable(err)
	}
	return err
}
