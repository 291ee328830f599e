package archive

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/syrupdata/dqaudit/internal/audit"
	"github.com/syrupdata/dqaudit/internal/config"
	"github.com/syrupdata/dqaudit/pkg/logger"
)

// MongoStore archives completed model reports as documents in a MongoDB
// collection so past runs stay queryable after the CSV files rotate away.
type MongoStore struct {
	cfg    config.ArchiveConfig
	log    *logger.Logger
	client *mongo.Client
}

func NewMongoStore(cfg config.ArchiveConfig, log *logger.Logger) *MongoStore {
	return &MongoStore{
		cfg: cfg,
		log: log,
	}
}

func (s *MongoStore) Connect() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.cfg.URI))
	if err != nil {
		return fmt.Errorf("failed to connect to archive store: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("failed to ping archive store: %w", err)
	}

	s.client = client
	return nil
}

func (s *MongoStore) Close() error {
	if s.client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

type resultDocument struct {
	TestName       string    `bson:"test_name"`
	Category       string    `bson:"test_category"`
	Description    string    `bson:"test_description"`
	Query          string    `bson:"test_query"`
	DefectCount    int       `bson:"defect_count"`
	DefectExamples string    `bson:"defect_examples"`
	Status         string    `bson:"status"`
	Severity       string    `bson:"severity"`
	Notes          string    `bson:"notes"`
	ExecutedAt     time.Time `bson:"executed_at"`
}

type reportDocument struct {
	Model        string           `bson:"model"`
	RunTimestamp string           `bson:"run_timestamp"`
	ArchivedAt   time.Time        `bson:"archived_at"`
	Results      []resultDocument `bson:"results"`
}

// Store inserts one report document. Callers treat failures as warnings;
// archiving never fails an audit.
func (s *MongoStore) Store(ctx context.Context, report *audit.ModelReport, runTimestamp string) error {
	if s.client == nil {
		if err := s.Connect(); err != nil {
			return err
		}
	}

	doc := reportDocument{
		Model:        report.ModelName,
		RunTimestamp: runTimestamp,
		ArchivedAt:   time.Now().UTC(),
	}
	for _, result := range report.Results {
		doc.Results = append(doc.Results, resultDocument{
			TestName:       result.Definition.Name,
			Category:       result.Definition.Category,
			Description:    result.Definition.Description,
			Query:          result.Definition.Query,
			DefectCount:    result.DefectCount,
			DefectExamples: result.DefectExamples,
			Status:         string(result.Status),
			Severity:       string(result.Definition.Severity),
			Notes:          result.Notes,
			ExecutedAt:     result.ExecutedAt,
		})
	}

	insertCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	collection := s.client.Database(s.cfg.Database).Collection(s.cfg.Collection)
	if _, err := collection.InsertOne(insertCtx, doc); err != nil {
		return fmt.Errorf("failed to archive report for %s: %w", report.ModelName, err)
	}

	s.log.Debugf("archived report for %s (%d results)", report.ModelName, len(doc.Results))
	return nil
}
