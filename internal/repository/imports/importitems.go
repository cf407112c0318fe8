package importitems

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mg "liaison/internal/config/connections/mongo"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const ImportRecordItemsCollection = "import_record_items"

const (
	ItemApplied = "applied"
	ItemFailed  = "failed"
)

// Item is the outcome of one statement row.
type Item struct {
	ImportRecordID string    `bson:"import_record_id" json:"import_record_id"`
	Row            int       `bson:"row" json:"row"`
	ObligationID   string    `bson:"obligation_id" json:"obligation_id"`
	PlanID         string    `bson:"plan_id" json:"plan_id"`
	Resolution     string    `bson:"resolution" json:"resolution"`
	Payload        string    `bson:"payload" json:"payload"`
	Status         string    `bson:"status" json:"status"`
	Errors         string    `bson:"errors" json:"errors"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updated_at"`
}

func InsertItem(ctx context.Context, m *mg.Mongo, item Item) (*mongo.InsertOneResult, error) {
	if m == nil || m.Client == nil || m.Database == nil {
		return nil, mongo.ErrClientDisconnected
	}

	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	doc := bson.D{
		{Key: "import_record_id", Value: item.ImportRecordID},
		{Key: "row", Value: item.Row},
		{Key: "obligation_id", Value: item.ObligationID},
		{Key: "plan_id", Value: item.PlanID},
		{Key: "resolution", Value: item.Resolution},
		{Key: "payload", Value: item.Payload},
		{Key: "status", Value: item.Status},
		{Key: "errors", Value: item.Errors},
		{Key: "created_at", Value: item.CreatedAt},
		{Key: "updated_at", Value: item.UpdatedAt},
	}

	return m.Database.Collection(ImportRecordItemsCollection).InsertOne(ctx, doc, options.InsertOne())
}

func ListItems(ctx context.Context, m *mg.Mongo, importRecordID, status string, limit int64) ([]Item, error) {
	if m == nil || m.Database == nil {
		return nil, mongo.ErrClientDisconnected
	}
	filter := bson.M{"import_record_id": importRecordID}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "row", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := m.Database.Collection(ImportRecordItemsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]Item, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func UpdateImportRecordStatus(ctx context.Context, m *mg.Mongo, importRecordID, status string, set bson.M) error {
	if m == nil || m.Database == nil {
		return mongo.ErrClientDisconnected
	}
	if importRecordID == "" {
		return fmt.Errorf("empty importRecordID")
	}
	if status == "" {
		return fmt.Errorf("empty status")
	}

	coll := m.Database.Collection(ImportRecordsCollection)

	fields := bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	for k, v := range set {
		fields[k] = v
	}
	update := bson.M{"$set": fields}

	if oid, err := primitive.ObjectIDFromHex(importRecordID); err == nil {
		res, err := coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
		if err != nil {
			return err
		}
		if res.MatchedCount > 0 {
			return nil
		}
	}

	res, err := coll.UpdateOne(ctx, bson.M{"_id": importRecordID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("no import_record found with id %s (tried ObjectId and string)", importRecordID)
	}
	return nil
}

// Journal records per-row import outcomes. Write failures are logged and
// never interrupt the import.
type Journal struct {
	MG  *mg.Mongo
	Log *zap.Logger
}

func NewJournal(m *mg.Mongo, log *zap.Logger) *Journal {
	if log == nil {
		log = zap.NewNop()
	}
	return &Journal{MG: m, Log: log}
}

func (j *Journal) Record(ctx context.Context, item Item, payload map[string]string) {
	if j == nil || j.MG == nil || j.MG.Database == nil {
		return
	}
	b, _ := json.Marshal(payload)
	item.Payload = string(b)
	if _, err := InsertItem(ctx, j.MG, item); err != nil {
		j.Log.Warn("import item write failed",
			zap.String("import_record_id", item.ImportRecordID),
			zap.Int("row", item.Row),
			zap.String("status", item.Status),
			zap.Error(err),
		)
	}
}
