package importitems

import (
	"context"
	"fmt"
	"time"

	mg "liaison/internal/config/connections/mongo"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ImportRecordsCollection = "import_records"

const (
	RecordParsed     = "parsed"
	RecordProcessing = "processing"
	RecordDone       = "done"
	RecordFailed     = "failed"
)

type Record struct {
	ID        any        `bson:"_id" json:"id"`
	PartyID   *string    `bson:"party_id,omitempty" json:"party_id,omitempty"`
	Count     int        `bson:"count" json:"count"`
	Applied   int        `bson:"applied" json:"applied"`
	Failed    int        `bson:"failed" json:"failed"`
	Status    string     `bson:"status" json:"status"`
	Errors    *string    `bson:"errors,omitempty" json:"errors,omitempty"`
	Type      string     `bson:"type" json:"type"`
	Path      *string    `bson:"path,omitempty" json:"path,omitempty"`
	Bucket    *string    `bson:"bucket,omitempty" json:"bucket,omitempty"`
	Key       *string    `bson:"key,omitempty" json:"key,omitempty"`
	SizeBytes *int64     `bson:"size_bytes,omitempty" json:"size_bytes,omitempty"`
	SHA256    string     `bson:"sha256,omitempty" json:"sha256,omitempty"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
}

// InsertImportRecord stores rec and returns its generated id as hex.
func InsertImportRecord(ctx context.Context, m *mg.Mongo, rec Record) (string, error) {
	if m == nil || m.Client == nil || m.Database == nil {
		return "", mongo.ErrClientDisconnected
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = RecordParsed
	}

	doc := bson.D{
		{Key: "party_id", Value: rec.PartyID},
		{Key: "count", Value: rec.Count},
		{Key: "applied", Value: rec.Applied},
		{Key: "failed", Value: rec.Failed},
		{Key: "status", Value: rec.Status},
		{Key: "errors", Value: rec.Errors},
		{Key: "type", Value: rec.Type},
		{Key: "path", Value: rec.Path},
		{Key: "bucket", Value: rec.Bucket},
		{Key: "key", Value: rec.Key},
		{Key: "size_bytes", Value: rec.SizeBytes},
		{Key: "created_at", Value: rec.CreatedAt},
		{Key: "updated_at", Value: rec.UpdatedAt},
	}

	res, err := m.Database.Collection(ImportRecordsCollection).InsertOne(ctx, doc, options.InsertOne())
	if err != nil {
		return "", err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		return oid.Hex(), nil
	}
	return fmt.Sprint(res.InsertedID), nil
}

func FindImportRecordByID(ctx context.Context, m *mg.Mongo, id string) (Record, error) {
	var out Record
	if m == nil || m.Database == nil {
		return out, mongo.ErrClientDisconnected
	}
	coll := m.Database.Collection(ImportRecordsCollection)

	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		if err := coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&out); err == nil {
			out.ID = oid.Hex()
			return out, nil
		}
	}

	if err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&out); err != nil {
		return out, fmt.Errorf("not found: %w", err)
	}
	out.ID = id
	return out, nil
}

func ListImportRecords(ctx context.Context, m *mg.Mongo, filter bson.M, limit, skip int64) ([]Record, int64, error) {
	if m == nil || m.Database == nil {
		return nil, 0, mongo.ErrClientDisconnected
	}
	coll := m.Database.Collection(ImportRecordsCollection)
	if filter == nil {
		filter = bson.M{}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	if skip > 0 {
		opts.SetSkip(skip)
	}

	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	recs := make([]Record, 0)
	for cur.Next(ctx) {
		var r Record
		if err := cur.Decode(&r); err != nil {
			continue
		}
		if oid, ok := r.ID.(primitive.ObjectID); ok {
			r.ID = oid.Hex()
		}
		recs = append(recs, r)
	}
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		total = int64(len(recs))
	}
	return recs, total, nil
}

// FinishImportRecord stores the final counters and status of an import.
func FinishImportRecord(ctx context.Context, m *mg.Mongo, id string, count, applied, failed int, sha string, runErr error) error {
	status := RecordDone
	set := bson.M{"count": count, "applied": applied, "failed": failed, "sha256": sha}
	if runErr != nil {
		status = RecordFailed
		set["errors"] = runErr.Error()
	}
	return UpdateImportRecordStatus(ctx, m, id, status, set)
}

// Tracker adapts the import record functions to the importer lifecycle.
type Tracker struct {
	MG *mg.Mongo
}

func (t Tracker) Start(ctx context.Context, typ, filePath string) (string, error) {
	return InsertImportRecord(ctx, t.MG, Record{Type: typ, Path: &filePath, Status: RecordProcessing})
}

func (t Tracker) Finish(ctx context.Context, id string, count, applied, failed int, sha string, runErr error) error {
	return FinishImportRecord(ctx, t.MG, id, count, applied, failed, sha, runErr)
}

func (t Tracker) Get(ctx context.Context, id string) (Record, error) {
	return FindImportRecordByID(ctx, t.MG, id)
}

func (t Tracker) Items(ctx context.Context, id, status string) ([]Item, error) {
	return ListItems(ctx, t.MG, id, status, 1000)
}
