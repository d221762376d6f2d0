package persistence

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"social-publisher/domain/model"
)

// PublishAuditRepository archives publish attempts in MongoDB, append-only.
// Optional at boot; callers pass nil and auditing becomes a no-op.
type PublishAuditRepository struct {
	coll *mongo.Collection
}

func NewPublishAuditRepository(client *mongo.Client, database string) *PublishAuditRepository {
	if client == nil {
		return nil
	}
	return &PublishAuditRepository{coll: client.Database(database).Collection("publish_audit")}
}

func (r *PublishAuditRepository) Append(ctx context.Context, entries []*model.PublishAudit) error {
	if r == nil || len(entries) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, e)
	}
	_, err := r.coll.InsertMany(ctx, docs)
	return err
}
