package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/ec-order-core/internal/model"
)

// ConnectMongo opens a client and verifies the server is reachable.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

type MongoOrderStore struct {
	collection *mongo.Collection
}

// NewMongoOrderStore wraps the orders collection of db and ensures its indexes.
func NewMongoOrderStore(ctx context.Context, db *mongo.Database) (*MongoOrderStore, error) {
	collection := db.Collection("orders")

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "order_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "payment_details.status", Value: 1}, {Key: "updated_at", Value: 1}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create order indexes: %w", err)
	}

	return &MongoOrderStore{collection: collection}, nil
}

func (s *MongoOrderStore) Create(ctx context.Context, order *model.Order) error {
	doc, err := toOrderDocument(order)
	if err != nil {
		return err
	}

	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (s *MongoOrderStore) FindByID(ctx context.Context, id string) (*model.Order, error) {
	var doc orderDocument
	err := s.collection.FindOne(ctx, bson.M{"order_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	return toOrderModel(&doc), nil
}

func (s *MongoOrderStore) FindByUserID(ctx context.Context, userID string) ([]*model.Order, error) {
	return s.find(ctx, bson.M{"user_id": userID}, 0)
}

func (s *MongoOrderStore) FindAll(ctx context.Context) ([]*model.Order, error) {
	return s.find(ctx, bson.M{}, 0)
}

func (s *MongoOrderStore) FindByPaymentStatus(ctx context.Context, status model.PaymentStatus, updatedBefore time.Time, limit int) ([]*model.Order, error) {
	return s.find(ctx, bson.M{
		"payment_details.status": string(status),
		"updated_at":             bson.M{"$lt": updatedBefore},
	}, limit)
}

func (s *MongoOrderStore) find(ctx context.Context, filter bson.M, limit int) ([]*model.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := make([]*model.Order, 0)
	for cursor.Next(ctx) {
		var doc orderDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode order: %w", err)
		}
		orders = append(orders, toOrderModel(&doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	return orders, nil
}

// ConditionalUpdate runs a single findOneAndUpdate whose filter carries the
// expected pre-state, so the check and the write are one atomic operation.
func (s *MongoOrderStore) ConditionalUpdate(ctx context.Context, id string, match OrderMatch, patch OrderPatch) (*model.Order, error) {
	update, err := buildOrderUpdate(patch)
	if err != nil {
		return nil, err
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc orderDocument
	err = s.collection.FindOneAndUpdate(ctx, buildOrderFilter(id, match), update, opts).Decode(&doc)
	if err == nil {
		return toOrderModel(&doc), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	count, err := s.collection.CountDocuments(ctx, bson.M{"order_id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to check order existence: %w", err)
	}
	if count == 0 {
		return nil, ErrNotFound
	}
	return nil, ErrNoMatch
}

func buildOrderFilter(id string, match OrderMatch) bson.M {
	filter := bson.M{"order_id": id}

	if len(match.StatusIn) > 0 {
		statuses := make([]string, len(match.StatusIn))
		for i, st := range match.StatusIn {
			statuses[i] = string(st)
		}
		filter["status"] = bson.M{"$in": statuses}
	}
	if len(match.PaymentStatusIn) > 0 {
		statuses := make([]string, len(match.PaymentStatusIn))
		for i, st := range match.PaymentStatusIn {
			statuses[i] = string(st)
		}
		filter["payment_details.status"] = bson.M{"$in": statuses}
	}
	if match.ReceiptConfirmed != nil {
		if *match.ReceiptConfirmed {
			filter["received_confirmation.confirmed"] = true
		} else {
			// A missing sub-document counts as unconfirmed.
			filter["received_confirmation.confirmed"] = bson.M{"$ne": true}
		}
	}
	return filter
}

func buildOrderUpdate(patch OrderPatch) (bson.M, error) {
	set := bson.M{"updated_at": patch.UpdatedAt}

	if patch.Status != nil {
		set["status"] = string(*patch.Status)
	}
	if patch.Tracking != nil {
		set["tracking"] = trackingDocument(*patch.Tracking)
	}
	if patch.ReceivedConfirmation != nil {
		set["received_confirmation"] = receiptDocument(*patch.ReceivedConfirmation)
	}
	if patch.Payment != nil {
		for field, value := range patch.Payment.fields() {
			name, ok := paymentFieldNames[field]
			if !ok {
				return nil, fmt.Errorf("unknown payment field %q", field)
			}
			set["payment_details."+name] = value
		}
	}
	return bson.M{"$set": set}, nil
}

type MongoNotificationStore struct {
	collection *mongo.Collection
}

func NewMongoNotificationStore(ctx context.Context, db *mongo.Database) (*MongoNotificationStore, error) {
	collection := db.Collection("notifications")

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "notification_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "read", Value: 1}, {Key: "created_at", Value: -1}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create notification indexes: %w", err)
	}

	return &MongoNotificationStore{collection: collection}, nil
}

func (s *MongoNotificationStore) Create(ctx context.Context, n *model.Notification) error {
	if _, err := s.collection.InsertOne(ctx, toNotificationDocument(n)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (s *MongoNotificationStore) List(ctx context.Context, unreadOnly bool) ([]*model.Notification, error) {
	filter := bson.M{}
	if unreadOnly {
		filter["read"] = false
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []notificationDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}

	out := make([]*model.Notification, len(docs))
	for i := range docs {
		out[i] = toNotificationModel(&docs[i])
	}
	return out, nil
}

func (s *MongoNotificationStore) MarkRead(ctx context.Context, id string) (*model.Notification, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc notificationDocument
	err := s.collection.FindOneAndUpdate(ctx,
		bson.M{"notification_id": id},
		bson.M{"$set": bson.M{"read": true}},
		opts,
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return toNotificationModel(&doc), nil
}

func (s *MongoNotificationStore) MarkAllRead(ctx context.Context) (int64, error) {
	result, err := s.collection.UpdateMany(ctx,
		bson.M{"read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return result.ModifiedCount, nil
}

func (s *MongoNotificationStore) CountUnread(ctx context.Context) (int64, error) {
	count, err := s.collection.CountDocuments(ctx, bson.M{"read": false})
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}
