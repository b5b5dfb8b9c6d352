package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/whisperbox/backend/internal/models"
)

// ErrNotFound is returned when no document matches the query.
var ErrNotFound = errors.New("not found")

// UserStore handles user documents and their embedded messages in MongoDB.
type UserStore struct {
	col *mongo.Collection
}

func NewUserStore(db *mongo.Database) *UserStore {
	return &UserStore{col: db.Collection("users")}
}

func (s *UserStore) Insert(ctx context.Context, user *models.User) (string, error) {
	user.CreatedAt = time.Now()
	if user.Messages == nil {
		user.Messages = []models.Message{}
	}
	res, err := s.col.InsertOne(ctx, user)
	if err != nil {
		return "", fmt.Errorf("mongo insert: %w", err)
	}
	oid := res.InsertedID.(primitive.ObjectID)
	return oid.Hex(), nil
}

func (s *UserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

// FindByIdentifier matches the identifier against either the email or the
// username field.
func (s *UserStore) FindByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"$or": bson.A{
		bson.M{"email": identifier},
		bson.M{"username": identifier},
	}})
}

func (s *UserStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"username": username})
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *UserStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := s.col.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// UpdatePassword overwrites the stored password hash. Used when an
// unverified account is re-registered.
func (s *UserStore) UpdatePassword(ctx context.Context, id, hashedPassword string) error {
	return s.setField(ctx, id, "password", hashedPassword)
}

func (s *UserStore) SetVerified(ctx context.Context, id string, verified bool) error {
	return s.setField(ctx, id, "isVerified", verified)
}

func (s *UserStore) SetAcceptingMessages(ctx context.Context, id string, accepting bool) error {
	return s.setField(ctx, id, "isAcceptingMessages", accepting)
}

func (s *UserStore) setField(ctx context.Context, id, field string, value interface{}) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{field: value}})
	if err != nil {
		return fmt.Errorf("mongo update: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// PushMessage appends a message to the user's embedded messages array.
func (s *UserStore) PushMessage(ctx context.Context, id string, msg models.Message) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$push": bson.M{"messages": msg}})
	if err != nil {
		return fmt.Errorf("mongo push message: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// PullMessage removes a message by id from the user's embedded array.
// Returns ErrNotFound if no message was removed.
func (s *UserStore) PullMessage(ctx context.Context, userID, messageID string) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return ErrNotFound
	}
	mid, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return ErrNotFound
	}
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$pull": bson.M{"messages": bson.M{"_id": mid}}},
	)
	if err != nil {
		return fmt.Errorf("mongo pull message: %w", err)
	}
	if res.ModifiedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SortedMessages returns the user's messages newest first, or ErrNotFound if
// the user does not exist. A user with no messages yields an empty slice.
// Messages with equal timestamps come back in no particular order.
func (s *UserStore) SortedMessages(ctx context.Context, id string) ([]models.Message, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	// Existence check first: the unwind stage drops users whose messages
	// array is empty, which must map to an empty list, not a missing user.
	exists := options.FindOne().SetProjection(bson.M{"_id": 1})
	if err := s.col.FindOne(ctx, bson.M{"_id": oid}, exists).Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	cur, err := s.col.Aggregate(ctx, messagesPipeline(oid))
	if err != nil {
		return nil, fmt.Errorf("mongo aggregate: %w", err)
	}
	defer cur.Close(ctx)

	var results []struct {
		Messages []models.Message `bson:"messages"`
	}
	if err := cur.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("mongo aggregate decode: %w", err)
	}
	if len(results) == 0 {
		return []models.Message{}, nil
	}
	return results[0].Messages, nil
}

// messagesPipeline flattens the embedded messages, sorts them by creation
// time descending, and regroups them under the original user id.
func messagesPipeline(id primitive.ObjectID) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "_id", Value: id}}}},
		{{Key: "$unwind", Value: "$messages"}},
		{{Key: "$sort", Value: bson.D{{Key: "messages.createdAt", Value: -1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$_id"},
			{Key: "messages", Value: bson.D{{Key: "$push", Value: "$messages"}}},
		}}},
	}
}
