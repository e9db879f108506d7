package repository

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"

	"wildsats-api/internal/model"
)

// MongoDBPlayerRepository stores one document per player. Every write is a single-document
// update, so MongoDB's per-document atomicity covers the concurrency requirements.
type MongoDBPlayerRepository struct {
	client     *mongo.Client
	db         *mongo.Database
	collection *mongo.Collection
	opts       options
}

// playerDocument keeps the field names of existing "users" collections.
type playerDocument struct {
	Identity    string    `bson:"npub"`
	DisplayName string    `bson:"nostrName"`
	Characters  []string  `bson:"characters"`
	Inventory   []string  `bson:"inventory"`
	CreatedAt   time.Time `bson:"createdAt"`
	LastLogin   time.Time `bson:"lastLogin"`
}

func (d *playerDocument) record() *model.PlayerRecord {
	p := &model.PlayerRecord{
		Identity:    d.Identity,
		DisplayName: d.DisplayName,
		Characters:  d.Characters,
		Inventory:   d.Inventory,
		CreatedAt:   d.CreatedAt.UTC(),
		LastLogin:   d.LastLogin.UTC(),
	}
	if p.Characters == nil {
		p.Characters = []string{}
	}
	if p.Inventory == nil {
		p.Inventory = []string{}
	}
	return p
}

// NewMongoDBPlayerRepository connects and ensures the unique identity index.
func NewMongoDBPlayerRepository(ctx context.Context, uri, database, collection string, opts ...Option) (*MongoDBPlayerRepository, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	clientOpts := mongoopts.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(2).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, oops.Code("STORAGE_FAILURE").In("repository").Wrapf(err, "failed to connect to MongoDB")
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, oops.Code("STORAGE_FAILURE").In("repository").Wrapf(err, "failed to ping MongoDB")
	}

	db := client.Database(database)
	coll := db.Collection(collection)

	// Upserts rely on this index to reject a second document for the same identity.
	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "npub", Value: 1}},
		Options: mongoopts.Index().SetUnique(true),
	}
	if _, err := coll.Indexes().CreateOne(ctx, indexModel); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, oops.Code("STORAGE_FAILURE").In("repository").Wrapf(err, "failed to create identity index")
	}

	o := buildOptions("mongodb", opts)
	o.logger.InfoContext(ctx, "mongodb player store ready", "database", database, "collection", collection)
	return &MongoDBPlayerRepository{
		client:     client,
		db:         db,
		collection: coll,
		opts:       o,
	}, nil
}

// UpsertLogin uses $set/$max for the always-updated fields and $setOnInsert for the rest.
func (r *MongoDBPlayerRepository) UpsertLogin(ctx context.Context, identity, displayName string) (*model.PlayerRecord, error) {
	// BSON dates carry milliseconds.
	now := r.opts.clock.Now().Truncate(time.Millisecond)

	filter := bson.M{"npub": identity}
	update := bson.M{
		"$set": bson.M{"nostrName": displayName},
		"$max": bson.M{"lastLogin": now},
		"$setOnInsert": bson.M{
			"characters": []string{r.opts.defaultCharacter},
			"inventory":  []string{},
			"createdAt":  now,
		},
	}
	opts := mongoopts.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(mongoopts.After)

	var doc playerDocument
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		// Lost an insert race; the document exists now so the retry is a plain update.
		err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	}
	if err != nil {
		return nil, storageError("upsert_login", identity, err)
	}
	return doc.record(), nil
}

// AddCharacterUnique uses $addToSet and compares against the pre-image.
func (r *MongoDBPlayerRepository) AddCharacterUnique(ctx context.Context, identity, name string) (*model.PlayerRecord, bool, error) {
	filter := bson.M{"npub": identity}
	update := bson.M{"$addToSet": bson.M{"characters": name}}
	opts := mongoopts.FindOneAndUpdate().SetReturnDocument(mongoopts.Before)

	var doc playerDocument
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, notFound("add_character", identity)
	}
	if err != nil {
		return nil, false, storageError("add_character", identity, err)
	}

	p := doc.record()
	if p.HasCharacter(name) {
		return p, false, nil
	}
	p.Characters = append(p.Characters, name)
	return p, true, nil
}

// AppendInventoryItem uses $push.
func (r *MongoDBPlayerRepository) AppendInventoryItem(ctx context.Context, identity, itemID string) (*model.PlayerRecord, error) {
	filter := bson.M{"npub": identity}
	update := bson.M{"$push": bson.M{"inventory": itemID}}
	opts := mongoopts.FindOneAndUpdate().SetReturnDocument(mongoopts.After)

	var doc playerDocument
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound("append_inventory", identity)
	}
	if err != nil {
		return nil, storageError("append_inventory", identity, err)
	}
	return doc.record(), nil
}

// GetCharacters returns the owned characters.
func (r *MongoDBPlayerRepository) GetCharacters(ctx context.Context, identity string) ([]string, error) {
	p, err := r.GetPlayer(ctx, identity)
	if err != nil {
		return nil, err
	}
	return p.Characters, nil
}

// GetPlayer returns the player document.
func (r *MongoDBPlayerRepository) GetPlayer(ctx context.Context, identity string) (*model.PlayerRecord, error) {
	var doc playerDocument
	err := r.collection.FindOne(ctx, bson.M{"npub": identity}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound("get_player", identity)
	}
	if err != nil {
		return nil, storageError("get_player", identity, err)
	}
	return doc.record(), nil
}

// GetStats returns statistics about the players collection.
func (r *MongoDBPlayerRepository) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{"backend": "mongodb"}

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, storageError("stats", "", err)
	}
	stats["total_players"] = count

	opts := mongoopts.FindOne().SetSort(bson.D{{Key: "lastLogin", Value: -1}})
	var doc playerDocument
	if err := r.collection.FindOne(ctx, bson.M{}, opts).Decode(&doc); err == nil {
		stats["last_login"] = doc.LastLogin.UTC()
	}

	result := r.db.RunCommand(ctx, bson.D{{Key: "collStats", Value: r.collection.Name()}})
	var collStats bson.M
	if err := result.Decode(&collStats); err == nil {
		switch size := collStats["size"].(type) {
		case int64:
			stats["db_size_bytes"] = size
		case int32:
			stats["db_size_bytes"] = int64(size)
		case float64:
			stats["db_size_bytes"] = int64(size)
		}
	}

	return stats, nil
}

// Ping checks the connection.
func (r *MongoDBPlayerRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, nil)
}

// Close closes the MongoDB connection.
func (r *MongoDBPlayerRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

var _ PlayerRepository = (*MongoDBPlayerRepository)(nil)
