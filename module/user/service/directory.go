package service

import (
	"context"
	"sort"
	"sync"
	"time"

	usermodel "jircord/module/user/model"
	"jircord/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Directory records every identity seen. All returns them sorted.
type Directory interface {
	Add(ctx context.Context, username string) error
	All(ctx context.Context) ([]string, error)
}

type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[string]struct{}
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{users: make(map[string]struct{})}
}

func (d *MemoryDirectory) Add(_ context.Context, username string) error {
	d.mu.Lock()
	d.users[username] = struct{}{}
	d.mu.Unlock()
	return nil
}

func (d *MemoryDirectory) All(_ context.Context) ([]string, error) {
	d.mu.RLock()
	out := make([]string, 0, len(d.users))
	for u := range d.users {
		out = append(out, u)
	}
	d.mu.RUnlock()
	sort.Strings(out)
	return out, nil
}

// MongoDirectory keeps the directory in the `user` collection.
type MongoDirectory struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoDirectory(db *mongo.Database) *MongoDirectory {
	return &MongoDirectory{
		coll: db.Collection((&usermodel.User{}).GetTableName()),
		now:  time.Now,
	}
}

func (d *MongoDirectory) EnsureIndexes(ctx context.Context) error {
	_, err := d.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return errs.WrapMsg(err, "ensure user index")
}

func (d *MongoDirectory) Add(ctx context.Context, username string) error {
	now := d.now().UTC()
	_, err := d.coll.UpdateOne(ctx,
		bson.M{"user_id": username},
		bson.M{
			"$setOnInsert": bson.M{"create_time": now},
			"$set":         bson.M{"last_active": now},
		},
		options.Update().SetUpsert(true),
	)
	return errs.WrapMsg(err, "upsert user", "user", username)
}

func (d *MongoDirectory) All(ctx context.Context) ([]string, error) {
	cur, err := d.coll.Find(ctx, bson.M{},
		options.Find().
			SetProjection(bson.M{"user_id": 1, "_id": 0}).
			SetSort(bson.D{{Key: "user_id", Value: 1}}))
	if err != nil {
		return nil, errs.WrapMsg(err, "find users")
	}
	defer cur.Close(ctx)

	out := []string{}
	for cur.Next(ctx) {
		var u usermodel.User
		if err := cur.Decode(&u); err != nil {
			return nil, errs.WrapMsg(err, "decode user")
		}
		out = append(out, u.GetUserID())
	}
	if err := cur.Err(); err != nil {
		return nil, errs.WrapMsg(err, "iterate users")
	}
	return out, nil
}
