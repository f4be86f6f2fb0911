package storage

import (
	"context"
	"time"

	"jircord/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const messageCollection = "messages"

type messageDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Channel   string             `bson:"channel"`
	From      string             `bson:"from"`
	To        string             `bson:"to,omitempty"`
	Text      string             `bson:"text"`
	CreatedAt time.Time          `bson:"created_at"`
}

// MongoLog keeps one document per entry. Entries of a process are ordered
// by their client-generated ObjectID, whose counter is monotonic.
type MongoLog struct {
	coll *mongo.Collection
}

func NewMongoLog(db *mongo.Database) *MongoLog {
	return &MongoLog{coll: db.Collection(messageCollection)}
}

// EnsureIndexes creates the (channel, _id) index used by Query.
func (l *MongoLog) EnsureIndexes(ctx context.Context) error {
	_, err := l.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "channel", Value: 1}, {Key: "_id", Value: 1}},
	})
	return errs.WrapMsg(err, "mongo create index", "collection", messageCollection)
}

func (l *MongoLog) Append(ctx context.Context, e Entry) error {
	doc := messageDoc{
		ID:        primitive.NewObjectID(),
		Channel:   e.Channel().Key(),
		From:      e.From,
		To:        e.To,
		Text:      e.Text,
		CreatedAt: e.CreatedAt,
	}
	if _, err := l.coll.InsertOne(ctx, doc); err != nil {
		return errs.WrapCode(errs.ErrLogUnavailable, err, "mongo insert", "channel", doc.Channel)
	}
	return nil
}

func (l *MongoLog) Query(ctx context.Context, ch Channel) ([]Entry, error) {
	cur, err := l.coll.Find(ctx, bson.M{"channel": ch.Key()}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, errs.WrapCode(errs.ErrLogUnavailable, err, "mongo find", "channel", ch.Key())
	}
	defer cur.Close(ctx)

	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errs.WrapCode(errs.ErrLogUnavailable, err, "mongo decode", "channel", ch.Key())
	}
	out := make([]Entry, 0, len(docs))
	for _, d := range docs {
		out = append(out, Entry{From: d.From, To: d.To, Text: d.Text, CreatedAt: d.CreatedAt.UTC()})
	}
	return out, nil
}
