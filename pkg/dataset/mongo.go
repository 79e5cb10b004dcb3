package dataset

import (
	"context"
	stderrors "errors"

	"github.com/charmbracelet/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/techmap/pkg/errors"
)

// Default MongoDB locations.
const (
	DefaultMongoDatabase   = "techmap"
	DefaultMongoCollection = "datasets"
	DefaultMongoID         = "default"
)

// document is the stored form of a dataset: one document per dataset.
type document struct {
	ID    string `bson:"_id"`
	Years []int  `bson:"years"`
	Tech  []Tech `bson:"tech"`
}

func toDocument(id string, ds *Dataset) document {
	return document{ID: id, Years: ds.Years, Tech: ds.Tech}
}

func (d document) dataset() *Dataset {
	return &Dataset{Years: d.Years, Tech: d.Tech}
}

// MongoSource reads and writes datasets in a MongoDB collection.
type MongoSource struct {
	coll   *mongo.Collection
	id     string
	logger *log.Logger
}

// NewMongoSource returns a source for the document id in coll.
func NewMongoSource(coll *mongo.Collection, id string, logger *log.Logger) *MongoSource {
	if id == "" {
		id = DefaultMongoID
	}
	return &MongoSource{coll: coll, id: id, logger: logger}
}

// ConnectMongo connects to uri and returns a source for the given document.
// The returned function disconnects the client.
func ConnectMongo(ctx context.Context, uri, database, collection, id string, logger *log.Logger) (*MongoSource, func(context.Context) error, error) {
	if database == "" {
		database = DefaultMongoDatabase
	}
	if collection == "" {
		collection = DefaultMongoCollection
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeNetwork, err, "connect to mongodb")
	}
	coll := client.Database(database).Collection(collection)
	return NewMongoSource(coll, id, logger), client.Disconnect, nil
}

// Load implements Source.
func (s *MongoSource) Load(ctx context.Context) (*Dataset, error) {
	var doc document
	err := s.coll.FindOne(ctx, bson.M{"_id": s.id}).Decode(&doc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.New(errors.ErrCodeDatasetNotFound, "dataset %q not found in mongodb", s.id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "load dataset %q", s.id)
	}
	ds := doc.dataset()
	finalize(ds, "mongodb:"+s.id, s.logger)
	return ds, nil
}

// Save upserts ds under the source's document id.
func (s *MongoSource) Save(ctx context.Context, ds *Dataset) error {
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": s.id}, toDocument(s.id, ds), options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, err, "save dataset %q", s.id)
	}
	return nil
}
