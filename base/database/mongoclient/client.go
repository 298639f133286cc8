package mongoclient

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/galleria/goapi/base/log"
)

const mgSocketTimeout = 60 * time.Second

// Client wraps mongo.Client with its default database name
type Client struct {
	DbName string
	*mongo.Client
}

// Collection returns a handle in the default database
func (c *Client) Collection(name string) *mongo.Collection {
	return c.Database(c.DbName).Collection(name)
}

// MustConnectMongoClient panics when the connection cannot be established
func MustConnectMongoClient(uri, dbName string, setSafe bool) *Client {
	cli, err := ConnectMongoClient(uri, dbName, setSafe)
	if err != nil {
		log.Log().WithFields(log.Fields{"mongoURI": uri, "err": err}).Panic("fail to dial mongo")
	}
	return cli
}

// ConnectMongoClient returns a connected mongo driver client
func ConnectMongoClient(uri, dbName string, setSafe bool) (*Client, error) {
	ctx := context.Background()

	clientOpts := options.Client()
	clientOpts.ApplyURI(uri)
	clientOpts.SetSocketTimeout(mgSocketTimeout)
	clientOpts.SetRetryWrites(true)
	if setSafe {
		// wait for a majority of replica-set members on writes
		clientOpts.SetWriteConcern(writeconcern.New(writeconcern.WMajority()))
	}

	client, err := mongo.NewClient(clientOpts)
	if err != nil {
		log.Log().WithFields(log.Fields{"mongoURI": uri, "err": err}).Error("fail to create mongo client")
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		log.Log().WithFields(log.Fields{"mongoURI": uri, "err": err}).Error("fail to connect mongo db")
		return nil, err
	}

	// verify the database is reachable before handing the client out
	if _, err := client.Database(dbName).ListCollectionNames(ctx, bson.D{}); err != nil {
		log.Log().WithFields(log.Fields{"dbName": dbName, "err": err}).Error("fail to test mongo db")
		return nil, err
	}

	log.Log().WithField("db", dbName).Info("mongo connected")
	return &Client{
		Client: client,
		DbName: dbName,
	}, nil
}
