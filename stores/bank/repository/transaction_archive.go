package repository

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/galleria/goapi/base/ctx"
	"github.com/galleria/goapi/base/database/mongoclient"
	"github.com/galleria/goapi/base/log"
	"github.com/galleria/goapi/domain"
	"github.com/galleria/goapi/domain/bank"
)

const transactionCollection = "bank_transactions"

type transactionArchive struct {
	col *mongo.Collection
}

// NewTransactionArchive mirrors committed ledger entries into mongo. The
// in-memory log stays the source of truth; this collection exists for
// durable history queries.
func NewTransactionArchive(cli *mongoclient.Client) bank.TransactionArchive {
	return &transactionArchive{col: cli.Collection(transactionCollection)}
}

func (a *transactionArchive) Append(c ctx.Ctx, t *bank.Transaction) error {
	if _, err := a.col.InsertOne(c, t); err != nil {
		c.WithFields(log.Fields{"txId": t.Id, "err": err}).Error("fail to archive transaction")
		return err
	}
	return nil
}

func (a *transactionArchive) Get(c ctx.Ctx, id uint64) (*bank.Transaction, error) {
	res := a.col.FindOne(c, bson.M{"id": id})
	if err := res.Err(); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, bank.ErrTransactionNotFound
		}
		c.WithFields(log.Fields{"txId": id, "err": err}).Error("fail to find archived transaction")
		return nil, err
	}
	t := &bank.Transaction{}
	if err := res.Decode(t); err != nil {
		c.WithFields(log.Fields{"txId": id, "err": err}).Error("fail to decode archived transaction")
		return nil, err
	}
	return t, nil
}

func (a *transactionArchive) FindByUser(c ctx.Ctx, user domain.Address, limit int) ([]*bank.Transaction, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"from": user.ToLower()},
		bson.M{"to": user.ToLower()},
	}}
	opts := options.Find().SetSort(bson.M{"id": -1})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := a.col.Find(c, filter, opts)
	if err != nil {
		c.WithFields(log.Fields{"user": user, "err": err}).Error("fail to query archived transactions")
		return nil, err
	}
	defer cur.Close(c)

	res := []*bank.Transaction{}
	if err := cur.All(c, &res); err != nil {
		c.WithFields(log.Fields{"user": user, "err": err}).Error("fail to decode archived transactions")
		return nil, err
	}
	return res, nil
}
