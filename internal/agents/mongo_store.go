package agents

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const agentsCollection = "agents"

type agentDoc struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	AgentID   string        `bson:"agent_id"`
	Domain    string        `bson:"domain"`
	IP        string        `bson:"ip"`
	UserAgent string        `bson:"user_agent"`
	AddedAt   time.Time     `bson:"date_added"`
}

func (d agentDoc) toAgent() Agent {
	return Agent{
		ID:        d.ID.Hex(),
		AgentID:   d.AgentID,
		Domain:    d.Domain,
		IP:        d.IP,
		UserAgent: d.UserAgent,
		AddedAt:   d.AddedAt.UTC(),
	}
}

// MongoStore implements Store over a MongoDB database.
type MongoStore struct {
	agents *mongo.Collection
}

// NewMongoStore creates a store over the given database.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{agents: db.Collection(agentsCollection)}
}

func (st *MongoStore) Insert(ctx context.Context, agent Agent) (Agent, error) {
	doc := agentDoc{
		AgentID:   agent.AgentID,
		Domain:    agent.Domain,
		IP:        agent.IP,
		UserAgent: agent.UserAgent,
		AddedAt:   agent.AddedAt.UTC(),
	}

	res, err := st.agents.InsertOne(ctx, doc)
	if err != nil {
		return Agent{}, storeErr(err)
	}

	id, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return Agent{}, storeErr(errors.New("unexpected inserted id type"))
	}

	agent.ID = id.Hex()
	return agent, nil
}

func (st *MongoStore) UpdateNetwork(ctx context.Context, id, ip, userAgent string) (Agent, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return Agent{}, ErrNotFound
	}

	update := bson.M{"$set": bson.M{"ip": ip, "user_agent": userAgent}}

	var doc agentDoc
	err = st.agents.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Agent{}, ErrNotFound
	}
	if err != nil {
		return Agent{}, storeErr(err)
	}

	return doc.toAgent(), nil
}

func (st *MongoStore) ListByDomain(ctx context.Context, domain string, limit int) ([]Agent, error) {
	opts := options.Find().SetSort(bson.M{"date_added": -1})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := st.agents.Find(ctx, bson.M{"domain": domain}, opts)
	if err != nil {
		return nil, storeErr(err)
	}
	defer cur.Close(ctx)

	var docs []agentDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeErr(err)
	}

	out := make([]Agent, len(docs))
	for i, d := range docs {
		out[i] = d.toAgent()
	}
	return out, nil
}
