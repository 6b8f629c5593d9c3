package visits

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	sessionsCollection = "visits"
	activityCollection = "visit_activity"
)

// sessionDoc is the persisted shape of a VisitSession.
type sessionDoc struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Domain    string        `bson:"domain"`
	VisitorID string        `bson:"visitor_id"`
	IP        string        `bson:"ip"`
	UserAgent string        `bson:"user_agent"`
	EnteredAt time.Time     `bson:"date_entree"`
	ExitedAt  *time.Time    `bson:"date_sortie"`
}

func (d sessionDoc) toSession() VisitSession {
	s := VisitSession{
		ID:        d.ID.Hex(),
		Domain:    d.Domain,
		VisitorID: d.VisitorID,
		IP:        d.IP,
		UserAgent: d.UserAgent,
		EnteredAt: d.EnteredAt.UTC(),
	}
	if d.ExitedAt != nil {
		exited := d.ExitedAt.UTC()
		s.ExitedAt = &exited
	}
	return s
}

type activityDoc struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Domain    string        `bson:"domain"`
	VisitorID string        `bson:"visitor_id"`
	IP        string        `bson:"ip"`
	UserAgent string        `bson:"user_agent"`
	EnteredAt time.Time     `bson:"date_entree"`
}

// MongoStore implements Store over a MongoDB database.
type MongoStore struct {
	sessions *mongo.Collection
	activity *mongo.Collection
}

// NewMongoStore creates a store over the given database.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		sessions: db.Collection(sessionsCollection),
		activity: db.Collection(activityCollection),
	}
}

func (st *MongoStore) Insert(ctx context.Context, session VisitSession) (VisitSession, error) {
	doc := sessionDoc{
		Domain:    session.Domain,
		VisitorID: session.VisitorID,
		IP:        session.IP,
		UserAgent: session.UserAgent,
		EnteredAt: session.EnteredAt.UTC(),
	}
	if session.ExitedAt != nil {
		exited := session.ExitedAt.UTC()
		doc.ExitedAt = &exited
	}

	res, err := st.sessions.InsertOne(ctx, doc)
	if err != nil {
		return VisitSession{}, storeErr(err)
	}

	id, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return VisitSession{}, storeErr(errors.New("unexpected inserted id type"))
	}

	session.ID = id.Hex()
	return session, nil
}

func (st *MongoStore) FindByID(ctx context.Context, id string) (VisitSession, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		// A malformed id cannot match any stored session.
		return VisitSession{}, ErrNotFound
	}

	var doc sessionDoc
	err = st.sessions.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return VisitSession{}, ErrNotFound
	}
	if err != nil {
		return VisitSession{}, storeErr(err)
	}

	return doc.toSession(), nil
}

func (st *MongoStore) FindOpenByVisitor(ctx context.Context, domain, visitorID string) (VisitSession, error) {
	filter := bson.M{
		"domain":      domain,
		"visitor_id":  visitorID,
		"date_sortie": nil,
	}

	var doc sessionDoc
	err := st.sessions.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return VisitSession{}, ErrNotFound
	}
	if err != nil {
		return VisitSession{}, storeErr(err)
	}

	return doc.toSession(), nil
}

func (st *MongoStore) CloseByID(ctx context.Context, id, domain string, exitedAt time.Time) (VisitSession, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return VisitSession{}, ErrNotFound
	}

	// The open guard in the filter makes the close conditional: a concurrent
	// writer that closed the session first leaves nothing to match.
	filter := bson.M{
		"_id":         oid,
		"domain":      domain,
		"date_sortie": nil,
	}
	update := bson.M{"$set": bson.M{"date_sortie": exitedAt.UTC()}}

	var doc sessionDoc
	err = st.sessions.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return VisitSession{}, ErrAlreadyClosed
	}
	if err != nil {
		return VisitSession{}, storeErr(err)
	}

	return doc.toSession(), nil
}

func (st *MongoStore) ListByDomain(ctx context.Context, domain string, limit int) ([]VisitSession, error) {
	opts := options.Find().SetSort(bson.M{"date_entree": -1})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := st.sessions.Find(ctx, bson.M{"domain": domain}, opts)
	if err != nil {
		return nil, storeErr(err)
	}
	defer cur.Close(ctx)

	var docs []sessionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeErr(err)
	}

	out := make([]VisitSession, len(docs))
	for i, d := range docs {
		out[i] = d.toSession()
	}
	return out, nil
}

func (st *MongoStore) AppendActivity(ctx context.Context, entry ActivityEntry) error {
	doc := activityDoc{
		Domain:    entry.Domain,
		VisitorID: entry.VisitorID,
		IP:        entry.IP,
		UserAgent: entry.UserAgent,
		EnteredAt: entry.EnteredAt.UTC(),
	}

	if _, err := st.activity.InsertOne(ctx, doc); err != nil {
		return storeErr(err)
	}
	return nil
}

func (st *MongoStore) RecentActivity(ctx context.Context, domain string, since time.Time, limit int) ([]ActivityEntry, error) {
	filter := bson.M{
		"domain":      domain,
		"date_entree": bson.M{"$gte": since.UTC()},
	}

	opts := options.Find().SetSort(bson.M{"date_entree": -1})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := st.activity.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeErr(err)
	}
	defer cur.Close(ctx)

	var docs []activityDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeErr(err)
	}

	out := make([]ActivityEntry, len(docs))
	for i, d := range docs {
		out[i] = ActivityEntry{
			Domain:    d.Domain,
			VisitorID: d.VisitorID,
			IP:        d.IP,
			UserAgent: d.UserAgent,
			EnteredAt: d.EnteredAt.UTC(),
		}
	}
	return out, nil
}
