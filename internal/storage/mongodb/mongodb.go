// Package mongodb stores users, categories and expenses in MongoDB.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"spendwise/internal/core"
	"spendwise/internal/storage"
)

const (
	usersCollection      = "users"
	categoriesCollection = "categories"
	expensesCollection   = "expenses"
)

type Store struct {
	client     *mongo.Client
	users      *mongo.Collection
	categories *mongo.Collection
	expenses   *mongo.Collection
	now        func() time.Time
}

var _ storage.Store = (*Store)(nil)

// Connect opens a client for uri, selects database and makes sure the
// indexes exist.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:     client,
		users:      db.Collection(usersCollection),
		categories: db.Collection(categoriesCollection),
		expenses:   db.Collection(expensesCollection),
		now:        func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}

	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	slog.InfoContext(ctx, "Connected to MongoDB", "database", database)
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create users index: %w", err)
	}

	_, err = s.categories.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create categories index: %w", err)
	}

	_, err = s.expenses.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "date", Value: -1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "category", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create expenses indexes: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("ping MongoDB: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// objectID parses a hex id; malformed ids can never match a document.
func objectID(id string) (bson.ObjectID, bool) {
	oid, err := bson.ObjectIDFromHex(id)
	return oid, err == nil
}

type userDoc struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Name      string        `bson:"name"`
	Email     string        `bson:"email"`
	Image     string        `bson:"image"`
	GoogleID  string        `bson:"googleId"`
	CreatedAt time.Time     `bson:"createdAt"`
	UpdatedAt time.Time     `bson:"updatedAt"`
}

func (d userDoc) toCore() core.User {
	return core.User{
		ID: d.ID.Hex(), Name: d.Name, Email: d.Email, Image: d.Image, GoogleID: d.GoogleID,
		CreatedAt: d.CreatedAt.UTC(), UpdatedAt: d.UpdatedAt.UTC(),
	}
}

type categoryDoc struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	UserID    string        `bson:"userId"`
	Name      string        `bson:"name"`
	Color     string        `bson:"color"`
	Icon      string        `bson:"icon"`
	CreatedAt time.Time     `bson:"createdAt"`
	UpdatedAt time.Time     `bson:"updatedAt"`
}

func (d categoryDoc) toCore() core.Category {
	return core.Category{
		ID: d.ID.Hex(), UserID: d.UserID, Name: d.Name, Color: d.Color, Icon: d.Icon,
		CreatedAt: d.CreatedAt.UTC(), UpdatedAt: d.UpdatedAt.UTC(),
	}
}

type expenseDoc struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	UserID      string        `bson:"userId"`
	CategoryID  string        `bson:"category"`
	AmountCents int64         `bson:"amountCents"`
	Description string        `bson:"description"`
	Place       string        `bson:"place"`
	Date        time.Time     `bson:"date"`
	CreatedAt   time.Time     `bson:"createdAt"`
	UpdatedAt   time.Time     `bson:"updatedAt"`
}

func (d expenseDoc) toCore() core.Expense {
	return core.Expense{
		ID: d.ID.Hex(), UserID: d.UserID, CategoryID: d.CategoryID,
		Amount: core.Money{Cents: d.AmountCents}, Description: d.Description, Place: d.Place,
		Date: d.Date.UTC(), CreatedAt: d.CreatedAt.UTC(), UpdatedAt: d.UpdatedAt.UTC(),
	}
}

// Users

func (s *Store) UpsertUser(ctx context.Context, u core.User) (core.User, error) {
	now := s.now()
	filter := bson.M{"email": strings.ToLower(u.Email)}
	update := bson.M{
		"$set": bson.M{
			"name":      u.Name,
			"image":     u.Image,
			"googleId":  u.GoogleID,
			"updatedAt": now,
		},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc userDoc
	if err := s.users.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return core.User{}, fmt.Errorf("upsert user: %w", err)
	}
	return doc.toCore(), nil
}

func (s *Store) GetUser(ctx context.Context, id string) (core.User, error) {
	oid, ok := objectID(id)
	if !ok {
		return core.User{}, core.ErrUserNotFound
	}
	var doc userDoc
	err := s.users.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.User{}, core.ErrUserNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return doc.toCore(), nil
}

// Categories

func (s *Store) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := s.categories.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer cursor.Close(ctx)

	out := make([]core.Category, 0)
	for cursor.Next(ctx) {
		var doc categoryDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode category: %w", err)
		}
		out = append(out, doc.toCore())
	}
	return out, cursor.Err()
}

func (s *Store) findCategory(ctx context.Context, filter bson.M) (core.Category, error) {
	var doc categoryDoc
	err := s.categories.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.Category{}, core.ErrCategoryNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("find category: %w", err)
	}
	return doc.toCore(), nil
}

func (s *Store) GetCategory(ctx context.Context, userID, id string) (core.Category, error) {
	oid, ok := objectID(id)
	if !ok {
		return core.Category{}, core.ErrCategoryNotFound
	}
	return s.findCategory(ctx, bson.M{"_id": oid, "userId": userID})
}

func (s *Store) FindCategoryByName(ctx context.Context, userID, name string) (core.Category, error) {
	return s.findCategory(ctx, bson.M{"userId": userID, "name": name})
}

func (s *Store) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	now := s.now()
	doc := categoryDoc{
		ID:        bson.NewObjectID(),
		UserID:    c.UserID,
		Name:      c.Name,
		Color:     c.Color,
		Icon:      c.Icon,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.categories.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return core.Category{}, core.ErrCategoryExists
		}
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return doc.toCore(), nil
}

func (s *Store) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	oid, ok := objectID(c.ID)
	if !ok {
		return core.Category{}, core.ErrCategoryNotFound
	}
	update := bson.M{"$set": bson.M{
		"name":      c.Name,
		"color":     c.Color,
		"icon":      c.Icon,
		"updatedAt": s.now(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc categoryDoc
	err := s.categories.FindOneAndUpdate(ctx, bson.M{"_id": oid, "userId": c.UserID}, update, opts).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return core.Category{}, core.ErrCategoryNotFound
	case mongo.IsDuplicateKeyError(err):
		return core.Category{}, core.ErrCategoryExists
	case err != nil:
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	return doc.toCore(), nil
}

func (s *Store) DeleteCategory(ctx context.Context, userID, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return core.ErrCategoryNotFound
	}
	res, err := s.categories.DeleteOne(ctx, bson.M{"_id": oid, "userId": userID})
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if res.DeletedCount == 0 {
		return core.ErrCategoryNotFound
	}
	return nil
}

// Expenses

func expenseFilter(userID string, q storage.ExpenseQuery) bson.M {
	filter := bson.M{"userId": userID}
	date := bson.M{}
	if q.From != nil {
		date["$gte"] = q.From.UTC()
	}
	if q.To != nil {
		date["$lte"] = q.To.UTC()
	}
	if len(date) > 0 {
		filter["date"] = date
	}
	if q.CategoryID != "" {
		filter["category"] = q.CategoryID
	}
	return filter
}

func (s *Store) ListExpenses(ctx context.Context, userID string, q storage.ExpenseQuery) ([]core.Expense, int64, error) {
	filter := expenseFilter(userID, q)

	total, err := s.expenses.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count expenses: %w", err)
	}

	opts := options.Find().SetSort(bson.D{
		{Key: "date", Value: -1},
		{Key: "createdAt", Value: -1},
		{Key: "_id", Value: -1},
	})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit)).SetSkip(int64(q.Offset))
	}

	cursor, err := s.expenses.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list expenses: %w", err)
	}
	defer cursor.Close(ctx)

	out := make([]core.Expense, 0)
	for cursor.Next(ctx) {
		var doc expenseDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, 0, fmt.Errorf("decode expense: %w", err)
		}
		out = append(out, doc.toCore())
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, total, nil
}

func (s *Store) GetExpense(ctx context.Context, userID, id string) (core.Expense, error) {
	oid, ok := objectID(id)
	if !ok {
		return core.Expense{}, core.ErrExpenseNotFound
	}
	var doc expenseDoc
	err := s.expenses.FindOne(ctx, bson.M{"_id": oid, "userId": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.Expense{}, core.ErrExpenseNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return doc.toCore(), nil
}

func (s *Store) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	now := s.now()
	doc := expenseDoc{
		ID:          bson.NewObjectID(),
		UserID:      e.UserID,
		CategoryID:  e.CategoryID,
		AmountCents: e.Amount.Cents,
		Description: e.Description,
		Place:       e.Place,
		Date:        e.Date.UTC().Truncate(time.Millisecond),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.expenses.InsertOne(ctx, doc); err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	return doc.toCore(), nil
}

func (s *Store) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	oid, ok := objectID(e.ID)
	if !ok {
		return core.Expense{}, core.ErrExpenseNotFound
	}
	update := bson.M{"$set": bson.M{
		"category":    e.CategoryID,
		"amountCents": e.Amount.Cents,
		"description": e.Description,
		"place":       e.Place,
		"date":        e.Date.UTC().Truncate(time.Millisecond),
		"updatedAt":   s.now(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc expenseDoc
	err := s.expenses.FindOneAndUpdate(ctx, bson.M{"_id": oid, "userId": e.UserID}, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.Expense{}, core.ErrExpenseNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	return doc.toCore(), nil
}

func (s *Store) DeleteExpense(ctx context.Context, userID, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return core.ErrExpenseNotFound
	}
	res, err := s.expenses.DeleteOne(ctx, bson.M{"_id": oid, "userId": userID})
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if res.DeletedCount == 0 {
		return core.ErrExpenseNotFound
	}
	return nil
}

func (s *Store) CountExpensesByCategory(ctx context.Context, userID, categoryID string) (int64, error) {
	n, err := s.expenses.CountDocuments(ctx, bson.M{"userId": userID, "category": categoryID})
	if err != nil {
		return 0, fmt.Errorf("count expenses by category: %w", err)
	}
	return n, nil
}
