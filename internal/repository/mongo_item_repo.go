package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/hitoshi/secondchance/internal/model"
)

// MongoItemRepo はMongoDBを使用した品目リポジトリ。
type MongoItemRepo struct {
	coll *mongo.Collection
}

// NewMongoItemRepo はMongoItemRepoを生成する。
// collectionNameには品目コレクション名（MONGO_COLLECTION）を指定する。
func NewMongoItemRepo(db *mongo.Database, collectionName string) *MongoItemRepo {
	return &MongoItemRepo{coll: db.Collection(collectionName)}
}

// List は全品目を取得する。
func (r *MongoItemRepo) List(ctx context.Context) ([]model.Item, error) {
	cursor, err := r.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer cursor.Close(ctx)

	items := []model.Item{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}
	return items, nil
}

// FindByID は指定の連番IDの品目を取得する。見つからない場合はnilを返す。
func (r *MongoItemRepo) FindByID(ctx context.Context, id int) (*model.Item, error) {
	item := &model.Item{}
	err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(item)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find item by id: %w", err)
	}
	return item, nil
}

// NextID は現在の最大連番ID+1を返す。コレクションが空の場合は1を返す。
func (r *MongoItemRepo) NextID(ctx context.Context) (int, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "id", Value: -1}})

	last := &model.Item{}
	err := r.coll.FindOne(ctx, bson.M{}, opts).Decode(last)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find last item id: %w", err)
	}
	return last.ID + 1, nil
}

// Create は品目を作成する。
func (r *MongoItemRepo) Create(ctx context.Context, item *model.Item) error {
	if item.ObjectID.IsZero() {
		item.ObjectID = bson.NewObjectID()
	}

	if _, err := r.coll.InsertOne(ctx, item); err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

// Update は更新対象フィールドのみを$setで部分更新する。
func (r *MongoItemRepo) Update(ctx context.Context, id int, update model.ItemUpdate) (bool, error) {
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"id": id},
		bson.M{"$set": bson.M{
			"category":    update.Category,
			"condition":   update.Condition,
			"age_days":    update.AgeDays,
			"age_years":   update.AgeYears,
			"description": update.Description,
			"updated_at":  update.UpdatedAt,
		}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to update item: %w", err)
	}
	return result.MatchedCount > 0, nil
}

// Delete は指定品目を削除する。
func (r *MongoItemRepo) Delete(ctx context.Context, id int) (bool, error) {
	result, err := r.coll.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return false, fmt.Errorf("failed to delete item: %w", err)
	}
	return result.DeletedCount > 0, nil
}

// Search は絞り込み条件に一致する品目を取得する。
func (r *MongoItemRepo) Search(ctx context.Context, query model.SearchQuery) ([]model.Item, error) {
	cursor, err := r.coll.Find(ctx, buildSearchFilter(query))
	if err != nil {
		return nil, fmt.Errorf("failed to search items: %w", err)
	}
	defer cursor.Close(ctx)

	items := []model.Item{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode search results: %w", err)
	}
	return items, nil
}

// buildSearchFilter はSearchQueryからMongoのフィルタドキュメントを構築する。
// ゼロ値のフィールドは条件に含めない。
func buildSearchFilter(query model.SearchQuery) bson.M {
	filter := bson.M{}

	if query.Name != "" {
		// 名前は大文字小文字を区別しない部分一致
		filter["name"] = bson.M{"$regex": query.Name, "$options": "i"}
	}
	if query.Category != "" {
		filter["category"] = query.Category
	}
	if query.Condition != "" {
		filter["condition"] = query.Condition
	}
	if query.MaxAgeYears != nil {
		filter["age_years"] = bson.M{"$lte": *query.MaxAgeYears}
	}

	return filter
}

// compile-time interface check
var _ ItemRepository = (*MongoItemRepo)(nil)
