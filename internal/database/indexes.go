package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// EnsureIndexes はアプリケーションが前提とするインデックスを作成する。
// 既に存在する場合は何もしない（冪等）。
//
// usersコレクションのemailユニークインデックスは、登録時の
// 存在チェックと挿入が別ステップで走る競合に対する一意性の最後の砦。
// 事前チェックだけでは同時登録の重複を防げない。
func EnsureIndexes(ctx context.Context, db *mongo.Database, itemsCollection string) error {
	users := db.Collection("users")
	_, err := users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create users email index: %w", err)
	}

	items := db.Collection(itemsCollection)
	_, err = items.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create items id index: %w", err)
	}

	return nil
}
