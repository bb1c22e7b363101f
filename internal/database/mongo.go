// Package database はMongoDB接続のライフサイクル管理を提供する。
//
// クライアントは起動時に1回だけ生成し、依存として各コンポーネントに
// 注入する。グローバルなキャッシュは持たない。
package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// connectTimeout は接続確認（ping）のタイムアウト。
const connectTimeout = 10 * time.Second

// Connect はMongoDBクライアントを生成し、接続確認を行って返す。
// mongoURLにはMongoDBの接続URLを指定する（例: "mongodb://localhost:27017"）。
func Connect(ctx context.Context, mongoURL string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(mongoURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		// 接続に失敗したクライアントは破棄する
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	return client, nil
}

// Pinger はヘルスチェック用にMongoDBへの疎通確認を提供する。
type Pinger struct {
	client *mongo.Client
}

// NewPinger はPingerを生成する。
func NewPinger(client *mongo.Client) *Pinger {
	return &Pinger{client: client}
}

// Ping はプライマリノードへの疎通を確認する。
func (p *Pinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx, readpref.Primary())
}
