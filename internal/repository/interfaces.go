// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/hitoshi/secondchance/internal/model"
)

// ErrDuplicateEmail はemailのユニークインデックス違反を表す。
// 登録の事前チェックはあくまで早期リターンであり、
// ストア側の制約違反が一意性の最終的な判定となる。
var ErrDuplicateEmail = errors.New("email already registered")

// UserRepository はユーザードキュメントの永続化インターフェース。
type UserRepository interface {
	// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
	// 照合はストアに保存された値との完全一致（大文字小文字を区別する）。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。IDが未設定の場合は採番して書き戻す。
	// emailが重複している場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateName は指定ユーザーの表示名と更新日時のみを部分更新する。
	// ドキュメント全体の上書きは行わない。
	UpdateName(ctx context.Context, id bson.ObjectID, name string, updatedAt time.Time) error
}

// ItemRepository は品目ドキュメントの永続化インターフェース。
type ItemRepository interface {
	// List は全品目を取得する。
	List(ctx context.Context) ([]model.Item, error)

	// FindByID は指定の連番IDの品目を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int) (*model.Item, error)

	// NextID は次に割り当てる連番ID（現在の最大ID+1、空の場合は1）を返す。
	NextID(ctx context.Context) (int, error)

	// Create は品目を作成する。
	Create(ctx context.Context, item *model.Item) error

	// Update は指定品目の更新対象フィールドのみを$setで部分更新する。
	// 対象が存在しない場合はfalseを返す。
	Update(ctx context.Context, id int, update model.ItemUpdate) (bool, error)

	// Delete は指定品目を削除する。対象が存在しない場合はfalseを返す。
	Delete(ctx context.Context, id int) (bool, error)

	// Search は絞り込み条件に一致する品目を取得する。
	Search(ctx context.Context, query model.SearchQuery) ([]model.Item, error)
}
