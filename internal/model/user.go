// Package model はドメインモデルを定義する。
package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User はサービス利用ユーザーを表す。
// PasswordHashはJSONに決してシリアライズしない。
type User struct {
	ID           bson.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Email        string        `bson:"email" json:"email"`
	PasswordHash string        `bson:"password_hash" json:"-"`
	Name         string        `bson:"name,omitempty" json:"name,omitempty"`
	CreatedAt    time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `bson:"updated_at" json:"updated_at"`
}

// DefaultDisplayName は表示名が未設定のユーザーに使用するフォールバック値。
const DefaultDisplayName = "User"

// DisplayName はユーザーの表示名を返す。
// 名前が未設定の場合はDefaultDisplayNameを返す。
func (u *User) DisplayName() string {
	if u.Name == "" {
		return DefaultDisplayName
	}
	return u.Name
}
