package model

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Item は出品されたリユース品を表す。
// IDはコレクション内で連番の数値ID（Mongoの_idとは別）。
type Item struct {
	ObjectID    bson.ObjectID `bson:"_id,omitempty" json:"-"`
	ID          int           `bson:"id" json:"id"`
	Name        string        `bson:"name" json:"name"`
	Category    string        `bson:"category" json:"category"`
	Condition   string        `bson:"condition" json:"condition"`
	Description string        `bson:"description,omitempty" json:"description,omitempty"`
	AgeDays     int           `bson:"age_days" json:"age_days"`
	AgeYears    float64       `bson:"age_years" json:"age_years"`
	Image       string        `bson:"image,omitempty" json:"image,omitempty"`
	CreatedAt   time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// ItemUpdate は品目の部分更新で書き換えるフィールドの集合。
// 指定フィールドのみを$setし、ドキュメント全体の上書きは行わない。
type ItemUpdate struct {
	Category    string
	Condition   string
	AgeDays     int
	AgeYears    float64
	Description string
	UpdatedAt   time.Time
}

// SearchQuery は品目検索の絞り込み条件を表す。
// ゼロ値のフィールドは条件に含めない。
type SearchQuery struct {
	Name        string   // 部分一致（大文字小文字を区別しない）
	Category    string   // 完全一致
	Condition   string   // 完全一致
	MaxAgeYears *float64 // age_years <= MaxAgeYears
}

// AgeYearsFromDays は経過日数から年数を算出する（小数第1位に丸め）。
func AgeYearsFromDays(days int) float64 {
	return math.Round(float64(days)/365.0*10) / 10
}
