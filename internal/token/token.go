// Package token は認証トークンの発行と検証を提供する。
//
// 全フロー（登録・ログイン・プロフィール更新）で単一のIssuerを共有し、
// ペイロード形式（sub + email）と有効期限を統一する。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken はトークンが無効（改ざん・形式不正・期限切れ）な場合に返す。
var ErrInvalidToken = errors.New("invalid token")

// Claims は検証済みトークンから取り出した識別情報を表す。
type Claims struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// issuerClaims はJWTの署名・検証に使う内部クレーム型。
type issuerClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Config はIssuerの設定。
type Config struct {
	Secret string        // HMAC署名鍵。必須。
	TTL    time.Duration // 有効期間。未指定の場合は1時間。
	Now    func() time.Time
}

// Issuer はHS256署名のJWTを発行・検証する。
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// New はIssuerを生成する。Secretが空の場合はエラーを返す。
func New(cfg Config) (*Issuer, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Issuer{
		secret: []byte(cfg.Secret),
		ttl:    ttl,
		now:    now,
	}, nil
}

// Issue はユーザーIDとメールアドレスを束縛したトークンを発行する。
// subクレームにユーザーID、expに発行時刻+TTLを設定する。
func (i *Issuer) Issue(userID, email string) (string, error) {
	now := i.now()
	claims := issuerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Email: email,
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンを検証し、識別情報を返す。
// 署名不正・期限切れ・形式不正はすべてErrInvalidTokenとして扱う。
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(
		tokenString,
		&issuerClaims{},
		func(t *jwt.Token) (any, error) {
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*issuerClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return &Claims{
		UserID:    claims.Subject,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
