package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/secondchance/internal/auth"
	"github.com/hitoshi/secondchance/internal/middleware"
	"github.com/hitoshi/secondchance/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, email, password string) (*auth.RegisterResult, error)
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	UpdateProfile(ctx context.Context, identityEmail, newName string) (*auth.UpdateResult, error)
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// --- リクエスト/レスポンス型 ---

// credentialsRequest は登録・ログインリクエストのボディ。
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// registerResponse は登録成功時のレスポンス。
type registerResponse struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// loginResponse はログイン成功時のレスポンス。
// フィールド名は既存クライアントとの互換のためこの形を維持する。
type loginResponse struct {
	Authtoken string `json:"authtoken"`
	UserName  string `json:"userName"`
	UserEmail string `json:"userEmail"`
}

// updateRequest はプロフィール更新リクエストのボディ。
type updateRequest struct {
	Name string `json:"name"`
}

// updateResponse はプロフィール更新成功時のレスポンス。
type updateResponse struct {
	Authtoken string `json:"authtoken"`
}

// Register は新規ユーザーを登録する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディを解析できません"))
		return
	}

	result, err := h.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		Email: result.Email,
		Token: result.Token,
	})
}

// Login は資格情報を検証しトークンを発行する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディを解析できません"))
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Authtoken: result.Token,
		UserName:  result.DisplayName,
		UserEmail: result.Email,
	})
}

// Update はプロフィール（表示名）を更新する。
// PUT /api/auth/update
// アイデンティティは検証済みBearerトークンから取り出す。
func (h *AuthHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewInvalidTokenError())
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディを解析できません"))
		return
	}

	result, err := h.service.UpdateProfile(r.Context(), identity.Email, req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updateResponse{
		Authtoken: result.Token,
	})
}
