package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/secondchance/internal/item"
	"github.com/hitoshi/secondchance/internal/model"
)

// defaultMaxUploadSize は画像アップロードの上限サイズ（デフォルト10MB）。
const defaultMaxUploadSize = 10 << 20

// ItemServiceInterface は品目ハンドラーが必要とするサービスインターフェース。
type ItemServiceInterface interface {
	ListItems(ctx context.Context) ([]model.Item, error)
	GetItem(ctx context.Context, id int) (*model.Item, error)
	CreateItem(ctx context.Context, input item.CreateItemInput, image *item.UploadedImage) (*model.Item, error)
	UpdateItem(ctx context.Context, id int, input item.UpdateItemInput) error
	DeleteItem(ctx context.Context, id int) error
}

// ItemHandlerConfig は品目ハンドラーの設定。
type ItemHandlerConfig struct {
	MaxUploadSize int64 // multipartフォームの上限バイト数
}

// ItemHandler は品目管理のHTTPハンドラー。
type ItemHandler struct {
	service ItemServiceInterface
	config  ItemHandlerConfig
}

// NewItemHandler はItemHandlerを生成する。
func NewItemHandler(service ItemServiceInterface, config ItemHandlerConfig) *ItemHandler {
	if config.MaxUploadSize <= 0 {
		config.MaxUploadSize = defaultMaxUploadSize
	}
	return &ItemHandler{
		service: service,
		config:  config,
	}
}

// --- リクエスト/レスポンス型 ---

// itemUpdateRequest は品目更新リクエストのボディ。
type itemUpdateRequest struct {
	Category    string `json:"category"`
	Condition   string `json:"condition"`
	AgeDays     int    `json:"age_days"`
	Description string `json:"description"`
}

// itemCreatedResponse は品目登録成功時のレスポンス。
type itemCreatedResponse struct {
	Message string      `json:"message"`
	Item    *model.Item `json:"item"`
}

// messageResponse は確認メッセージのみのレスポンス。
type messageResponse struct {
	Message string `json:"message"`
}

// ListItems は全品目を返す。
// GET /api/secondchance/items
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

// GetItem は指定IDの品目を返す。
// GET /api/secondchance/items/{id}
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemIDFromURL(w, r)
	if !ok {
		return
	}

	found, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, found)
}

// CreateItem は品目を登録する。画像はmultipartフォームの"image"フィールドで受け取る。
// POST /api/secondchance/items
func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.config.MaxUploadSize); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidImageError("フォームを解析できません"))
		return
	}

	ageDays, err := formInt(r, "age_days")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("age_daysは数値で指定してください"))
		return
	}

	input := item.CreateItemInput{
		Name:        r.FormValue("name"),
		Category:    r.FormValue("category"),
		Condition:   r.FormValue("condition"),
		Description: r.FormValue("description"),
		AgeDays:     ageDays,
	}

	var image *item.UploadedImage
	file, header, err := r.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		image = &item.UploadedImage{
			Filename: header.Filename,
			Data:     file,
		}
	case errors.Is(err, http.ErrMissingFile):
		// 画像なしの登録を許可する
	default:
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidImageError("画像ファイルを読み取れません"))
		return
	}

	created, err := h.service.CreateItem(r.Context(), input, image)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, itemCreatedResponse{
		Message: "Item created",
		Item:    created,
	})
}

// UpdateItem は品目の特定フィールドを更新する。
// PUT /api/secondchance/items/{id}
func (h *ItemHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemIDFromURL(w, r)
	if !ok {
		return
	}

	var req itemUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディを解析できません"))
		return
	}

	input := item.UpdateItemInput{
		Category:    req.Category,
		Condition:   req.Condition,
		AgeDays:     req.AgeDays,
		Description: req.Description,
	}

	if err := h.service.UpdateItem(r.Context(), id, input); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Item updated successfully"})
}

// DeleteItem は品目を削除する。
// DELETE /api/secondchance/items/{id}
func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemIDFromURL(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteItem(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Item deleted successfully"})
}

// itemIDFromURL はURLパラメータから品目IDを取り出す。
// 数値でない場合は400を書き込んでfalseを返す。
func itemIDFromURL(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("品目IDは数値で指定してください"))
		return 0, false
	}
	return id, true
}

// formInt はフォーム値を整数として解析する。未指定は0を返す。
func formInt(r *http.Request, key string) (int, error) {
	v := r.FormValue(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
