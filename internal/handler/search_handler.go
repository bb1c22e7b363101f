package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/hitoshi/secondchance/internal/model"
)

// SearchServiceInterface は検索ハンドラーが必要とするサービスインターフェース。
type SearchServiceInterface interface {
	SearchItems(ctx context.Context, query model.SearchQuery) ([]model.Item, error)
}

// SearchHandler は品目検索のHTTPハンドラー。
type SearchHandler struct {
	service SearchServiceInterface
}

// NewSearchHandler はSearchHandlerを生成する。
func NewSearchHandler(service SearchServiceInterface) *SearchHandler {
	return &SearchHandler{service: service}
}

// Search は絞り込み条件に一致する品目を返す。
// GET /api/secondchance/search?name=&category=&condition=&age_years=
// 空・空白のみのパラメータは条件に含めない。
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query, err := parseSearchQuery(r)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("age_yearsは数値で指定してください"))
		return
	}

	items, err := h.service.SearchItems(r.Context(), query)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

// parseSearchQuery はクエリパラメータからSearchQueryを構築する。
func parseSearchQuery(r *http.Request) (model.SearchQuery, error) {
	q := r.URL.Query()

	query := model.SearchQuery{
		Name:      strings.TrimSpace(q.Get("name")),
		Category:  strings.TrimSpace(q.Get("category")),
		Condition: strings.TrimSpace(q.Get("condition")),
	}

	if raw := strings.TrimSpace(q.Get("age_years")); raw != "" {
		maxAge, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return model.SearchQuery{}, err
		}
		query.MaxAgeYears = &maxAge
	}

	return query, nil
}
