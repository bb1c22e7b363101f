package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/secondchance/internal/item"
	"github.com/hitoshi/secondchance/internal/model"
)

// --- モック定義 ---

type mockItemService struct {
	listItemsFn  func(ctx context.Context) ([]model.Item, error)
	getItemFn    func(ctx context.Context, id int) (*model.Item, error)
	createItemFn func(ctx context.Context, input item.CreateItemInput, image *item.UploadedImage) (*model.Item, error)
	updateItemFn func(ctx context.Context, id int, input item.UpdateItemInput) error
	deleteItemFn func(ctx context.Context, id int) error
}

func (m *mockItemService) ListItems(ctx context.Context) ([]model.Item, error) {
	if m.listItemsFn != nil {
		return m.listItemsFn(ctx)
	}
	return nil, nil
}

func (m *mockItemService) GetItem(ctx context.Context, id int) (*model.Item, error) {
	if m.getItemFn != nil {
		return m.getItemFn(ctx, id)
	}
	return nil, nil
}

func (m *mockItemService) CreateItem(ctx context.Context, input item.CreateItemInput, image *item.UploadedImage) (*model.Item, error) {
	if m.createItemFn != nil {
		return m.createItemFn(ctx, input, image)
	}
	return nil, nil
}

func (m *mockItemService) UpdateItem(ctx context.Context, id int, input item.UpdateItemInput) error {
	if m.updateItemFn != nil {
		return m.updateItemFn(ctx, id, input)
	}
	return nil
}

func (m *mockItemService) DeleteItem(ctx context.Context, id int) error {
	if m.deleteItemFn != nil {
		return m.deleteItemFn(ctx, id)
	}
	return nil
}

var _ ItemServiceInterface = (*mockItemService)(nil)

// newItemRouter はURLパラメータの解決込みでハンドラーを呼び出すためのルーターを組む。
func newItemRouter(h *ItemHandler) chi.Router {
	r := chi.NewRouter()
	r.Route("/api/secondchance/items", func(r chi.Router) {
		r.Get("/", h.ListItems)
		r.Post("/", h.CreateItem)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetItem)
			r.Put("/", h.UpdateItem)
			r.Delete("/", h.DeleteItem)
		})
	})
	return r
}

// multipartBody はmultipart/form-dataリクエストボディを構築する。
func multipartBody(t *testing.T, fields map[string]string, imageName string, imageData []byte) (*bytes.Buffer, string) {
	t.Helper()

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field %q: %v", k, err)
		}
	}
	if imageName != "" {
		fw, err := mw.CreateFormFile("image", imageName)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := fw.Write(imageData); err != nil {
			t.Fatalf("failed to write image data: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	return buf, mw.FormDataContentType()
}

// --- ListItems / GetItem ---

func TestItemHandler_ListItems_ReturnsAllItems(t *testing.T) {
	svc := &mockItemService{
		listItemsFn: func(ctx context.Context) ([]model.Item, error) {
			return []model.Item{
				{ID: 1, Name: "Kettle"},
				{ID: 2, Name: "Lamp"},
			}, nil
		},
	}
	router := newItemRouter(NewItemHandler(svc, ItemHandlerConfig{}))

	req := httptest.NewRequest(http.MethodGet, "/api/secondchance/items", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var got []model.Item
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len(items) = %d, want 2", len(got))
	}
}

func TestItemHandler_GetItem_ReturnsItem(t *testing.T) {
	svc := &mockItemService{
		getItemFn: func(ctx context.Context, id int) (*model.Item, error) {
			return &model.Item{ID: id, Name: "Kettle"}, nil
		},
	}
	router := newItemRouter(NewItemHandler(svc, ItemHandlerConfig{}))

	req := httptest.NewRequest(http.MethodGet, "/api/secondchance/items/7", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var got model.Item
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.ID != 7 {
		t.Errorf("id = %d, want 7", got.ID)
	}
}

func TestItemHandler_GetItem_NotFound_Returns404(t *testing.T) {
	svc := &mockItemService{
		getItemFn: func(ctx context.Context, id int) (*model.Item, error) {
			return nil, model.NewItemNotFoundError(id)
		},
	}
	router := newItemRouter(NewItemHandler(svc, ItemHandlerConfig{}))

	req := httptest.NewRequest(http.MethodGet, "/api/secondchance/items/999", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestItemHandler_GetItem_NonNumericID_Returns400(t *testing.T) {
	router := newItemRouter(NewItemHandler(&mockItemService{}, ItemHandlerConfig{}))

	req := httptest.NewRequest(http.MethodGet, "/api/secondchance/items/abc", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- CreateItem ---

func TestItemHandler_CreateItem_WithImage_Returns201(t *testing.T) {
	var gotInput item.CreateItemInput
	var gotImageName string
	var gotImageData []byte

	svc := &mockItemService{
		createItemFn: func(ctx context.Context, input item.CreateItemInput, image *item.UploadedImage) (*model.Item, error) {
			gotInput = input
			if image != nil {
				gotImageName = image.Filename
				data, _ := io.ReadAll(image.Data)
				gotImageData = data
			}
			return &model.Item{ID: 1, Name: input.Name}, nil
		},
	}
	router := newItemRouter(NewItemHandler(svc, ItemHandlerConfig{}))

	body, contentType := multipartBody(t, map[string]string{
		"name":        "Kettle",
		"category":    "kitchen",
		"condition":   "good",
		"description": "Slightly used",
		"age_days":    "365",
	}, "kettle.jpg", []byte("fake-image-bytes"))

	req := httptest.NewRequest(http.MethodPost, "/api/secondchance/items", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d, body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	if gotInput.Name != "Kettle" {
		t.Errorf("name = %q, want %q", gotInput.Name, "Kettle")
	}
	if gotInput.AgeDays != 365 {
		t.Errorf("age_days = %d, want 365", gotInput.AgeDays)
	}
	if gotImageName != "kettle.jpg" {
		t.Errorf("image filename = %q, want %q", gotImageName, "kettle.jpg")
	}
	if string(gotImageData) != "fake-image-bytes" {
		t.Errorf("image data = %q, want %q", gotImageData, "fake-image-bytes")
	}

	var resp struct {
		Message string     `json:"message"`
		Item    model.Item `json:"item"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Message != "Item created" {
		t.Errorf("message = %q, want %q", resp.Message, "Item created")
	}
}

func TestItemHandler_CreateItem_WithoutImage_Succeeds(t *testing.T) {
	var gotImage *item.UploadedImage
	called := false

	svc := &mockItemService{
		createItemFn: func(ctx context.Context, input item.CreateItemInput, image *item.UploadedImage) (*model.Item, error) {
			called = true
			gotImage = image
			return &model.Item{ID: 1, Name: input.Name}, nil
		},
	}
	router := newItemRouter(NewItemHandler(svc, ItemHandlerConfig{}))

	body, contentType := multipartBody(t, map[string]string{
		"name":     "Kettle",
		"age_days": "10",
	}, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/secondchance/items", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if !called {
		t.Fatal("service should be called")
	}
	if gotImage != nil {
		t.Error("image should be nil when no file is uploaded")
	}
}

func TestItemHandler_CreateItem_InvalidAgeDays_Returns400(t *testing.T) {
	router := newItemRouter(NewItemHandler(&mockItemService{}, ItemHandlerConfig{}))

	body, contentType := multipartBody(t, map[string]string{
		"name":     "Kettle",
		"age_days": "not-a-number",
	}, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/secondchance/items", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestItemHandler_CreateItem_NotMultipart_Returns400(t *testing.T) {
	router := newItemRouter(NewItemHandler(&mockItemService{}, ItemHandlerConfig{}))

	req := httptest.NewRequest(http.MethodPost, "/api/secondchance/items", strings.NewReader(`{"name":"Kettle"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- UpdateItem / DeleteItem ---

func TestItemHandler_UpdateItem_Success_ReturnsConfirmation(t *testing.T) {
	var gotID int
	var gotInput item.UpdateItemInput

	svc := &mockItemService{
		updateItemFn: func(ctx context.Context, id int, input item.UpdateItemInput) error {
			gotID = id
			gotInput = input
			return nil
		},
	}
	router := newItemRouter(NewItemHandler(svc, ItemHandlerConfig{}))

	body := `{"category":"kitchen","condition":"fair","age_days":730,"description":"Updated"}`
	req := httptest.NewRequest(http.MethodPut, "/api/secondchance/items/5", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotID != 5 {
		t.Errorf("id = %d, want 5", gotID)
	}
	if gotInput.AgeDays != 730 {
		t.Errorf("age_days = %d, want 730", gotInput.AgeDays)
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["message"] != "Item updated successfully" {
		t.Errorf("message = %q, want %q", resp["message"], "Item updated successfully")
	}
}

func TestItemHandler_UpdateItem_NotFound_Returns404(t *testing.T) {
	svc := &mockItemService{
		updateItemFn: func(ctx context.Context, id int, input item.UpdateItemInput) error {
			return model.NewItemNotFoundError(id)
		},
	}
	router := newItemRouter(NewItemHandler(svc, ItemHandlerConfig{}))

	req := httptest.NewRequest(http.MethodPut, "/api/secondchance/items/999", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestItemHandler_DeleteItem_Success_ReturnsConfirmation(t *testing.T) {
	var gotID int
	svc := &mockItemService{
		deleteItemFn: func(ctx context.Context, id int) error {
			gotID = id
			return nil
		},
	}
	router := newItemRouter(NewItemHandler(svc, ItemHandlerConfig{}))

	req := httptest.NewRequest(http.MethodDelete, "/api/secondchance/items/3", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotID != 3 {
		t.Errorf("id = %d, want 3", gotID)
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["message"] != "Item deleted successfully" {
		t.Errorf("message = %q, want %q", resp["message"], "Item deleted successfully")
	}
}

func TestItemHandler_DeleteItem_NotFound_Returns404(t *testing.T) {
	svc := &mockItemService{
		deleteItemFn: func(ctx context.Context, id int) error {
			return model.NewItemNotFoundError(id)
		},
	}
	router := newItemRouter(NewItemHandler(svc, ItemHandlerConfig{}))

	req := httptest.NewRequest(http.MethodDelete, "/api/secondchance/items/999", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
