package handler

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"kodomo/inventoryhub/internal/config"
	"kodomo/inventoryhub/internal/imaging"
	"kodomo/inventoryhub/internal/model"
	"kodomo/inventoryhub/internal/repository"
	"kodomo/inventoryhub/internal/service"
	"kodomo/inventoryhub/internal/testutil"
	"kodomo/inventoryhub/pkg/crypto"
	jwtpkg "kodomo/inventoryhub/pkg/jwt"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Mode: "test", MaxUploadBytes: 5 << 20},
		Invite: config.InviteConfig{TTL: time.Hour, CodeLength: 6},
		RateLimit: config.RateLimitConfig{
			RedeemPerMinute: 600,
			RedeemBurst:     100,
			VisionPerMinute: 600,
			VisionBurst:     100,
		},
	}
}

// newTestRouter wires the full cloud surface over an in-memory SQLite store,
// plus the local variant.
func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	crypto.BcryptCost = bcrypt.MinCost

	cfg := newTestConfig()
	logger := zaptest.NewLogger(t)
	store := repository.NewGormStore(testutil.SetupTestDB(t), true)
	notifier := repository.NewMemoryNotifier()
	jwtManager := jwtpkg.NewManager("test-signing-key", "inventoryhub-test", 15*time.Minute, time.Hour)
	sealer := crypto.NewSealer("test-seal-key")

	images, err := repository.NewLocalImageStore(t.TempDir(), "/images")
	if err != nil {
		t.Fatalf("image store: %v", err)
	}
	localImages, err := repository.NewLocalImageStore(t.TempDir(), "/local-images")
	if err != nil {
		t.Fatalf("local image store: %v", err)
	}
	imageOpt := imaging.Options{MaxDimension: 64}

	local := service.NewLocalInventory(
		repository.NewSnapshotRepository(repository.NewMemoryStateStore(), logger), localImages, logger)
	if err := local.Load(testutil.TestContext(t)); err != nil {
		t.Fatalf("load local inventory: %v", err)
	}

	authState := repository.NewMemoryStateStore()
	h := Handlers{
		Auth:        NewAuthHandler(service.NewAuthService(store, authState, notifier, jwtManager, sealer, logger)),
		OAuth2:      NewOAuth2Handler(service.NewOAuth2Service(config.OAuth2Config{}, store, authState, jwtManager, http.DefaultClient, logger)),
		Identity:    NewIdentityHandler(service.NewLinkedAccountService(store, logger)),
		Group:       NewGroupHandler(service.NewGroupService(store, notifier, images, true, logger)),
		Item:        NewItemHandler(service.NewItemService(store, notifier, images, imageOpt, logger), cfg.Server.MaxUploadBytes),
		Invite:      NewInviteHandler(service.NewInviteService(store, notifier, true, cfg.Invite, nil, logger)),
		Vision:      NewVisionHandler(service.NewVisionService(store, sealer, http.DefaultClient, cfg.Vision, imageOpt, logger), cfg.Server.MaxUploadBytes),
		Sync:        NewSyncHandler(service.NewSyncService(store, notifier, logger)),
		Local:       NewLocalHandler(local, cfg.Server.MaxUploadBytes),
		Images:      NewImageHandler(images, "/images"),
		LocalImages: NewImageHandler(localImages, "/local-images"),
	}
	return SetupRouter(cfg, logger, jwtManager, h)
}

func do(t *testing.T, r http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return serve(t, r, req, token)
}

func serve(t *testing.T, r http.Handler, req *http.Request, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
	}
	return rec, env
}

func decodeData(t *testing.T, env envelope, dst any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

// signUp registers a user and returns an access token.
func signUp(t *testing.T, r http.Handler, email, name string) string {
	t.Helper()
	rec, _ := do(t, r, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": email, "password": "correct horse", "display_name": name,
	})
	expectStatus(t, rec, http.StatusCreated)

	rec, env := do(t, r, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": email, "password": "correct horse",
	})
	expectStatus(t, rec, http.StatusOK)
	var tokens service.TokenSet
	decodeData(t, env, &tokens)
	if tokens.AccessToken == "" {
		t.Fatal("login returned no access token")
	}
	return tokens.AccessToken
}

func createGroup(t *testing.T, r http.Handler, token, name string) model.Group {
	t.Helper()
	rec, env := do(t, r, http.MethodPost, "/api/v1/groups", token, map[string]string{"name": name})
	expectStatus(t, rec, http.StatusCreated)
	var g model.Group
	decodeData(t, env, &g)
	return g
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t)
	rec, _ := do(t, r, http.MethodGet, "/healthz", "", nil)
	expectStatus(t, rec, http.StatusOK)
}

func TestGroupItemFlow(t *testing.T) {
	r := newTestRouter(t)
	alice := signUp(t, r, "alice@example.com", "Alice")
	bob := signUp(t, r, "bob@example.com", "Bob")

	g := createGroup(t, r, alice, "Tanaka")
	if len(g.Categories) == 0 {
		t.Fatal("new group has no default categories")
	}
	base := "/api/v1/groups/" + g.ID

	rec, env := do(t, r, http.MethodPost, base+"/items", alice, map[string]any{
		"name":       "Blue shirt",
		"categoryId": g.Categories[0].ID,
		"size":       "90cm",
		"brand":      "Uniqlo",
	})
	expectStatus(t, rec, http.StatusCreated)
	var item model.InventoryItem
	decodeData(t, env, &item)
	if item.ChildID != model.SharedChildID || item.Quantity != 1 {
		t.Fatalf("item defaults = child %q quantity %d", item.ChildID, item.Quantity)
	}

	rec, env = do(t, r, http.MethodGet, base+"/items?q=shirt&size=90cm", alice, nil)
	expectStatus(t, rec, http.StatusOK)
	var view service.InventoryView
	decodeData(t, env, &view)
	if len(view.Items) != 1 || view.Items[0].ID != item.ID {
		t.Fatalf("filtered items = %+v", view.Items)
	}

	rec, env = do(t, r, http.MethodGet, base+"/facets", alice, nil)
	expectStatus(t, rec, http.StatusOK)
	var facets FacetsResponse
	decodeData(t, env, &facets)
	if len(facets.Sizes) != 1 || facets.Sizes[0] != "90cm" {
		t.Fatalf("sizes = %v", facets.Sizes)
	}

	rec, _ = do(t, r, http.MethodPatch, base+"/items/"+item.ID, alice, map[string]any{"quantity": 3})
	expectStatus(t, rec, http.StatusOK)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{"no token", http.MethodGet, base, "", nil, http.StatusUnauthorized},
		{"outsider", http.MethodGet, base, bob, nil, http.StatusForbidden},
		{"missing item", http.MethodGet, base + "/items/nope", alice, nil, http.StatusNotFound},
		{"missing group", http.MethodGet, "/api/v1/groups/nope", alice, nil, http.StatusNotFound},
		{"empty item name", http.MethodPost, base + "/items", alice, map[string]any{"name": " ", "categoryId": g.Categories[0].ID}, http.StatusBadRequest},
		{"unknown category", http.MethodPost, base + "/items", alice, map[string]any{"name": "Hat", "categoryId": "nope"}, http.StatusBadRequest},
		{"bad role", http.MethodPut, base + "/members/" + "x" + "/role", alice, map[string]any{"role": "king"}, http.StatusBadRequest},
		{"empty category patch", http.MethodPatch, base + "/categories/" + g.Categories[0].ID, alice, map[string]any{}, http.StatusBadRequest},
		{"rename category", http.MethodPatch, base + "/categories/" + g.Categories[0].ID, alice, map[string]any{"name": "Tops"}, http.StatusOK},
		{"empty local child patch", http.MethodPatch, "/api/v1/local/children/any", alice, map[string]any{}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := do(t, r, tt.method, tt.path, tt.token, tt.body)
			expectStatus(t, rec, tt.want)
		})
	}

	rec, _ = do(t, r, http.MethodDelete, base+"/items/"+item.ID, alice, nil)
	expectStatus(t, rec, http.StatusOK)
	rec, _ = do(t, r, http.MethodGet, base+"/items/"+item.ID, alice, nil)
	expectStatus(t, rec, http.StatusNotFound)
}

func TestInviteRedeemFlow(t *testing.T) {
	r := newTestRouter(t)
	alice := signUp(t, r, "alice@example.com", "Alice")
	bob := signUp(t, r, "bob@example.com", "Bob")
	g := createGroup(t, r, alice, "Tanaka")

	rec, env := do(t, r, http.MethodPost, "/api/v1/groups/"+g.ID+"/invite-codes", alice, map[string]int{"maxUses": 1})
	expectStatus(t, rec, http.StatusCreated)
	var code model.InviteCode
	decodeData(t, env, &code)

	rec, env = do(t, r, http.MethodPost, "/api/v1/invite-codes/redeem", bob,
		map[string]string{"code": strings.ToLower(code.Code)})
	expectStatus(t, rec, http.StatusOK)
	var joined model.Group
	decodeData(t, env, &joined)
	if joined.ID != g.ID || joined.MemberNames[joined.OwnerID] != "Alice" {
		t.Fatalf("joined group = %+v", joined)
	}

	rec, _ = do(t, r, http.MethodGet, "/api/v1/groups/"+g.ID, bob, nil)
	expectStatus(t, rec, http.StatusOK)

	rec, _ = do(t, r, http.MethodPost, "/api/v1/invite-codes/redeem", bob, map[string]string{"code": code.Code})
	if rec.Code != http.StatusGone && rec.Code != http.StatusConflict {
		t.Fatalf("second redeem status = %d, want 410 or 409", rec.Code)
	}

	rec, _ = do(t, r, http.MethodPost, "/api/v1/invite-codes/redeem", bob, map[string]string{"code": "ZZZZZZ"})
	expectStatus(t, rec, http.StatusNotFound)

	rec, _ = do(t, r, http.MethodPost, "/api/v1/groups/"+g.ID+"/invite-codes/"+code.ID+"/send", alice,
		map[string]string{"email": "carol@example.com"})
	expectStatus(t, rec, http.StatusServiceUnavailable)
}

func pngBody(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{G: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func multipartItem(t *testing.T, fields map[string]string, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "photo.png")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		fw.Write(image)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestItemMultipartUpload(t *testing.T) {
	r := newTestRouter(t)
	alice := signUp(t, r, "alice@example.com", "Alice")
	g := createGroup(t, r, alice, "Tanaka")

	body, contentType := multipartItem(t, map[string]string{
		"name":       "Raincoat",
		"categoryId": g.Categories[0].ID,
		"quantity":   "2",
	}, pngBody(t, 200, 100))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/groups/"+g.ID+"/items", body)
	req.Header.Set("Content-Type", contentType)
	rec, env := serve(t, r, req, alice)
	expectStatus(t, rec, http.StatusCreated)

	var item model.InventoryItem
	decodeData(t, env, &item)
	if item.Quantity != 2 || item.ImageURL == nil || !strings.HasPrefix(*item.ImageURL, "/images/img_") {
		t.Fatalf("uploaded item = %+v", item)
	}

	rec, _ = do(t, r, http.MethodGet, *item.ImageURL, "", nil)
	expectStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Fatalf("image content type = %q", ct)
	}

	body, contentType = multipartItem(t, map[string]string{"name": "Broken"}, []byte("not an image"))
	req = httptest.NewRequest(http.MethodPatch, "/api/v1/groups/"+g.ID+"/items/"+item.ID, body)
	req.Header.Set("Content-Type", contentType)
	rec, _ = serve(t, r, req, alice)
	expectStatus(t, rec, http.StatusBadRequest)

	rec, _ = do(t, r, http.MethodGet, "/images/../secret", "", nil)
	if rec.Code == http.StatusOK {
		t.Fatal("path outside the image directory was served")
	}
}

func TestLocalRoutes(t *testing.T) {
	r := newTestRouter(t)
	token := signUp(t, r, "alice@example.com", "Alice")

	rec, env := do(t, r, http.MethodPost, "/api/v1/local/children", token, map[string]string{"name": "Hana", "emoji": "🌸"})
	expectStatus(t, rec, http.StatusCreated)
	var child model.Child
	decodeData(t, env, &child)

	rec, env = do(t, r, http.MethodGet, "/api/v1/local/snapshot", token, nil)
	expectStatus(t, rec, http.StatusOK)
	var snap model.Snapshot
	decodeData(t, env, &snap)
	if len(snap.Children) != 1 || snap.Children[0].ID != child.ID {
		t.Fatalf("snapshot children = %+v", snap.Children)
	}

	body, contentType := multipartItem(t, map[string]string{
		"name":       "Boots",
		"categoryId": snap.Categories[0].ID,
		"childId":    child.ID,
	}, pngBody(t, 10, 10))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/local/items", body)
	req.Header.Set("Content-Type", contentType)
	rec, env = serve(t, r, req, token)
	expectStatus(t, rec, http.StatusCreated)
	var item model.InventoryItem
	decodeData(t, env, &item)
	if item.ImageURL == nil || !strings.HasPrefix(*item.ImageURL, "/local-images/img_") {
		t.Fatalf("local item image = %v", item.ImageURL)
	}

	rec, _ = do(t, r, http.MethodGet, "/api/v1/local/export", token, nil)
	expectStatus(t, rec, http.StatusOK)
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "family-inventory-") {
		t.Fatalf("Content-Disposition = %q", cd)
	}
	exported := rec.Body.Bytes()
	if bytes.Contains(exported, []byte("/local-images/")) {
		t.Fatal("export still carries image references")
	}

	rec, _ = do(t, r, http.MethodDelete, "/api/v1/local/children/"+child.ID, token, nil)
	expectStatus(t, rec, http.StatusOK)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/local/import", bytes.NewReader(exported))
	req.Header.Set("Content-Type", "application/json")
	rec, env = serve(t, r, req, token)
	expectStatus(t, rec, http.StatusOK)
	decodeData(t, env, &snap)
	if len(snap.Children) != 1 || len(snap.Items) != 1 {
		t.Fatalf("imported snapshot = %d children, %d items", len(snap.Children), len(snap.Items))
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/local/import", strings.NewReader(`{"version":0}`))
	req.Header.Set("Content-Type", "application/json")
	rec, _ = serve(t, r, req, token)
	expectStatus(t, rec, http.StatusBadRequest)

	rec, _ = do(t, r, http.MethodGet, "/api/v1/local/snapshot", "", nil)
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestIdentityRoutes(t *testing.T) {
	r := newTestRouter(t)
	alice := signUp(t, r, "alice@example.com", "Alice")

	rec, env := do(t, r, http.MethodGet, "/api/v1/identities", alice, nil)
	expectStatus(t, rec, http.StatusOK)
	var accounts []model.LinkedAccount
	decodeData(t, env, &accounts)
	if len(accounts) != 0 {
		t.Fatalf("accounts = %v, want none", accounts)
	}

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"authorize unconfigured provider", http.MethodGet, "/api/v1/auth/oauth2/google/authorize", "", http.StatusBadRequest},
		{"callback without code", http.MethodGet, "/api/v1/auth/oauth2/google/callback?state=abc", "", http.StatusBadRequest},
		{"callback denied", http.MethodGet, "/api/v1/auth/oauth2/google/callback?error=access_denied", "", http.StatusBadRequest},
		{"callback unknown state", http.MethodGet, "/api/v1/auth/oauth2/google/callback?code=c&state=abc", "", http.StatusBadRequest},
		{"link unconfigured provider", http.MethodPost, "/api/v1/identities/oauth2/github/link", alice, http.StatusBadRequest},
		{"link without token", http.MethodPost, "/api/v1/identities/oauth2/github/link", "", http.StatusUnauthorized},
		{"unlink unknown account", http.MethodDelete, "/api/v1/identities/nope", alice, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := do(t, r, tt.method, tt.path, tt.token, nil)
			expectStatus(t, rec, tt.want)
		})
	}
}

func TestLocalImageUploadsServeAsImages(t *testing.T) {
	r := newTestRouter(t)
	token := signUp(t, r, "alice@example.com", "Alice")

	rec, env := do(t, r, http.MethodGet, "/api/v1/local/snapshot", token, nil)
	expectStatus(t, rec, http.StatusOK)
	var snap model.Snapshot
	decodeData(t, env, &snap)
	fields := map[string]string{"name": "Hat", "categoryId": snap.Categories[0].ID}

	body, contentType := multipartItem(t, fields, []byte("<html><script>alert(1)</script></html>"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/local/items", body)
	req.Header.Set("Content-Type", contentType)
	rec, _ = serve(t, r, req, token)
	expectStatus(t, rec, http.StatusBadRequest)

	body, contentType = multipartItem(t, fields, pngBody(t, 4, 4))
	req = httptest.NewRequest(http.MethodPost, "/api/v1/local/items", body)
	req.Header.Set("Content-Type", contentType)
	rec, env = serve(t, r, req, token)
	expectStatus(t, rec, http.StatusCreated)
	var item model.InventoryItem
	decodeData(t, env, &item)
	if item.ImageURL == nil || !strings.HasSuffix(*item.ImageURL, ".png") {
		t.Fatalf("local item image = %v", item.ImageURL)
	}

	rec, _ = do(t, r, http.MethodGet, *item.ImageURL, "", nil)
	expectStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}

	rec, _ = do(t, r, http.MethodGet, "/local-images/img_x.html", "", nil)
	expectStatus(t, rec, http.StatusNotFound)
}
