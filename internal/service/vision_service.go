package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"kodomo/inventoryhub/internal/config"
	"kodomo/inventoryhub/internal/imaging"
	"kodomo/inventoryhub/internal/inventory"
	"kodomo/inventoryhub/internal/model"
	"kodomo/inventoryhub/internal/repository"
	"kodomo/inventoryhub/pkg/crypto"
)

const visionPrompt = `あなたは子供の衣類・育児グッズ・家庭用品の専門家です。
画像を見て、以下の情報をJSONで返してください。

{
  "name": "アイテム名（日本語）",
  "category": "%s のいずれか",
  "size": "サイズ（例: 90cm、100、M など。不明なら空文字）",
  "brand": "ブランド名（不明なら空文字）",
  "notes": "気づいたこと（状態、色、特徴など。不要なら空文字）"
}

JSONのみを返してください。説明文は不要です。`

var codeFence = regexp.MustCompile("```(?:json)?\\n?")

// ExtractedItem is a form prefill. CategoryID is empty when the suggested
// category matches none of the group's categories.
type ExtractedItem struct {
	Name       string `json:"name"`
	Category   string `json:"category"`
	CategoryID string `json:"categoryId"`
	Size       string `json:"size"`
	Brand      string `json:"brand"`
	Notes      string `json:"notes"`
}

type VisionService interface {
	ExtractItem(ctx context.Context, userID, groupID string, image *ImageUpload) (*ExtractedItem, error)
}

type visionService struct {
	store      repository.Store
	sealer     *crypto.Sealer
	httpClient *http.Client
	cfg        config.VisionConfig
	imageOpt   imaging.Options
	logger     *zap.Logger
}

func NewVisionService(
	store repository.Store,
	sealer *crypto.Sealer,
	httpClient *http.Client,
	cfg config.VisionConfig,
	imageOpt imaging.Options,
	logger *zap.Logger,
) VisionService {
	return &visionService{
		store:      store,
		sealer:     sealer,
		httpClient: httpClient,
		cfg:        cfg,
		imageOpt:   imageOpt,
		logger:     logger,
	}
}

func (s *visionService) ExtractItem(ctx context.Context, userID, groupID string, image *ImageUpload) (*ExtractedItem, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if user.VisionAPIKey == "" {
		return nil, ErrVisionKeyMissing
	}
	apiKey, err := s.sealer.Open(user.VisionAPIKey)
	if err != nil {
		s.logger.Warn("stored vision key cannot be opened", zap.String("user_id", userID), zap.Error(err))
		return nil, ErrVisionKeyMissing
	}

	g, _, err := memberGroup(ctx, s.store, userID, groupID)
	if err != nil {
		return nil, err
	}

	body, closeFn, err := openUpload(image)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	jpegData, err := imaging.Fit(body, s.imageOpt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	categories := inventory.SortCategories(g.Categories)
	content, err := s.complete(ctx, apiKey, buildVisionRequest(s.cfg, categories, jpegData))
	if err != nil {
		return nil, err
	}

	item, err := parseExtractedItem(content)
	if err != nil {
		s.logger.Warn("malformed vision reply", zap.String("user_id", userID), zap.Error(err))
		return nil, ErrVisionMalformedResponse
	}
	item.CategoryID = categoryIDByName(categories, item.Category)
	return item, nil
}

func buildVisionRequest(cfg config.VisionConfig, categories []model.Category, jpegData []byte) openai.ChatCompletionRequest {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.Name
	}
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegData)
	return openai.ChatCompletionRequest{
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: openai.ImageURLDetailLow},
				},
				{
					Type: openai.ChatMessagePartTypeText,
					Text: fmt.Sprintf(visionPrompt, strings.Join(names, "|")),
				},
			},
		}},
	}
}

// client is built per call because every user brings their own API key.
func (s *visionService) client(apiKey string) *openai.Client {
	cc := openai.DefaultConfig(apiKey)
	if s.cfg.BaseURL != "" {
		cc.BaseURL = strings.TrimRight(s.cfg.BaseURL, "/")
	}
	if s.httpClient != nil {
		cc.HTTPClient = s.httpClient
	}
	return openai.NewClientWithConfig(cc)
}

func (s *visionService) complete(ctx context.Context, apiKey string, req openai.ChatCompletionRequest) (string, error) {
	resp, err := s.client(apiKey).CreateChatCompletion(ctx, req)
	if err != nil {
		return "", visionError(err)
	}
	if len(resp.Choices) == 0 {
		return "{}", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// visionError keeps the provider's own message when there is one.
func visionError(err error) error {
	var (
		apiErr    *openai.APIError
		reqErr    *openai.RequestError
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &apiErr):
		return &VisionAPIError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	case errors.As(err, &reqErr):
		return &VisionAPIError{StatusCode: reqErr.HTTPStatusCode, Message: http.StatusText(reqErr.HTTPStatusCode)}
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return fmt.Errorf("%w: %v", ErrVisionMalformedResponse, err)
	}
	return fmt.Errorf("vision: sending request: %w", err)
}

func parseExtractedItem(content string) (*ExtractedItem, error) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(codeFence.ReplaceAllString(content, ""), "```", ""))
	var item ExtractedItem
	if err := json.Unmarshal([]byte(cleaned), &item); err != nil {
		return nil, err
	}
	item.CategoryID = ""
	return &item, nil
}

func categoryIDByName(categories []model.Category, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	for _, c := range categories {
		if c.Name == name {
			return c.ID
		}
	}
	return ""
}

var _ VisionService = (*visionService)(nil)
