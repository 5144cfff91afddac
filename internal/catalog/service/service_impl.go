package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	catalogdomain "github.com/smallbiznis/giftpact/internal/catalog/domain"
	"github.com/smallbiznis/giftpact/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	productCacheTTL   = 10 * time.Minute
	tokenExpirySlack  = time.Minute
	acceptGiftcardsV1 = "application/com.reloadly.giftcards-v1+json"
)

type Params struct {
	fx.In

	Cfg   config.Config
	Log   *zap.Logger
	Redis *redis.Client `optional:"true"`
}

type Service struct {
	baseURL      string
	authURL      string
	clientID     string
	clientSecret string
	log          *zap.Logger
	redis        *redis.Client
	httpClient   *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewService(p Params) catalogdomain.Service {
	return &Service{
		baseURL:      strings.TrimRight(p.Cfg.CatalogBaseURL, "/"),
		authURL:      p.Cfg.CatalogAuthURL,
		clientID:     p.Cfg.CatalogClientID,
		clientSecret: p.Cfg.CatalogClientSecret,
		log:          p.Log.Named("catalog.service"),
		redis:        p.Redis,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
	}
}

// productPayload mirrors the provider wire format, with money in decimal dollars.
type productPayload struct {
	ProductID                   int64     `json:"productId"`
	ProductName                 string    `json:"productName"`
	FixedRecipientDenominations []float64 `json:"fixedRecipientDenominations"`
	FixedSenderDenominations    []float64 `json:"fixedSenderDenominations"`
	RecipientCurrencyCode       string    `json:"recipientCurrencyCode"`
	LogoUrls                    []string  `json:"logoUrls"`
	Brand                       struct {
		BrandName string `json:"brandName"`
	} `json:"brand"`
}

type orderPayload struct {
	TransactionID int64  `json:"transactionId"`
	Status        string `json:"status"`
	Product       struct {
		ProductID int64 `json:"productId"`
	} `json:"product"`
	Code string `json:"code"`
}

type tokenPayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (s *Service) GetProductByID(ctx context.Context, productID int64) (*catalogdomain.Product, error) {
	if productID <= 0 {
		return nil, catalogdomain.ErrProductNotFound
	}

	cacheKey := fmt.Sprintf("catalog:product:%d", productID)
	if cached := s.cachedProduct(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	token, err := s.accessTokenValue(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/products/%d", s.baseURL, productID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", acceptGiftcardsV1)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, catalogdomain.ErrProviderUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, catalogdomain.ErrProductNotFound
	}
	if resp.StatusCode != http.StatusOK {
		s.log.Warn("catalog product lookup failed", zap.Int64("product_id", productID), zap.Int("status", resp.StatusCode))
		return nil, catalogdomain.ErrProviderUnavailable
	}

	var payload productPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, catalogdomain.ErrProviderUnavailable
	}

	product := payload.toDomain()
	s.cacheProduct(ctx, cacheKey, product)
	return product, nil
}

func (s *Service) PlaceOrder(ctx context.Context, req catalogdomain.OrderRequest) (*catalogdomain.Order, error) {
	token, err := s.accessTokenValue(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]any{
		"productId":        req.ProductID,
		"quantity":         req.Quantity,
		"unitPrice":        dollars(req.UnitPrice),
		"recipientEmail":   req.RecipientEmail,
		"customIdentifier": req.CustomIdentifier,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", acceptGiftcardsV1)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, catalogdomain.ErrProviderUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		s.log.Warn("issuance order rejected",
			zap.Int64("product_id", req.ProductID),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", raw),
		)
		return nil, catalogdomain.ErrOrderRejected
	}

	var payload orderPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, catalogdomain.ErrProviderUnavailable
	}

	return &catalogdomain.Order{
		TransactionID: payload.TransactionID,
		Status:        payload.Status,
		Code:          payload.Code,
	}, nil
}

func (s *Service) accessTokenValue(ctx context.Context) (string, error) {
	if s.clientID == "" || s.clientSecret == "" {
		return "", catalogdomain.ErrNotConfigured
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken != "" && time.Now().Before(s.tokenExpiry) {
		return s.accessToken, nil
	}

	body, err := json.Marshal(map[string]string{
		"client_id":     s.clientID,
		"client_secret": s.clientSecret,
		"grant_type":    "client_credentials",
		"audience":      s.baseURL,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.authURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", catalogdomain.ErrProviderUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.log.Warn("catalog auth failed", zap.Int("status", resp.StatusCode))
		return "", catalogdomain.ErrProviderUnavailable
	}

	var payload tokenPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", catalogdomain.ErrProviderUnavailable
	}

	s.accessToken = payload.AccessToken
	s.tokenExpiry = time.Now().Add(time.Duration(payload.ExpiresIn)*time.Second - tokenExpirySlack)
	return s.accessToken, nil
}

func (s *Service) cachedProduct(ctx context.Context, key string) *catalogdomain.Product {
	if s.redis == nil {
		return nil
	}
	raw, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil
	}
	var product catalogdomain.Product
	if err := json.Unmarshal(raw, &product); err != nil {
		return nil
	}
	return &product
}

func (s *Service) cacheProduct(ctx context.Context, key string, product *catalogdomain.Product) {
	if s.redis == nil || product == nil {
		return
	}
	raw, err := json.Marshal(product)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, raw, productCacheTTL).Err(); err != nil {
		s.log.Warn("product cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (p productPayload) toDomain() *catalogdomain.Product {
	return &catalogdomain.Product{
		ProductID:                   p.ProductID,
		ProductName:                 p.ProductName,
		BrandName:                   p.Brand.BrandName,
		RecipientCurrencyCode:       p.RecipientCurrencyCode,
		FixedRecipientDenominations: toCents(p.FixedRecipientDenominations),
		FixedSenderDenominations:    toCents(p.FixedSenderDenominations),
		LogoURLs:                    p.LogoUrls,
	}
}

func toCents(values []float64) []int64 {
	out := make([]int64, 0, len(values))
	for _, v := range values {
		out = append(out, int64(math.Round(v*100)))
	}
	return out
}

func dollars(cents int64) float64 {
	return float64(cents) / 100
}
