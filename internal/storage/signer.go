package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	ErrExpired      = errors.New("storage: url expired")
	ErrBadSignature = errors.New("storage: bad signature")
)

// HMACSigner は HMAC-SHA256 で署名した期限付き URL を発行する URLSigner 実装。
// メディア配信側は同じ鍵で Verify する。
type HMACSigner struct {
	baseURL string
	key     []byte
	ttl     time.Duration
	now     func() time.Time
}

// NewHMACSigner は HMACSigner を生成する。
func NewHMACSigner(baseURL string, key []byte, ttl time.Duration) *HMACSigner {
	return &HMACSigner{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		ttl:     ttl,
		now:     time.Now,
	}
}

var _ URLSigner = (*HMACSigner)(nil)

func (s *HMACSigner) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(key))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *HMACSigner) SignedURL(_ context.Context, key string) (string, time.Time, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", time.Time{}, errors.New("storage: empty key")
	}
	exp := s.now().Add(s.ttl).Truncate(time.Second)
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(exp.Unix(), 10))
	q.Set("sig", s.sign(key, exp.Unix()))
	return fmt.Sprintf("%s/%s?%s", s.baseURL, (&url.URL{Path: key}).EscapedPath(), q.Encode()), exp, nil
}

// Verify は SignedURL が発行したクエリを検証する。
func (s *HMACSigner) Verify(key, expires, sig string) error {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	if !hmac.Equal([]byte(s.sign(strings.TrimLeft(key, "/"), exp)), []byte(sig)) {
		return ErrBadSignature
	}
	if s.now().Unix() > exp {
		return ErrExpired
	}
	return nil
}
