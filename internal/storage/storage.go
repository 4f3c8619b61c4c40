package storage

import (
	"context"
	"time"
)

// URLSigner は動画ファイルへの期限付き URL を発行するインターフェース。
// バイト列そのものは外部のオブジェクトストレージにあり、ここでは扱わない。
type URLSigner interface {
	// SignedURL は key に対する署名付き URL と有効期限を返す。
	SignedURL(ctx context.Context, key string) (url string, expiresAt time.Time, err error)
}
