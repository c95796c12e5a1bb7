package services

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"oddsfeed-service/logger"
	"oddsfeed-service/models"
)

// TokenSource 获取新凭证的回调。生产环境由外部的登录自动化实现,
// 这里只约定契约: 返回带有效期的 bearer token,可反复调用。
type TokenSource func(ctx context.Context, current *models.Credential) (*models.Credential, error)

// CredentialProvider 凭证提供者。刷新操作全进程 single-flight:
// 并发的刷新请求合并为一次上游调用,所有调用方拿到同一个结果。
type CredentialProvider struct {
	source TokenSource

	mu         sync.RWMutex
	current    *models.Credential
	refreshing bool

	group singleflight.Group
}

// NewCredentialProvider 创建凭证提供者
func NewCredentialProvider(source TokenSource) *CredentialProvider {
	return &CredentialProvider{source: source}
}

// NewCredentialProviderWith 创建带初始凭证的提供者
func NewCredentialProviderWith(source TokenSource, initial *models.Credential) *CredentialProvider {
	return &CredentialProvider{source: source, current: initial}
}

// IsValid 当前凭证是否还有超过 5 分钟的剩余有效期
func (p *CredentialProvider) IsValid() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current.Valid()
}

// Current 返回当前凭证 (可能已过期),第二个返回值表示是否持有凭证
func (p *CredentialProvider) Current() (*models.Credential, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return nil, false
	}
	c := *p.current
	return &c, true
}

// RefreshIfNeeded 凭证仍有效时直接返回,否则触发一次刷新。
// 刷新中的并发调用会合流到同一次上游请求。
func (p *CredentialProvider) RefreshIfNeeded(ctx context.Context) (*models.Credential, error) {
	if cred, ok := p.Current(); ok && cred.Valid() {
		return cred, nil
	}
	return p.Refresh(ctx)
}

// Refresh 强制刷新 (如收到 401 时,凭证未到期也已失效)。
// 同样 single-flight: 已有刷新在途时加入等待而不是再发一次。
func (p *CredentialProvider) Refresh(ctx context.Context) (*models.Credential, error) {
	v, err, _ := p.group.Do("refresh", func() (interface{}, error) {
		p.mu.Lock()
		p.refreshing = true
		current := p.current
		p.mu.Unlock()

		defer func() {
			p.mu.Lock()
			p.refreshing = false
			p.mu.Unlock()
		}()

		cred, err := p.source(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("token refresh failed: %w", err)
		}

		p.mu.Lock()
		p.current = cred
		p.mu.Unlock()

		logger.Printf("[Credentials] 🔑 Token refreshed, expires at %s", cred.ExpiresAt.Format("15:04:05"))
		return cred, nil
	})
	if err != nil {
		return nil, err
	}
	cred := *(v.(*models.Credential))
	return &cred, nil
}

// AwaitOngoingRefresh 已有刷新在途时等待其结果,否则等价于 RefreshIfNeeded
func (p *CredentialProvider) AwaitOngoingRefresh(ctx context.Context) (*models.Credential, error) {
	p.mu.RLock()
	refreshing := p.refreshing
	p.mu.RUnlock()

	if refreshing {
		return p.Refresh(ctx)
	}
	return p.RefreshIfNeeded(ctx)
}
