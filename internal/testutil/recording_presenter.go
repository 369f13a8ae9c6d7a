//go:build !production

package testutil

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/palemoky/threadrook/internal/match"
)

// RecordingPresenter 记录所有展示调用，不使用 testify（用于只需检查输出的测试）。
// 设置 *Err 字段可让对应方法返回错误。
type RecordingPresenter struct {
	match.TextRenderer

	CreateErr   error
	AnnounceErr error
	UpdateErr   error
	TeardownErr error

	mu            sync.Mutex
	surface       *match.Surface
	announcements []string
	panels        map[match.Panel]string
	updates       int
	tornDown      bool
}

// NewRecordingPresenter 创建记录用展示层
func NewRecordingPresenter() *RecordingPresenter {
	return &RecordingPresenter{panels: make(map[match.Panel]string)}
}

func (p *RecordingPresenter) CreateSurface(_ context.Context, s match.Surface) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CreateErr != nil {
		return p.CreateErr
	}
	p.surface = &s
	return nil
}

func (p *RecordingPresenter) Announce(_ context.Context, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.AnnounceErr != nil {
		return p.AnnounceErr
	}
	p.announcements = append(p.announcements, text)
	return nil
}

func (p *RecordingPresenter) Update(_ context.Context, panel match.Panel, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.UpdateErr != nil {
		return p.UpdateErr
	}
	p.panels[panel] = text
	p.updates++
	return nil
}

func (p *RecordingPresenter) TeardownSurface(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.TeardownErr != nil {
		return p.TeardownErr
	}
	p.tornDown = true
	return nil
}

// Surface 返回创建的展示区，未创建时为 nil
func (p *RecordingPresenter) Surface() *match.Surface {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.surface
}

// Announcements 返回公告副本
func (p *RecordingPresenter) Announcements() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.announcements)
}

// Announced 是否有公告包含 substr
func (p *RecordingPresenter) Announced(substr string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.ContainsFunc(p.announcements, func(a string) bool {
		return strings.Contains(a, substr)
	})
}

// Panel 返回面板当前内容
func (p *RecordingPresenter) Panel(panel match.Panel) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.panels[panel]
}

// Updates 面板更新次数
func (p *RecordingPresenter) Updates() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.updates
}

// TornDown 展示区是否已拆除
func (p *RecordingPresenter) TornDown() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tornDown
}
