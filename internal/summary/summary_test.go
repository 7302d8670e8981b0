package summary

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/rewrite-sync/internal/cache"
	"github.com/stacklok/rewrite-sync/internal/merge"
	"github.com/stacklok/rewrite-sync/internal/registry"
)

var fixedTime = time.Date(2024, time.March, 5, 8, 9, 10, 0, time.UTC)

func TestRender(t *testing.T) {
	t.Parallel()

	reg := registry.MustNew(
		registry.SourceDescriptor{Name: "adultraplus", URL: "https://whatshub.top/rewrite/adultraplus.conf", Class: registry.ClassCacheable},
		registry.SourceDescriptor{Name: "upstream", URL: "https://raw.githubusercontent.com/x/y/main/a&b.sgmodule", Class: registry.ClassDirect},
		registry.SourceDescriptor{Name: "youtube", URL: "https://whatshub.top/rewrite/youtube.conf", Class: registry.ClassCacheable},
	)

	out, err := Render(reg, "广告拦截重写规则合集", fixedTime)
	require.NoError(t, err)

	expected := `# 广告拦截重写规则合集

## 更新时间
2024-03-05 08:09:10

## 规则说明
本重写规则集合并自各个开源规则，保持原始格式不变。

## 规则来源
### 网站规则
- adultraplus: https://whatshub.top/rewrite/adultraplus.conf
- youtube: https://whatshub.top/rewrite/youtube.conf

### GitHub规则
- upstream: https://raw.githubusercontent.com/x/y/main/a&b.sgmodule
`
	assert.Equal(t, expected, string(out))
}

func TestRender_EmptyClass(t *testing.T) {
	t.Parallel()

	reg := registry.MustNew(
		registry.SourceDescriptor{Name: "youtube", URL: "https://whatshub.top/rewrite/youtube.conf", Class: registry.ClassCacheable},
	)

	out, err := Render(reg, "Rules", fixedTime)
	require.NoError(t, err)
	assert.Contains(t, string(out), "### 网站规则\n- youtube: https://whatshub.top/rewrite/youtube.conf\n\n### GitHub规则\n\n")
}

func TestRender_DefaultSources(t *testing.T) {
	t.Parallel()

	out, err := Render(registry.Default(), "广告拦截重写规则合集", fixedTime)
	require.NoError(t, err)

	for _, src := range registry.DefaultSources {
		assert.Contains(t, string(out), "- "+src.Name+": "+src.URL+"\n")
	}
}

func TestRender_NilRegistry(t *testing.T) {
	t.Parallel()

	_, err := Render(nil, "x", fixedTime)
	require.Error(t, err)
}

func TestRender_TimestampMatchesMergedHeader(t *testing.T) {
	t.Parallel()

	reg := registry.MustNew(
		registry.SourceDescriptor{Name: "youtube", URL: "https://whatshub.top/rewrite/youtube.conf", Class: registry.ClassCacheable},
	)
	doc, err := merge.NewMerger(merge.Labels{Title: "Rules", Updated: "Updated: ", Sources: "Sources:"}).
		Merge(context.Background(), reg, cache.NewFileStore(t.TempDir()), nil, fixedTime)
	require.NoError(t, err)

	out, err := Render(reg, "Rules", fixedTime)
	require.NoError(t, err)

	stamp := fixedTime.Format(merge.TimestampLayout)
	assert.Contains(t, string(doc.Content), "# Updated: "+stamp+"\n")
	assert.Contains(t, string(out), "## 更新时间\n"+stamp+"\n")
}
