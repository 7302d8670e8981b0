package merge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/rewrite-sync/internal/cache"
	cachemocks "github.com/stacklok/rewrite-sync/internal/cache/mocks"
	"github.com/stacklok/rewrite-sync/internal/registry"
	"github.com/stacklok/rewrite-sync/internal/sources"
)

var testLabels = Labels{
	Title:   "广告拦截重写规则合集",
	Updated: "更新时间：",
	Sources: "合并自以下源：",
}

var fixedTime = time.Date(2024, time.March, 5, 8, 9, 10, 0, time.UTC)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New(
		registry.SourceDescriptor{Name: "adultraplus", URL: "https://whatshub.top/rewrite/adultraplus.conf", Class: registry.ClassCacheable},
		registry.SourceDescriptor{Name: "upstream", URL: "https://raw.githubusercontent.com/x/y/main/up.sgmodule", Class: registry.ClassDirect},
		registry.SourceDescriptor{Name: "wechatad", URL: "https://whatshub.top/rewrite/wechatad.conf", Class: registry.ClassCacheable},
		registry.SourceDescriptor{Name: "extra", URL: "https://raw.githubusercontent.com/x/y/main/extra.sgmodule", Class: registry.ClassDirect},
		registry.SourceDescriptor{Name: "youtube", URL: "https://whatshub.top/rewrite/youtube.conf", Class: registry.ClassCacheable},
	)
	require.NoError(t, err)
	return reg
}

func seedStore(t *testing.T, entries map[string]string) cache.Store {
	t.Helper()
	store := cache.NewFileStore(t.TempDir())
	for name, content := range entries {
		require.NoError(t, store.Store(context.Background(), name, []byte(content)))
	}
	return store
}

func ok(t *testing.T, reg *registry.Registry, name, content string) sources.FetchResult {
	t.Helper()
	src, err := reg.Lookup(name)
	require.NoError(t, err)
	return sources.FetchResult{Source: src, Content: []byte(content)}
}

func failed(t *testing.T, reg *registry.Registry, name string, status int) sources.FetchResult {
	t.Helper()
	src, err := reg.Lookup(name)
	require.NoError(t, err)
	return sources.FetchResult{
		Source: src,
		Err:    &sources.FetchError{Source: name, Cause: sources.CauseHTTPStatus, StatusCode: status},
	}
}

func TestMerge_Layout(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t)
	store := seedStore(t, map[string]string{
		"adultraplus": "[Rewrite]\n^https://ads\\.example\\.com reject\n",
		"youtube":     "[Script]\nyoutube = type=http-response",
	})
	direct := []sources.FetchResult{
		ok(t, reg, "upstream", "#!name=up\n[Rule]\nDOMAIN,ad.example,REJECT\n"),
		ok(t, reg, "extra", "[MITM]\nhostname = %APPEND% ads.example"),
	}

	doc, err := NewMerger(testLabels).Merge(context.Background(), reg, store, direct, fixedTime)
	require.NoError(t, err)

	expected := "# 广告拦截重写规则合集\n" +
		"# 更新时间：2024-03-05 08:09:10\n" +
		"# 合并自以下源：\n" +
		"# adultraplus: https://whatshub.top/rewrite/adultraplus.conf\n" +
		"# wechatad: https://whatshub.top/rewrite/wechatad.conf\n" +
		"# youtube: https://whatshub.top/rewrite/youtube.conf\n" +
		"# upstream: https://raw.githubusercontent.com/x/y/main/up.sgmodule\n" +
		"# extra: https://raw.githubusercontent.com/x/y/main/extra.sgmodule\n" +
		"\n# ======== adultraplus ========\n" +
		"[Rewrite]\n^https://ads\\.example\\.com reject\n" +
		"\n# ======== youtube ========\n" +
		"[Script]\nyoutube = type=http-response\n" +
		"\n# ======== upstream ========\n" +
		"#!name=up\n[Rule]\nDOMAIN,ad.example,REJECT\n" +
		"\n# ======== extra ========\n" +
		"[MITM]\nhostname = %APPEND% ads.example\n"

	assert.Equal(t, expected, string(doc.Content))
	assert.Equal(t, fixedTime, doc.GeneratedAt)
	assert.Equal(t, []string{"adultraplus", "youtube", "upstream", "extra"}, doc.SectionNames())
	assert.Equal(t, []Section{
		{Name: "adultraplus", Origin: OriginCache, Bytes: 44},
		{Name: "youtube", Origin: OriginCache, Bytes: 37},
		{Name: "upstream", Origin: OriginFetch, Bytes: 42},
		{Name: "extra", Origin: OriginFetch, Bytes: 38},
	}, doc.Sections)
}

func TestMerge_Deterministic(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t)
	store := seedStore(t, map[string]string{"wechatad": "a\n", "youtube": "b\n"})
	direct := []sources.FetchResult{ok(t, reg, "upstream", "c\n"), ok(t, reg, "extra", "d\n")}

	merger := NewMerger(testLabels)
	first, err := merger.Merge(context.Background(), reg, store, direct, fixedTime)
	require.NoError(t, err)
	second, err := merger.Merge(context.Background(), reg, store, direct, fixedTime)
	require.NoError(t, err)
	assert.Equal(t, first.Content, second.Content)

	later, err := merger.Merge(context.Background(), reg, store, direct, fixedTime.Add(time.Hour))
	require.NoError(t, err)
	assert.NotEqual(t, first.Content, later.Content, "only the timestamp line differs")
	assert.Equal(t, len(first.Content), len(later.Content))
}

func TestMerge_DirectResultOrderIrrelevant(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t)
	store := seedStore(t, nil)

	inOrder := []sources.FetchResult{ok(t, reg, "upstream", "u\n"), ok(t, reg, "extra", "e\n")}
	reversed := []sources.FetchResult{inOrder[1], inOrder[0]}

	merger := NewMerger(testLabels)
	a, err := merger.Merge(context.Background(), reg, store, inOrder, fixedTime)
	require.NoError(t, err)
	b, err := merger.Merge(context.Background(), reg, store, reversed, fixedTime)
	require.NoError(t, err)

	assert.Equal(t, a.Content, b.Content)
	assert.Equal(t, []string{"upstream", "extra"}, b.SectionNames())
}

func TestMerge_OmitsFailedAndMissing(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t)
	// wechatad has no cache entry; upstream failed; extra has no result at all
	store := seedStore(t, map[string]string{"adultraplus": "a\n", "youtube": "y\n"})
	direct := []sources.FetchResult{failed(t, reg, "upstream", 500)}

	doc, err := NewMerger(testLabels).Merge(context.Background(), reg, store, direct, fixedTime)
	require.NoError(t, err)

	content := string(doc.Content)
	assert.NotContains(t, content, "======== wechatad ========")
	assert.NotContains(t, content, "======== upstream ========")
	assert.NotContains(t, content, "======== extra ========")
	assert.Contains(t, content, "\n# ======== adultraplus ========\na\n")
	assert.Contains(t, content, "\n# ======== youtube ========\ny\n")
	// The header still lists every configured source
	assert.Contains(t, content, "# wechatad: https://whatshub.top/rewrite/wechatad.conf\n")
	assert.Contains(t, content, "# upstream: https://raw.githubusercontent.com/x/y/main/up.sgmodule\n")
	assert.Equal(t, []string{"adultraplus", "youtube"}, doc.SectionNames())
}

func TestMerge_CachedResultsAreNotTakenFromFetch(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t)
	store := seedStore(t, map[string]string{"youtube": "from cache\n"})
	// A fetch result for a cacheable source is ignored by the merge: cacheable
	// content only ever comes from the cache.
	direct := []sources.FetchResult{ok(t, reg, "youtube", "from fetch\n")}

	doc, err := NewMerger(testLabels).Merge(context.Background(), reg, store, direct, fixedTime)
	require.NoError(t, err)
	assert.Contains(t, string(doc.Content), "from cache\n")
	assert.NotContains(t, string(doc.Content), "from fetch")
}

func TestMerge_NewlineNormalization(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{name: "adds missing newline", content: "rule", expected: "rule\n"},
		{name: "keeps single newline", content: "rule\n", expected: "rule\n"},
		{name: "keeps existing blank lines", content: "rule\n\n", expected: "rule\n\n"},
		{name: "empty content", content: "", expected: "\n"},
		{name: "crlf content", content: "rule\r\n", expected: "rule\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reg := registry.MustNew(registry.SourceDescriptor{
				Name: "only", URL: "https://example.com/only.conf", Class: registry.ClassDirect,
			})
			src, err := reg.Lookup("only")
			require.NoError(t, err)

			doc, err := NewMerger(testLabels).Merge(context.Background(), reg, seedStore(t, nil),
				[]sources.FetchResult{{Source: src, Content: []byte(tt.content)}}, fixedTime)
			require.NoError(t, err)

			assert.Contains(t, string(doc.Content), "\n# ======== only ========\n"+tt.expected)
			suffix := "\n# ======== only ========\n" + tt.expected
			assert.Equal(t, suffix, string(doc.Content[len(doc.Content)-len(suffix):]))
		})
	}
}

func TestMerge_CacheReadErrorSkipsSection(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := cachemocks.NewMockStore(ctrl)

	reg := testRegistry(t)
	store.EXPECT().Load(gomock.Any(), "adultraplus").Return([]byte("a\n"), true, nil)
	store.EXPECT().Load(gomock.Any(), "wechatad").Return(nil, false, errors.New("permission denied"))
	store.EXPECT().Load(gomock.Any(), "youtube").Return(nil, false, nil)

	doc, err := NewMerger(testLabels).Merge(context.Background(), reg, store, nil, fixedTime)
	require.NoError(t, err)
	assert.Equal(t, []string{"adultraplus"}, doc.SectionNames())
}

func TestMerge_RequiresInputs(t *testing.T) {
	t.Parallel()

	merger := NewMerger(testLabels)

	_, err := merger.Merge(context.Background(), nil, seedStore(t, nil), nil, fixedTime)
	require.Error(t, err)

	_, err = merger.Merge(context.Background(), testRegistry(t), nil, nil, fixedTime)
	require.Error(t, err)
}
