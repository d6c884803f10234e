package gift

import (
	"net/url"
	"sort"
	"strings"
)

// PageContext はページ読み込み時に分かる情報。
type PageContext struct {
	Path        string            `json:"path"`
	Query       map[string]string `json:"query"`
	Referrer    string            `json:"referrer"`
	Cookies     map[string]string `json:"cookies"`
	AppliedCode string            `json:"applied_code"` // サーバー側で適用済みのコード
}

var codeQueryKeys = []string{"discount", "code", "coupon"}

// DetectCode はページからトリガーコードを探す。
// 優先順: /discount/<code> → クエリ → リファラ → 適用済みコード → prefix を含むクッキー
func DetectCode(pc PageContext, prefix string) (string, bool) {
	if code, ok := codeFromPath(pc.Path); ok {
		return code, true
	}

	for _, k := range codeQueryKeys {
		if v := strings.TrimSpace(pc.Query[k]); v != "" {
			return v, true
		}
	}

	if ref, err := url.Parse(pc.Referrer); err == nil && pc.Referrer != "" {
		if code, ok := codeFromPath(ref.Path); ok {
			return code, true
		}
		q := ref.Query()
		for _, k := range codeQueryKeys {
			if v := strings.TrimSpace(q.Get(k)); v != "" {
				return v, true
			}
		}
	}

	if v := strings.TrimSpace(pc.AppliedCode); v != "" {
		return v, true
	}

	if prefix != "" {
		// map順に左右されないよう名前順に見る
		names := make([]string, 0, len(pc.Cookies))
		for name := range pc.Cookies {
			names = append(names, name)
		}
		sort.Strings(names)

		upper := strings.ToUpper(strings.TrimRight(prefix, "-_"))
		for _, name := range names {
			v, err := url.QueryUnescape(pc.Cookies[name])
			if err != nil {
				v = pc.Cookies[name]
			}
			v = strings.TrimSpace(v)
			if strings.Contains(strings.ToUpper(v), upper) {
				return v, true
			}
		}
	}

	return "", false
}

func codeFromPath(path string) (string, bool) {
	const marker = "/discount/"

	i := strings.Index(path, marker)
	if i < 0 {
		return "", false
	}
	rest := path[i+len(marker):]
	if j := strings.IndexAny(rest, "/?#"); j >= 0 {
		rest = rest[:j]
	}
	code, err := url.PathUnescape(rest)
	if err != nil {
		return "", false
	}
	code = strings.TrimSpace(code)
	return code, code != ""
}
