package page

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var ErrElementNotFound = errors.New("element not found")

const (
	MessageID         = "gift-reconciler-message"
	ValidationClass   = "gift-validation-message"
	ValidationText    = "Add at least one product to your cart to check out with your free gift."
	checkoutSelectors = `button[name=checkout], input[name=checkout], #checkout, .cart__checkout-button, [data-checkout-button]`
)

var (
	checkoutSel   = mustParseGroup(checkoutSelectors)
	validationSel = mustParseGroup("." + ValidationClass)
)

func mustParseGroup(s string) cascadia.SelectorGroup {
	g, err := cascadia.ParseGroup(s)
	if err != nil {
		panic(fmt.Sprintf("page: bad selector %q: %v", s, err))
	}
	return g
}

// Document はメモリ上のページ。ブラウザのDOMの代わりに使う。
type Document struct {
	mu   sync.Mutex
	root *html.Node
}

// Parse はページ全体のHTMLを読む。
func Parse(src string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return &Document{root: root}, nil
}

// Blank はカート関連の要素だけを持つ最小ページ。
func Blank() *Document {
	d, err := Parse(`<!doctype html><html><head></head><body>` +
		`<div id="mini-cart"><div class="shopify-section"></div></div>` +
		`<div id="cart-icon-bubble"><div class="shopify-section"></div></div>` +
		`<div id="mobile-cart-icon-bubble"><div class="shopify-section"></div></div>` +
		`<div id="main-cart-items"><div class="js-contents"></div></div>` +
		`<div id="main-cart-footer"><div class="js-contents"></div></div>` +
		`<button type="submit" name="checkout" class="cart__checkout-button">Check out</button>` +
		`</body></html>`)
	if err != nil {
		panic(err)
	}
	return d
}

// Splice は id 要素内の selector 部分を、fragment 内の同じ selector 部分の中身で置き換える。
// 要素内に selector が無ければ id 要素自体、fragment に無ければ fragment 全体を使う。
func (d *Document) Splice(id, selector, fragment string) error {
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return fmt.Errorf("selector %q: %w", selector, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	host := findFirst(d.root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && attr(n, "id") == id
	})
	if host == nil {
		return fmt.Errorf("%w: #%s", ErrElementNotFound, id)
	}
	target := findFirst(host, func(n *html.Node) bool { return n != host && sel.Match(n) })
	if target == nil {
		target = host
	}

	ctxNode := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), ctxNode)
	if err != nil {
		return fmt.Errorf("parse fragment: %w", err)
	}

	wrapper := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	for _, n := range nodes {
		wrapper.AppendChild(n)
	}
	source := findFirst(wrapper, func(n *html.Node) bool { return n != wrapper && sel.Match(n) })
	if source == nil {
		source = wrapper
	}

	removeChildren(target)
	moveChildren(source, target)
	return nil
}

// SetCheckoutDisabled はチェックアウトボタンの disabled を切り替える。
func (d *Document) SetCheckoutDisabled(disabled bool) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	found := findAll(d.root, checkoutSel.Match)
	for _, n := range found {
		if disabled {
			setAttr(n, "disabled", "disabled")
		} else {
			removeAttr(n, "disabled")
		}
	}
	return len(found)
}

// SetValidationVisible は .gift-validation-message の表示を切り替える。
// 無ければ最初のチェックアウトボタンの後ろに作る。
func (d *Document) SetValidationVisible(visible bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	msgs := findAll(d.root, validationSel.Match)
	if len(msgs) == 0 {
		if !visible {
			return
		}
		msg := newElement("p", map[string]string{"class": ValidationClass, "role": "alert"}, ValidationText)
		if btn := findFirst(d.root, checkoutSel.Match); btn != nil && btn.Parent != nil {
			btn.Parent.InsertBefore(msg, btn.NextSibling)
		} else {
			d.bodyLocked().AppendChild(msg)
		}
		msgs = []*html.Node{msg}
	}

	for _, n := range msgs {
		if visible {
			removeAttr(n, "hidden")
		} else {
			setAttr(n, "hidden", "hidden")
		}
	}
}

// ShowMessage は #gift-reconciler-message に kind（success / error）付きで表示する。
func (d *Document) ShowMessage(kind, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := d.messageLocked()
	setAttr(n, "class", "gift-reconciler-message gift-reconciler-message--"+kind)
	setAttr(n, "data-kind", kind)
	removeAttr(n, "hidden")
	removeChildren(n)
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

func (d *Document) HideMessage() {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := findByID(d.root, MessageID)
	if n == nil {
		return
	}
	setAttr(n, "hidden", "hidden")
}

// Text は selector に最初に一致した要素のテキスト。
func (d *Document) Text(selector string) (string, bool) {
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return "", false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n := findFirst(d.root, sel.Match)
	if n == nil {
		return "", false
	}
	var b strings.Builder
	collectText(n, &b)
	return strings.TrimSpace(b.String()), true
}

// Attr は selector に最初に一致した要素の属性。
func (d *Document) Attr(selector, name string) (string, bool) {
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return "", false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n := findFirst(d.root, sel.Match)
	if n == nil {
		return "", false
	}
	return lookupAttr(n, name)
}

// CheckoutDisabled は最初のチェックアウトボタンが disabled か。
func (d *Document) CheckoutDisabled() bool {
	_, ok := d.Attr(checkoutSelectors, "disabled")
	return ok
}

func (d *Document) HTML() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var buf bytes.Buffer
	_ = html.Render(&buf, d.root)
	return buf.String()
}

func (d *Document) messageLocked() *html.Node {
	if n := findByID(d.root, MessageID); n != nil {
		return n
	}
	n := newElement("div", map[string]string{"id": MessageID, "role": "status"}, "")
	body := d.bodyLocked()
	body.InsertBefore(n, body.FirstChild)
	return n
}

func (d *Document) bodyLocked() *html.Node {
	if b := findFirst(d.root, func(n *html.Node) bool { return n.Type == html.ElementNode && n.DataAtom == atom.Body }); b != nil {
		return b
	}
	return d.root
}

// ---- node helpers ----

func findFirst(n *html.Node, pred func(*html.Node) bool) *html.Node {
	if pred(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, pred); found != nil {
			return found
		}
	}
	return nil
}

func findAll(n *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if pred(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func findByID(root *html.Node, id string) *html.Node {
	return findFirst(root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && attr(n, "id") == id
	})
}

func removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

func moveChildren(from, to *html.Node) {
	for c := from.FirstChild; c != nil; {
		next := c.NextSibling
		from.RemoveChild(c)
		to.AppendChild(c)
		c = next
	}
}

func newElement(tag string, attrs map[string]string, text string) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	for _, k := range []string{"id", "class", "role"} {
		if v, ok := attrs[k]; ok {
			n.Attr = append(n.Attr, html.Attribute{Key: k, Val: v})
		}
	}
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	return n
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

func attr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}
