package usecase

import (
	"bytes"
	"context"
	"html/template"
	"net/http"
	"strings"
)

// ?sections= で返せるセクションID
const (
	SectionMiniCart             = "mini-cart"
	SectionCartIconBubble       = "cart-icon-bubble"
	SectionMobileCartIconBubble = "mobile-cart-icon-bubble"
	SectionMainCartItems        = "main-cart-items"
	SectionMainCartFooter       = "main-cart-footer"
)

var knownSections = map[string]bool{
	SectionMiniCart:             true,
	SectionCartIconBubble:       true,
	SectionMobileCartIconBubble: true,
	SectionMainCartItems:        true,
	SectionMainCartFooter:       true,
}

// 1リクエストで描画できる上限（Shopifyと同じ5件）
const maxSections = 5

// Shopifyと同じく <div id="shopify-section-ID" class="shopify-section"> で包む
var sectionTemplates = template.Must(template.New("sections").Parse(`
{{define "mini-cart"}}<div id="shopify-section-mini-cart" class="shopify-section"><div class="drawer__inner">{{if .Items}}<ul class="drawer__contents">{{range .Items}}<li class="cart-item" data-key="{{.Key}}" data-variant-id="{{.VariantID}}"><span class="cart-item__name">{{.Title}}</span> <span class="cart-item__quantity">{{.Quantity}}</span> <span class="cart-item__price">{{.LinePrice}}</span></li>{{end}}</ul>{{else}}<p class="drawer__empty-text">Your cart is empty</p>{{end}}</div></div>{{end}}
{{define "cart-icon-bubble"}}<div id="shopify-section-cart-icon-bubble" class="shopify-section"><div class="cart-count-bubble"><span aria-hidden="true">{{.ItemCount}}</span></div></div>{{end}}
{{define "mobile-cart-icon-bubble"}}<div id="shopify-section-mobile-cart-icon-bubble" class="shopify-section"><div class="cart-count-bubble"><span aria-hidden="true">{{.ItemCount}}</span></div></div>{{end}}
{{define "main-cart-items"}}<div id="shopify-section-main-cart-items" class="shopify-section"><div class="js-contents"><table class="cart-items"><tbody>{{range .Items}}<tr class="cart-item" data-key="{{.Key}}" data-variant-id="{{.VariantID}}"><td>{{.Title}}</td><td>{{.Quantity}}</td><td>{{.LinePrice}}</td></tr>{{end}}</tbody></table></div></div>{{end}}
{{define "main-cart-footer"}}<div id="shopify-section-main-cart-footer" class="shopify-section"><div class="js-contents"><div class="totals"><p class="totals__total-value">{{.TotalPrice}}</p></div></div></div>{{end}}
`))

type SectionUsecase struct {
	cart *CartUsecase
}

// DI
func NewSectionUsecase(cart *CartUsecase) *SectionUsecase {
	return &SectionUsecase{cart: cart}
}

// Render は指定セクションのHTMLを返す。不明なIDは nil（JSONでnull）。
func (u *SectionUsecase) Render(ctx context.Context, token string, ids []string) (map[string]*string, error) {
	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			clean = append(clean, id)
		}
	}
	if len(clean) == 0 {
		return nil, NewHTTPError(http.StatusBadRequest, "sections is required")
	}
	if len(clean) > maxSections {
		clean = clean[:maxSections]
	}

	cart, err := u.cart.GetCart(ctx, token)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*string, len(clean))
	for _, id := range clean {
		if !knownSections[id] {
			out[id] = nil
			continue
		}

		var buf bytes.Buffer
		if err := sectionTemplates.ExecuteTemplate(&buf, id, cart); err != nil {
			return nil, NewHTTPError(http.StatusInternalServerError, "render error")
		}
		html := buf.String()
		out[id] = &html
	}
	return out, nil
}
