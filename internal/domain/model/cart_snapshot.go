package model

// LineItem は /cart.js の items の1行。
type LineItem struct {
	VariantID string
	Quantity  int64
	Key       string
	Title     string
	Price     int64
}

// CartSnapshot はその時点のカート内容。都度取得して使い捨てる。
type CartSnapshot struct {
	Token     string
	Items     []LineItem
	ItemCount int64
}

// Find は variantID の最初の行を返す。
func (s CartSnapshot) Find(variantID string) (LineItem, bool) {
	for _, it := range s.Items {
		if it.VariantID == variantID {
			return it, true
		}
	}
	return LineItem{}, false
}

func (s CartSnapshot) IsEmpty() bool {
	for _, it := range s.Items {
		if it.Quantity > 0 {
			return false
		}
	}
	return true
}
