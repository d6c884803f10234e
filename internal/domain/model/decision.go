package model

type Presence int

const (
	// 今の状態を維持（追加も削除もしない）
	PresenceKeep Presence = iota
	PresencePresent
	PresenceAbsent
)

func (p Presence) String() string {
	switch p {
	case PresencePresent:
		return "present"
	case PresenceAbsent:
		return "absent"
	default:
		return "keep"
	}
}

// EligibilityDecision は評価のたびに作り直す。保存しない。
type EligibilityDecision struct {
	RuleID             string
	Gifts              map[string]Presence
	Order              []string // ギフト追加の順番
	QualifyingQuantity int64
	CodeMatched        bool
	CheckoutBlocked    bool
}

func (d EligibilityDecision) PresenceOf(variantID string) Presence {
	return d.Gifts[variantID]
}

func (d EligibilityDecision) ShouldHave(variantID string) bool {
	return d.Gifts[variantID] == PresencePresent
}
