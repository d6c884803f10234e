package gift

import (
	"context"
	"errors"
	"testing"

	"giftcart/internal/domain/model"
	"giftcart/internal/infra/cartapi"
	"giftcart/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCart struct {
	mock.Mock
	order []string
}

func (m *mockCart) FetchCart(ctx context.Context) (model.CartSnapshot, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.CartSnapshot), args.Error(1)
}

func (m *mockCart) AddLine(ctx context.Context, variantID string, qty int64) (model.LineItem, error) {
	m.order = append(m.order, "add:"+variantID)
	args := m.Called(ctx, variantID, qty)
	return args.Get(0).(model.LineItem), args.Error(1)
}

func (m *mockCart) UpdateLines(ctx context.Context, updates map[string]int64) (model.CartSnapshot, error) {
	m.order = append(m.order, "update")
	args := m.Called(ctx, updates)
	return args.Get(0).(model.CartSnapshot), args.Error(1)
}

func (m *mockCart) ApplyDiscount(ctx context.Context, code string) error {
	m.order = append(m.order, "discount")
	args := m.Called(ctx, code)
	return args.Error(0)
}

func decision(gifts map[string]model.Presence, order ...string) model.EligibilityDecision {
	return model.EligibilityDecision{Gifts: gifts, Order: order}
}

func TestMutatorPlan(t *testing.T) {
	cases := []struct {
		name       string
		autoRemove bool
		singleUnit bool
		snapshot   model.CartSnapshot
		decision   model.EligibilityDecision
		adds       []string
		updates    map[string]int64
	}{
		{
			name:       "present and missing is added",
			autoRemove: true, singleUnit: true,
			snapshot: snap(line("1001", 1)),
			decision: decision(map[string]model.Presence{"g1": model.PresencePresent, "g2": model.PresencePresent}, "g1", "g2"),
			adds:     []string{"g1", "g2"},
			updates:  map[string]int64{},
		},
		{
			name:       "present and in cart does nothing",
			autoRemove: true, singleUnit: true,
			snapshot: snap(line("1001", 1), line("g1", 1)),
			decision: decision(map[string]model.Presence{"g1": model.PresencePresent}, "g1"),
			updates:  map[string]int64{},
		},
		{
			name:       "absent is removed",
			autoRemove: true, singleUnit: true,
			snapshot: snap(line("g1", 1)),
			decision: decision(map[string]model.Presence{"g1": model.PresenceAbsent}, "g1"),
			updates:  map[string]int64{"g1:k": 0},
		},
		{
			name:       "absent kept when auto remove is off",
			autoRemove: false, singleUnit: true,
			snapshot: snap(line("g1", 1)),
			decision: decision(map[string]model.Presence{"g1": model.PresenceAbsent}, "g1"),
			updates:  map[string]int64{},
		},
		{
			name:       "keep trims quantity to one",
			autoRemove: true, singleUnit: true,
			snapshot: snap(line("1001", 1), line("g1", 3)),
			decision: decision(map[string]model.Presence{"g1": model.PresenceKeep}, "g1"),
			updates:  map[string]int64{"g1:k": 1},
		},
		{
			name:       "keep leaves quantity without single unit",
			autoRemove: true, singleUnit: false,
			snapshot: snap(line("1001", 1), line("g1", 3)),
			decision: decision(map[string]model.Presence{"g1": model.PresenceKeep}, "g1"),
			updates:  map[string]int64{},
		},
		{
			name:       "duplicate lines collapse to one",
			autoRemove: true, singleUnit: true,
			snapshot: snap(line("1001", 1),
				model.LineItem{VariantID: "g1", Quantity: 1, Key: "g1:a"},
				model.LineItem{VariantID: "g1", Quantity: 2, Key: "g1:b"}),
			decision: decision(map[string]model.Presence{"g1": model.PresencePresent}, "g1"),
			updates:  map[string]int64{"g1:b": 0},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewMutator(&mockCart{}, tc.autoRemove, tc.singleUnit, nil)
			p := m.Plan(tc.snapshot, tc.decision)
			assert.Equal(t, tc.adds, p.Adds)
			assert.Equal(t, tc.updates, p.Updates)
		})
	}
}

func TestMutatorReconcile_UpdatesBeforeAddsThenDiscount(t *testing.T) {
	ctx := context.Background()
	cart := &mockCart{}
	met := metrics.New(nil)
	m := NewMutator(cart, true, true, met)

	cart.On("UpdateLines", mock.Anything, map[string]int64{"old:k": 0}).Return(model.CartSnapshot{}, nil).Once()
	cart.On("AddLine", mock.Anything, "g1", int64(1)).Return(model.LineItem{VariantID: "g1", Quantity: 1}, nil).Once()
	cart.On("ApplyDiscount", mock.Anything, "GIFT").Return(nil).Once()

	s := snap(line("1001", 1), line("old", 1))
	d := decision(map[string]model.Presence{"old": model.PresenceAbsent, "g1": model.PresencePresent}, "old", "g1")

	res, err := m.Reconcile(ctx, s, d, "GIFT")
	require.NoError(t, err)
	assert.Equal(t, []string{"g1"}, res.Added)
	assert.Equal(t, []string{"old:k"}, res.Removed)
	assert.True(t, res.Mutated())
	assert.Equal(t, []string{"update", "add:g1", "discount"}, cart.order)
	assert.Equal(t, 1.0, testutil.ToFloat64(met.GiftMutations.WithLabelValues("add")))
	assert.Equal(t, 1.0, testutil.ToFloat64(met.GiftMutations.WithLabelValues("remove")))
	cart.AssertExpectations(t)
}

func TestMutatorReconcile_FailedAddDoesNotStopOthers(t *testing.T) {
	ctx := context.Background()
	cart := &mockCart{}
	m := NewMutator(cart, true, true, nil)

	soldOut := &cartapi.TransportError{Op: "add line", Status: 422, Body: "sold out"}
	cart.On("AddLine", mock.Anything, "g1", int64(1)).Return(model.LineItem{}, soldOut).Once()
	cart.On("AddLine", mock.Anything, "g2", int64(1)).Return(model.LineItem{VariantID: "g2", Quantity: 1}, nil).Once()
	cart.On("ApplyDiscount", mock.Anything, "GIFT").Return(errors.New("ignored")).Once()

	d := decision(map[string]model.Presence{"g1": model.PresencePresent, "g2": model.PresencePresent}, "g1", "g2")
	res, err := m.Reconcile(ctx, snap(line("1001", 2)), d, "GIFT")

	require.Error(t, err)
	assert.True(t, cartapi.IsUnprocessable(err))
	assert.Equal(t, []string{"g2"}, res.Added)
	assert.Equal(t, []string{"g1"}, res.Failed)
	cart.AssertExpectations(t)
}

func TestMutatorReconcile_NoDiscountWithoutAdd(t *testing.T) {
	ctx := context.Background()
	cart := &mockCart{}
	m := NewMutator(cart, true, true, nil)

	cart.On("AddLine", mock.Anything, "g1", int64(1)).Return(model.LineItem{}, &cartapi.TransportError{Op: "add line", Status: 422}).Once()

	d := decision(map[string]model.Presence{"g1": model.PresencePresent}, "g1")
	res, err := m.Reconcile(ctx, snap(line("1001", 1)), d, "GIFT")

	require.Error(t, err)
	assert.False(t, res.Mutated())
	cart.AssertNotCalled(t, "ApplyDiscount", mock.Anything, mock.Anything)
}

func TestMutatorReconcile_EmptyPlanMakesNoCalls(t *testing.T) {
	cart := &mockCart{}
	m := NewMutator(cart, true, true, nil)

	d := decision(map[string]model.Presence{"g1": model.PresencePresent}, "g1")
	res, err := m.Reconcile(context.Background(), snap(line("1001", 1), line("g1", 1)), d, "GIFT")

	require.NoError(t, err)
	assert.False(t, res.Mutated())
	assert.Empty(t, cart.order)
}

func TestMutatorReconcile_UpdateFailureKeepsAdding(t *testing.T) {
	cart := &mockCart{}
	m := NewMutator(cart, true, true, nil)

	cart.On("UpdateLines", mock.Anything, mock.Anything).Return(model.CartSnapshot{}, &cartapi.TransportError{Op: "update lines", Status: 500}).Once()
	cart.On("AddLine", mock.Anything, "g1", int64(1)).Return(model.LineItem{VariantID: "g1", Quantity: 1}, nil).Once()
	cart.On("ApplyDiscount", mock.Anything, "GIFT").Return(nil).Once()

	s := snap(line("1001", 1), line("a", 1), line("b", 1))
	d := decision(map[string]model.Presence{"a": model.PresenceAbsent, "b": model.PresenceAbsent, "g1": model.PresencePresent}, "a", "b", "g1")
	res, err := m.Reconcile(context.Background(), s, d, "GIFT")

	require.Error(t, err)
	assert.Empty(t, res.Removed)
	assert.Equal(t, []string{"g1"}, res.Added)
	cart.AssertExpectations(t)
}

func TestMutatorReconcile_RemovesAnyOrder(t *testing.T) {
	cart := &mockCart{}
	m := NewMutator(cart, true, true, nil)
	cart.On("UpdateLines", mock.Anything, map[string]int64{"a:k": 0, "b:k": 0}).Return(model.CartSnapshot{}, nil).Once()

	d := decision(map[string]model.Presence{"a": model.PresenceAbsent, "b": model.PresenceAbsent}, "a", "b")
	res, err := m.Reconcile(context.Background(), snap(line("a", 1), line("b", 1)), d, "")

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a:k", "b:k"}, res.Removed)
	cart.AssertExpectations(t)
}
