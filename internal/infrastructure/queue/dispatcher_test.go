package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalogue/internal/core/apperror"
	"catalogue/internal/core/id"
	"catalogue/internal/domain/catalogue"
	"catalogue/internal/domain/pricefeed"
	"catalogue/internal/domain/stock"
	"catalogue/pkg/logger"
)

type fakeFeed struct {
	got    *pricefeed.Request
	result pricefeed.Result
	err    error
}

func (f *fakeFeed) Apply(_ context.Context, req pricefeed.Request) (pricefeed.Result, error) {
	f.got = &req
	return f.result, f.err
}

type fakeStock struct {
	deactivated string
	recomputed  id.ID
	err         error
}

func (f *fakeStock) DeactivateOutlet(_ context.Context, outletID string) (*stock.DeactivationResult, error) {
	f.deactivated = outletID
	if f.err != nil {
		return nil, f.err
	}
	return &stock.DeactivationResult{ArchivedRows: 3}, nil
}

func (f *fakeStock) Recompute(_ context.Context, productID id.ID) (*catalogue.Product, error) {
	f.recomputed = productID
	if f.err != nil {
		return nil, f.err
	}
	return &catalogue.Product{ID: productID}, nil
}

func TestDispatch_PriceFeed(t *testing.T) {
	feed := &fakeFeed{result: pricefeed.Result{Success: true, Matched: 1, Updated: 1}}
	d := NewDispatcher(feed, &fakeStock{}, logger.Nop())

	body := `{"type":"price_feed","payload":{"token":"t","apiVersion":"1","systemVersion":"pos-2",
		"entries":[{"barcode":["4600000000001"],"price":"99.90","available":2}]}}`
	require.NoError(t, d.Dispatch(context.Background(), body))

	require.NotNil(t, feed.got)
	assert.Equal(t, "t", feed.got.Token)
	require.Len(t, feed.got.Entries, 1)
	require.NotNil(t, feed.got.Entries[0].Price)
	assert.Equal(t, "99.9", feed.got.Entries[0].Price.String())
}

func TestDispatch_PartialFeedIsAcknowledged(t *testing.T) {
	feed := &fakeFeed{result: pricefeed.Result{Success: false, Matched: 5, Updated: 4}}
	d := NewDispatcher(feed, &fakeStock{}, logger.Nop())

	err := d.Dispatch(context.Background(), `{"type":"price_feed","payload":{"token":"t"}}`)
	assert.NoError(t, err)
}

func TestDispatch_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		poison bool
	}{
		{"rejected feed", apperror.NewFeedRejected("unknown outlet"), true},
		{"not found", apperror.NewNotFound("outlet", "x"), true},
		{"unavailable", apperror.NewUnavailable("registry", errors.New("down")), false},
		{"plain error", errors.New("network"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDispatcher(&fakeFeed{err: tt.err}, &fakeStock{}, logger.Nop())
			err := d.Dispatch(context.Background(), `{"type":"price_feed","payload":{}}`)
			require.Error(t, err)
			assert.Equal(t, tt.poison, errors.Is(err, ErrPoison))
		})
	}
}

func TestDispatch_OutletDeactivated(t *testing.T) {
	st := &fakeStock{}
	d := NewDispatcher(&fakeFeed{}, st, logger.Nop())

	outlet := "2f1c3c0e-6a43-4bd5-9d0a-6c1f3f0b9a11"
	require.NoError(t, d.Dispatch(context.Background(),
		`{"type":"outlet_deactivated","payload":{"outletId":"`+outlet+`"}}`))
	assert.Equal(t, outlet, st.deactivated)

	err := d.Dispatch(context.Background(), `{"type":"outlet_deactivated","payload":{"outletId":"nope"}}`)
	assert.ErrorIs(t, err, ErrPoison)
}

func TestDispatch_RecomputeProduct(t *testing.T) {
	st := &fakeStock{}
	d := NewDispatcher(&fakeFeed{}, st, logger.Nop())

	pid := id.New()
	require.NoError(t, d.Dispatch(context.Background(),
		`{"type":"recompute_product","payload":{"productId":"`+pid.Hex()+`"}}`))
	assert.Equal(t, pid, st.recomputed)
}

func TestDispatch_PoisonEnvelopes(t *testing.T) {
	d := NewDispatcher(&fakeFeed{}, &fakeStock{}, logger.Nop())
	for _, body := range []string{
		``,
		`not json`,
		`{"type":"unknown","payload":{}}`,
		`{"type":"price_feed"}`,
		`{"type":"recompute_product","payload":{"productId":"xyz"}}`,
	} {
		assert.ErrorIs(t, d.Dispatch(context.Background(), body), ErrPoison, body)
	}
}

func TestParseEnvelope_UnwrapsSNS(t *testing.T) {
	body := `{"Type":"Notification","Message":"{\"type\":\"recompute_product\",\"payload\":{\"productId\":\"65a000000000000000000001\"}}"}`
	env, err := ParseEnvelope(body)
	require.NoError(t, err)
	assert.Equal(t, TypeRecomputeProduct, env.Type)
}
