package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"fleetclaim/internal/modules/order"
	"fleetclaim/internal/types"
)

func (c *Client) OrderDetail(ctx context.Context, orderID types.ID) (*order.Order, error) {
	const op = "order detail"
	body, err := c.read(ctx, op, "/orders/"+url.PathEscape(orderID.String()))
	if err != nil {
		return nil, err
	}
	var o order.Order
	if err := decodeObject(op, body, &o); err != nil {
		return nil, err
	}
	if o.ID == "" {
		o.ID = orderID
	}
	return &o, nil
}

// WalletBalance returns the authenticated operator's wallet balance.
func (c *Client) WalletBalance(ctx context.Context) (types.Money, error) {
	const op = "wallet balance"
	body, err := c.read(ctx, op, "/wallet/balance")
	if err != nil {
		return types.Money{}, err
	}
	var resp struct {
		Balance          json.RawMessage `json:"balance"`
		Amount           json.RawMessage `json:"amount"`
		AvailableBalance json.RawMessage `json:"available_balance"`
		Currency         string          `json:"currency"`
	}
	if err := json.Unmarshal(unwrapObject(body), &resp); err != nil {
		return types.Money{}, fmt.Errorf("%s decode: %w", op, err)
	}
	for _, raw := range []json.RawMessage{resp.Balance, resp.AvailableBalance, resp.Amount} {
		m, ok, err := types.ParseAmount(raw)
		if err != nil {
			return types.Money{}, fmt.Errorf("%s decode: %w", op, err)
		}
		if ok {
			if resp.Currency != "" {
				m.Currency = resp.Currency
			}
			return m, nil
		}
	}
	return types.Money{}, fmt.Errorf("%s decode: missing balance", op)
}
