package client

import (
	"context"
	"errors"

	"github.com/LeventeLantos/zenvia-go/model"
)

type subscriptionBody struct {
	value model.Subscription
}

func (b *subscriptionBody) UnmarshalJSON(data []byte) error {
	s, err := model.DecodeSubscription(data)
	if err != nil {
		return err
	}
	b.value = s
	return nil
}

type subscriptionList []model.Subscription

func (l *subscriptionList) UnmarshalJSON(data []byte) error {
	subs, err := model.DecodeSubscriptions(data)
	if err != nil {
		return err
	}
	*l = subs
	return nil
}

func (c *Client) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	var subs subscriptionList
	if err := c.list(ctx, subscriptionsPath, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

func (c *Client) CreateSubscription(ctx context.Context, sub model.Subscription) (model.Subscription, error) {
	if sub == nil {
		return nil, errors.New("zenvia: subscription is required")
	}
	var out subscriptionBody
	if err := c.post(ctx, subscriptionsPath, sub, &out); err != nil {
		return nil, err
	}
	return out.value, nil
}

func (c *Client) GetSubscription(ctx context.Context, id string) (model.Subscription, error) {
	var out subscriptionBody
	if err := c.get(ctx, subscriptionsPath, id, &out); err != nil {
		return nil, err
	}
	return out.value, nil
}

// UpdateSubscription sends the webhook and status of sub, the only fields an
// update may change.
func (c *Client) UpdateSubscription(ctx context.Context, sub model.Subscription) (model.Subscription, error) {
	if sub == nil {
		return nil, errors.New("zenvia: subscription is required")
	}
	return c.UpdateSubscriptionByID(ctx, sub.Fields().ID, model.PartialFrom(sub))
}

func (c *Client) UpdateSubscriptionByID(ctx context.Context, id string, partial model.PartialSubscription) (model.Subscription, error) {
	if id == "" {
		return nil, errors.New("zenvia: subscription id is required")
	}
	var out subscriptionBody
	if err := c.patch(ctx, subscriptionsPath, id, partial, &out); err != nil {
		return nil, err
	}
	return out.value, nil
}

func (c *Client) DeleteSubscription(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("zenvia: subscription id is required")
	}
	return c.delete(ctx, subscriptionsPath, id)
}
