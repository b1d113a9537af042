package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"fleetclaim/internal/types"
)

// AvailableDrivers is the primary driver lookup.
func (c *Client) AvailableDrivers(ctx context.Context) ([]json.RawMessage, error) {
	return c.list(ctx, "available drivers", "/drivers/available")
}

// UsersAvailableDrivers is the secondary driver lookup.
func (c *Client) UsersAvailableDrivers(ctx context.Context) ([]json.RawMessage, error) {
	return c.list(ctx, "users available drivers", "/users/available-drivers")
}

func (c *Client) AvailableCars(ctx context.Context) ([]json.RawMessage, error) {
	return c.list(ctx, "available cars", "/cars/available")
}

func (c *Client) UsersAvailableCars(ctx context.Context) ([]json.RawMessage, error) {
	return c.list(ctx, "users available cars", "/users/available-cars")
}

// OrganizationDrivers lists every driver of an owner regardless of availability.
func (c *Client) OrganizationDrivers(ctx context.Context, ownerID types.ID) ([]json.RawMessage, error) {
	return c.list(ctx, "organization drivers", "/organizations/"+url.PathEscape(ownerID.String())+"/drivers")
}

func (c *Client) OrganizationCars(ctx context.Context, ownerID types.ID) ([]json.RawMessage, error) {
	return c.list(ctx, "organization cars", "/organizations/"+url.PathEscape(ownerID.String())+"/cars")
}

func (c *Client) DriverAvailability(ctx context.Context, driverID types.ID) (bool, error) {
	return c.availability(ctx, "driver availability", "/drivers/"+url.PathEscape(driverID.String())+"/availability")
}

func (c *Client) CarAvailability(ctx context.Context, carID types.ID) (bool, error) {
	return c.availability(ctx, "car availability", "/cars/"+url.PathEscape(carID.String())+"/availability")
}

func (c *Client) list(ctx context.Context, op, path string) ([]json.RawMessage, error) {
	body, err := c.read(ctx, op, path)
	if err != nil {
		return nil, err
	}
	return unwrapList(op, body)
}

func (c *Client) availability(ctx context.Context, op, path string) (bool, error) {
	body, err := c.read(ctx, op, path)
	if err != nil {
		return false, err
	}
	var resp struct {
		IsAvailable *bool `json:"is_available"`
		Available   *bool `json:"available"`
	}
	if err := json.Unmarshal(unwrapObject(body), &resp); err != nil {
		return false, fmt.Errorf("%s decode: %w", op, err)
	}
	switch {
	case resp.IsAvailable != nil:
		return *resp.IsAvailable, nil
	case resp.Available != nil:
		return *resp.Available, nil
	}
	return false, fmt.Errorf("%s decode: missing is_available", op)
}
