package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"fleetclaim/internal/fault"
	"fleetclaim/internal/modules/assignment"
	"fleetclaim/internal/types"
)

type acceptRequest struct {
	OrderID types.ID `json:"order_id"`
	Notes   string   `json:"notes,omitempty"`
}

type bindRequest struct {
	DriverID types.ID `json:"driver_id"`
	CarID    types.ID `json:"car_id"`
}

type statusRequest struct {
	AssignmentStatus assignment.Status `json:"assignment_status"`
}

// AcceptOrder claims an order for the authenticated operator. Never retried.
func (c *Client) AcceptOrder(ctx context.Context, orderID types.ID, notes string) (*assignment.Assignment, error) {
	const op = "accept order"
	body, err := c.mutate(ctx, http.MethodPost, op, "/assignments/accept", acceptRequest{OrderID: orderID, Notes: notes})
	if err != nil {
		return nil, err
	}
	a, err := decodeAssignment(op, body)
	if err != nil {
		return nil, fault.Unconfirmed(op, err)
	}
	if a.OrderID == "" {
		a.OrderID = orderID
	}
	return a, nil
}

func (c *Client) BindResources(ctx context.Context, assignmentID, driverID, carID types.ID) (*assignment.Assignment, error) {
	const op = "bind resources"
	path := "/assignments/" + url.PathEscape(assignmentID.String()) + "/resources"
	body, err := c.mutate(ctx, http.MethodPatch, op, path, bindRequest{DriverID: driverID, CarID: carID})
	if err != nil {
		return nil, err
	}
	return decodeAssignment(op, body)
}

func (c *Client) UpdateStatus(ctx context.Context, assignmentID types.ID, to assignment.Status) (*assignment.Assignment, error) {
	const op = "update assignment status"
	path := "/assignments/" + url.PathEscape(assignmentID.String()) + "/status"
	body, err := c.mutate(ctx, http.MethodPatch, op, path, statusRequest{AssignmentStatus: to})
	if err != nil {
		return nil, err
	}
	return decodeAssignment(op, body)
}

func (c *Client) Assignment(ctx context.Context, assignmentID types.ID) (*assignment.Assignment, error) {
	const op = "get assignment"
	body, err := c.read(ctx, op, "/assignments/"+url.PathEscape(assignmentID.String()))
	if err != nil {
		return nil, err
	}
	return decodeAssignment(op, body)
}

func (c *Client) AssignmentsByOrder(ctx context.Context, orderID types.ID) ([]assignment.Assignment, error) {
	return c.assignments(ctx, "assignments by order", "/assignments?order_id="+url.QueryEscape(orderID.String()))
}

func (c *Client) AssignmentsByOwner(ctx context.Context, ownerID types.ID) ([]assignment.Assignment, error) {
	return c.assignments(ctx, "assignments by owner", "/assignments?owner_id="+url.QueryEscape(ownerID.String()))
}

func (c *Client) assignments(ctx context.Context, op, path string) ([]assignment.Assignment, error) {
	raws, err := c.list(ctx, op, path)
	if err != nil {
		return nil, err
	}
	out := make([]assignment.Assignment, 0, len(raws))
	for _, raw := range raws {
		var a assignment.Assignment
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("%s decode: %w", op, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func decodeAssignment(op string, body []byte) (*assignment.Assignment, error) {
	payload := unwrapObject(body)
	var env struct {
		Assignment json.RawMessage `json:"assignment"`
	}
	if err := json.Unmarshal(payload, &env); err == nil && len(env.Assignment) > 0 && env.Assignment[0] == '{' {
		payload = env.Assignment
	}
	var a assignment.Assignment
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, fmt.Errorf("%s decode: %w", op, err)
	}
	return &a, nil
}
