package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/chatvibe/console/internal/interfaces"
)

// ListServers returns servers matching query. Plain listings do not need a
// session; filtering by user or server id does.
func (c *Client) ListServers(ctx context.Context, query interfaces.ServerQuery) ([]interfaces.Server, error) {
	params := url.Values{}
	if query.Category != "" {
		params.Set("category", query.Category)
	}
	if query.Qty > 0 {
		params.Set("qty", strconv.Itoa(query.Qty))
	}
	if query.ByUser {
		params.Set("by_user", "true")
	}
	if query.WithNumMembers {
		params.Set("with_num_members", "true")
	}
	if query.ByServerID != "" {
		params.Set("by_serverId", query.ByServerID)
	}

	var servers []interfaces.Server
	err := c.getJSON(ctx, &Request{
		Method:    http.MethodGet,
		Path:      EndpointServers,
		Query:     params,
		Anonymous: !query.ByUser && query.ByServerID == "",
	}, &servers)
	if err != nil {
		return nil, err
	}
	return servers, nil
}

// GetServer fetches one server. A 400 means the id is malformed or unknown.
func (c *Client) GetServer(ctx context.Context, serverID string) (*interfaces.Server, error) {
	servers, err := c.ListServers(ctx, interfaces.ServerQuery{ByServerID: serverID, WithNumMembers: true})
	if err != nil {
		return nil, err
	}
	if len(servers) == 0 {
		return nil, fmt.Errorf("server %s: empty response", serverID)
	}
	return &servers[0], nil
}

// ListMessages returns the history of a channel.
func (c *Client) ListMessages(ctx context.Context, channelID string) ([]interfaces.Message, error) {
	var messages []interfaces.Message
	err := c.getJSON(ctx, &Request{
		Method: http.MethodGet,
		Path:   EndpointMessages,
		Query:  url.Values{"by_channelId": {channelID}},
	}, &messages)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// JoinServer adds the current user to a server.
func (c *Client) JoinServer(ctx context.Context, serverID string) error {
	return c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   membershipPath(serverID, ""),
		Body:   struct{}{},
	}).Error()
}

// LeaveServer removes the current user from a server.
func (c *Client) LeaveServer(ctx context.Context, serverID string) error {
	return c.Do(ctx, &Request{
		Method: http.MethodDelete,
		Path:   membershipPath(serverID, "/remove_member"),
	}).Error()
}

// IsMember reports whether the current user belongs to a server.
func (c *Client) IsMember(ctx context.Context, serverID string) (bool, error) {
	var resp isMemberResponse
	err := c.getJSON(ctx, &Request{
		Method: http.MethodGet,
		Path:   membershipPath(serverID, "/is_member"),
	}, &resp)
	if err != nil {
		return false, err
	}
	return resp.IsMember, nil
}

func membershipPath(serverID, suffix string) string {
	return fmt.Sprintf(EndpointMembership, url.PathEscape(serverID)) + suffix
}

// getJSON runs req through Do and decodes a successful body into out.
func (c *Client) getJSON(ctx context.Context, req *Request, out interface{}) error {
	result := c.Do(ctx, req)
	if err := result.Error(); err != nil {
		return err
	}
	if len(result.Response.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(result.Response.Body, out); err != nil {
		return fmt.Errorf("%s %s: invalid response body: %w", req.Method, req.Path, err)
	}
	return nil
}
