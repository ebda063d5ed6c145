package discord

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"

	"ex-sniper/pkg/sniper"
)

// maxAvatarBytes bounds a downloaded avatar image.
const maxAvatarBytes = 8 << 20

// RelationshipPayload is one relationship as the API and the gateway send it.
// discordgo has no type for it since user accounts are out of its scope.
type RelationshipPayload struct {
	ID   string          `json:"id"`
	Type int             `json:"type"`
	User *discordgo.User `json:"user"`
}

// UserID returns the related user's id from either field.
func (p RelationshipPayload) UserID() string {
	if p.ID != "" {
		return p.ID
	}
	if p.User != nil {
		return p.User.ID
	}

	return ""
}

// ToRelationship projects a relationship payload.
func ToRelationship(payload RelationshipPayload) sniper.Relationship {
	user := ToUser(payload.User)
	if user.ID == "" {
		user.ID = payload.UserID()
	}

	return sniper.Relationship{Kind: sniper.RelationshipKind(payload.Type), User: user}
}

func relationshipsEndpoint() string {
	return discordgo.EndpointUser("@me") + "/relationships"
}

// Relationships lists friends, blocks, and pending requests of the account.
func (c *Client) Relationships(ctx context.Context) ([]sniper.Relationship, error) {
	var body []byte
	err := c.withRateLimitRetry(ctx, sniper.OutboundOperationListRelationships, func() error {
		var callErr error
		body, callErr = c.session.RequestWithBucketID(http.MethodGet, relationshipsEndpoint(), nil, relationshipsEndpoint(), discordgo.WithContext(ctx))
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}

	var payloads []RelationshipPayload
	if err := json.Unmarshal(body, &payloads); err != nil {
		return nil, fmt.Errorf("decode relationships: %w", err)
	}
	relationships := make([]sniper.Relationship, 0, len(payloads))
	for _, payload := range payloads {
		if payload.UserID() == "" {
			continue
		}
		relationships = append(relationships, ToRelationship(payload))
	}

	return relationships, nil
}

// RemoveRelationship deletes the relationship with userID.
func (c *Client) RemoveRelationship(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("remove relationship: %w: missing user id", sniper.ErrInvalidOutboundRequest)
	}

	err := c.withRateLimitRetry(ctx, sniper.OutboundOperationDeleteRelationship, func() error {
		_, callErr := c.session.RequestWithBucketID(http.MethodDelete, relationshipsEndpoint()+"/"+userID, nil, relationshipsEndpoint(), discordgo.WithContext(ctx))
		return callErr
	})
	if err != nil {
		return fmt.Errorf("remove relationship %s: %w", userID, err)
	}

	return nil
}

// SetAvatar downloads imageURL and uploads it as the account avatar.
func (c *Client) SetAvatar(ctx context.Context, imageURL string) error {
	dataURI, err := c.fetchImage(ctx, imageURL)
	if err != nil {
		return err
	}

	err = c.withRateLimitRetry(ctx, sniper.OutboundOperationUpdateProfile, func() error {
		_, callErr := c.session.UserUpdate("", dataURI, "", discordgo.WithContext(ctx))
		return callErr
	})
	if err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}

	return nil
}

// fetchImage downloads an image and renders it as a base64 data URI.
func (c *Client) fetchImage(ctx context.Context, imageURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(imageURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", fmt.Errorf("fetch avatar: %w: %q is not an http(s) url", sniper.ErrInvalidOutboundRequest, imageURL)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return "", fmt.Errorf("fetch avatar: %w", err)
	}
	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("fetch avatar %s: %w", parsed.Host, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch avatar %s: http %d", parsed.Host, response.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(response.Body, maxAvatarBytes+1))
	if err != nil {
		return "", fmt.Errorf("read avatar: %w", err)
	}
	if len(data) > maxAvatarBytes {
		return "", fmt.Errorf("fetch avatar: %w: image larger than %d bytes", sniper.ErrInvalidOutboundRequest, maxAvatarBytes)
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("fetch avatar: %w: content type %s is not an image", sniper.ErrInvalidOutboundRequest, contentType)
	}

	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
