package slackdir

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"

	apperrors "github.com/lorrc/agent-activity-backend/internal/core/errors"
	"github.com/lorrc/agent-activity-backend/internal/core/ports"
)

// DirectoryClient resolves Slack user ids to workspace profile emails via
// the Web API (users.info). Requires the users:read.email bot scope.
type DirectoryClient struct {
	api *slack.Client
}

var _ ports.DirectoryClient = (*DirectoryClient)(nil)

func NewDirectoryClient(botToken string, timeout time.Duration) *DirectoryClient {
	api := slack.New(botToken, slack.OptionHTTPClient(&http.Client{Timeout: timeout}))
	return &DirectoryClient{api: api}
}

// LookupEmail fetches the profile email for a Slack user id.
func (c *DirectoryClient) LookupEmail(ctx context.Context, externalUserID string) (string, error) {
	user, err := c.api.GetUserInfoContext(ctx, externalUserID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrDirectoryLookup, err)
	}

	email := strings.ToLower(strings.TrimSpace(user.Profile.Email))
	if email == "" {
		return "", fmt.Errorf("%w: user %s has no profile email", apperrors.ErrDirectoryLookup, externalUserID)
	}
	return email, nil
}
