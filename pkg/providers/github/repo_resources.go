package github

import (
	"context"
	"fmt"

	"github.com/google/go-github/v66/github"

	"otterdog/pkg/models"
)

// ListRepoWebhooks lists all webhooks of a repository
func (c *Client) ListRepoWebhooks(ctx context.Context, org, repo string) ([]models.RepositoryWebhook, error) {
	var webhooks []models.RepositoryWebhook

	err := WithRetry(ctx, func() error {
		webhooks = nil
		opts := &github.ListOptions{PerPage: 100}
		for {
			hooks, resp, err := c.client.Repositories.ListHooks(ctx, org, repo, opts)
			if err != nil {
				return WrapGitHubError(err, fmt.Sprintf("webhooks for %s/%s", org, repo))
			}
			for _, hook := range hooks {
				webhooks = append(webhooks, models.RepositoryWebhook{Webhook: convertHook(hook)})
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
		return nil
	}, c.retry)

	return webhooks, err
}

// CreateRepoWebhook creates a new webhook for a repository
func (c *Client) CreateRepoWebhook(ctx context.Context, org, repo string, webhook *models.RepositoryWebhook) error {
	hook := buildHook(&webhook.Webhook)

	return WithRetry(ctx, func() error {
		_, _, err := c.client.Repositories.CreateHook(ctx, org, repo, hook)
		if err != nil {
			return WrapGitHubError(err, fmt.Sprintf("webhook for %s/%s", org, repo))
		}
		return nil
	}, c.retry)
}

// UpdateRepoWebhook updates an existing repository webhook
func (c *Client) UpdateRepoWebhook(ctx context.Context, org, repo string, webhookID int64, webhook *models.RepositoryWebhook) error {
	hook := buildHook(&webhook.Webhook)

	return WithRetry(ctx, func() error {
		_, _, err := c.client.Repositories.EditHook(ctx, org, repo, webhookID, hook)
		if err != nil {
			return WrapGitHubError(err, fmt.Sprintf("webhook %d for %s/%s", webhookID, org, repo))
		}
		return nil
	}, c.retry)
}

// DeleteRepoWebhook deletes a webhook from a repository
func (c *Client) DeleteRepoWebhook(ctx context.Context, org, repo string, webhookID int64) error {
	return WithRetry(ctx, func() error {
		_, err := c.client.Repositories.DeleteHook(ctx, org, repo, webhookID)
		if err != nil {
			return WrapGitHubError(err, fmt.Sprintf("webhook %d for %s/%s", webhookID, org, repo))
		}
		return nil
	}, c.retry)
}

// ListRepoSecrets lists all action secrets of a repository. Secret values
// are not exposed by the API and are reported with the dummy value.
func (c *Client) ListRepoSecrets(ctx context.Context, org, repo string) ([]models.RepositorySecret, error) {
	var secrets []models.RepositorySecret

	err := WithRetry(ctx, func() error {
		secrets = nil
		opts := &github.ListOptions{PerPage: 100}
		for {
			page, resp, err := c.client.Actions.ListRepoSecrets(ctx, org, repo, opts)
			if err != nil {
				return WrapGitHubError(err, fmt.Sprintf("secrets for %s/%s", org, repo))
			}
			for _, ghSecret := range page.Secrets {
				secrets = append(secrets, models.RepositorySecret{
					Secret: models.Secret{
						Name:  github.String(ghSecret.Name),
						Value: github.String(models.DummySecretValue),
					},
				})
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
		return nil
	}, c.retry)

	return secrets, err
}

// CreateOrUpdateRepoSecret creates or updates a repository secret. The value
// is sealed with the repository public key before transmission.
func (c *Client) CreateOrUpdateRepoSecret(ctx context.Context, org, repo string, secret *models.RepositorySecret) error {
	resource := fmt.Sprintf("secret %s for %s/%s", secret.GetName(), org, repo)

	var publicKey *github.PublicKey
	err := WithRetry(ctx, func() error {
		var err error
		publicKey, _, err = c.client.Actions.GetRepoPublicKey(ctx, org, repo)
		if err != nil {
			return WrapGitHubError(err, resource)
		}
		return nil
	}, c.retry)
	if err != nil {
		return err
	}

	encrypted, err := encryptSecret(publicKey.GetKey(), derefStr(secret.Value))
	if err != nil {
		return fmt.Errorf("failed to encrypt %s: %w", resource, err)
	}

	eSecret := &github.EncryptedSecret{
		Name:           secret.GetName(),
		KeyID:          publicKey.GetKeyID(),
		EncryptedValue: encrypted,
	}

	return WithRetry(ctx, func() error {
		_, err := c.client.Actions.CreateOrUpdateRepoSecret(ctx, org, repo, eSecret)
		if err != nil {
			return WrapGitHubError(err, resource)
		}
		return nil
	}, c.retry)
}

// DeleteRepoSecret deletes a repository secret
func (c *Client) DeleteRepoSecret(ctx context.Context, org, repo, name string) error {
	return WithRetry(ctx, func() error {
		_, err := c.client.Actions.DeleteRepoSecret(ctx, org, repo, name)
		if err != nil {
			return WrapGitHubError(err, fmt.Sprintf("secret %s for %s/%s", name, org, repo))
		}
		return nil
	}, c.retry)
}

// ListRepoVariables lists all action variables of a repository
func (c *Client) ListRepoVariables(ctx context.Context, org, repo string) ([]models.RepositoryVariable, error) {
	var variables []models.RepositoryVariable

	err := WithRetry(ctx, func() error {
		variables = nil
		opts := &github.ListOptions{PerPage: 100}
		for {
			page, resp, err := c.client.Actions.ListRepoVariables(ctx, org, repo, opts)
			if err != nil {
				return WrapGitHubError(err, fmt.Sprintf("variables for %s/%s", org, repo))
			}
			for _, ghVariable := range page.Variables {
				variables = append(variables, models.RepositoryVariable{
					Variable: models.Variable{
						Name:  github.String(ghVariable.Name),
						Value: github.String(ghVariable.Value),
					},
				})
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
		return nil
	}, c.retry)

	return variables, err
}

// CreateRepoVariable creates a new repository variable
func (c *Client) CreateRepoVariable(ctx context.Context, org, repo string, variable *models.RepositoryVariable) error {
	ghVariable := &github.ActionsVariable{
		Name:  variable.GetName(),
		Value: derefStr(variable.Value),
	}

	return WithRetry(ctx, func() error {
		_, err := c.client.Actions.CreateRepoVariable(ctx, org, repo, ghVariable)
		if err != nil {
			return WrapGitHubError(err, fmt.Sprintf("variable %s for %s/%s", variable.GetName(), org, repo))
		}
		return nil
	}, c.retry)
}

// UpdateRepoVariable updates an existing repository variable
func (c *Client) UpdateRepoVariable(ctx context.Context, org, repo string, variable *models.RepositoryVariable) error {
	ghVariable := &github.ActionsVariable{
		Name:  variable.GetName(),
		Value: derefStr(variable.Value),
	}

	return WithRetry(ctx, func() error {
		_, err := c.client.Actions.UpdateRepoVariable(ctx, org, repo, ghVariable)
		if err != nil {
			return WrapGitHubError(err, fmt.Sprintf("variable %s for %s/%s", variable.GetName(), org, repo))
		}
		return nil
	}, c.retry)
}

// DeleteRepoVariable deletes a repository variable
func (c *Client) DeleteRepoVariable(ctx context.Context, org, repo, name string) error {
	return WithRetry(ctx, func() error {
		_, err := c.client.Actions.DeleteRepoVariable(ctx, org, repo, name)
		if err != nil {
			return WrapGitHubError(err, fmt.Sprintf("variable %s for %s/%s", name, org, repo))
		}
		return nil
	}, c.retry)
}
