package models

import "strings"

var validWebhookContentTypes = map[string]bool{
	"json": true,
	"form": true,
}

// Webhook models an organization or repository webhook. The url acts as the
// key when matching configured webhooks against live ones.
type Webhook struct {
	ID          *int64   `json:"id" model:"ro"`
	URL         *string  `json:"url" model:"key"`
	Active      *bool    `json:"active"`
	Events      []string `json:"events"`
	ContentType *string  `json:"content_type"`
	InsecureSSL *string  `json:"insecure_ssl"`
	Secret      *string  `json:"secret"`
}

// OrganizationWebhook is a webhook attached to the organization itself.
type OrganizationWebhook struct {
	Webhook
}

// RepositoryWebhook is a webhook attached to a single repository.
type RepositoryWebhook struct {
	Webhook
}

// GetURL returns the webhook url, empty when unset.
func (w *Webhook) GetURL() string {
	if w.URL == nil {
		return ""
	}
	return *w.URL
}

// HasDummySecret reports whether the webhook secret consists only of
// asterisks, i.e. is the redacted value handed out by the provider.
func (w *Webhook) HasDummySecret() bool {
	if w.Secret == nil || *w.Secret == "" {
		return false
	}
	return strings.Count(*w.Secret, "*") == len(*w.Secret)
}

func (w *Webhook) validate(vc *ValidationContext, object string) {
	url := ""
	if w.URL != nil {
		url = *w.URL
	}
	if url == "" {
		vc.Errorf(object, "no value for required setting 'url'")
	}

	if w.HasDummySecret() {
		vc.Errorf(object, "webhook with url '%s' uses a dummy secret '%s'", url, *w.Secret)
	}

	if len(w.Events) == 0 {
		vc.Warnf(object, "webhook with url '%s' does not define any triggering events", url)
	}

	if w.ContentType != nil && !validWebhookContentTypes[*w.ContentType] {
		vc.Errorf(object, "'content_type' has value '%s', only values ('json' | 'form') are allowed", *w.ContentType)
	}

	if w.InsecureSSL != nil && *w.InsecureSSL != "0" && *w.InsecureSSL != "1" {
		vc.Errorf(object, "'insecure_ssl' has value '%s', only values ('0' | '1') are allowed", *w.InsecureSSL)
	}
}

// Validate checks an organization webhook.
func (w *OrganizationWebhook) Validate(vc *ValidationContext) {
	w.validate(vc, "webhook")
}

// Validate checks a repository webhook of the named repository.
func (w *RepositoryWebhook) Validate(vc *ValidationContext, repoName string) {
	w.validate(vc, "repo["+repoName+"].webhook")
}
