//go:build integration && github_e2e
// +build integration,github_e2e

package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"otterdog/pkg/diff"
	"otterdog/pkg/providers/github"
)

// e2eClient returns an API client for the live test organization, skipping
// the test unless the E2E environment is fully configured. The tests only
// read from the organization, they never change it.
func e2eClient(t *testing.T) (*github.Client, string) {
	t.Helper()

	if os.Getenv("OTTERDOG_E2E_TESTS") != "true" {
		t.Skip("Skipping E2E tests. Set OTTERDOG_E2E_TESTS=true to run.")
	}
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		t.Skip("GITHUB_TOKEN not set, skipping E2E tests")
	}
	testOrg := os.Getenv("GITHUB_TEST_ORG")
	if testOrg == "" {
		t.Skip("GITHUB_TEST_ORG not set, skipping E2E tests")
	}

	client, err := github.NewClient(token, github.Options{})
	if err != nil {
		t.Fatalf("Failed to create GitHub client: %v", err)
	}
	return client, testOrg
}

func TestFetchOrganizationE2E(t *testing.T) {
	client, testOrg := e2eClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	live, err := client.FetchOrganization(ctx, testOrg)
	if err != nil {
		t.Fatalf("Failed to fetch organization %s: %v", testOrg, err)
	}

	if live.GitHubID != testOrg {
		t.Errorf("Expected github_id %s, got %s", testOrg, live.GitHubID)
	}
	if live.Settings == nil {
		t.Fatal("Expected organization settings to be fetched")
	}
	if live.Settings.Name == nil && live.Settings.BillingEmail == nil {
		t.Error("Expected at least one organization setting to be populated")
	}

	// The live state planned against itself is always empty. A non-empty
	// plan here means fetch and comparison disagree about a field.
	operator := diff.NewOperator(nil, testOrg, diff.Options{IncludeWebUI: true})
	patches := operator.Plan(live, live)
	if len(patches) != 0 {
		for _, patch := range patches {
			t.Logf("unexpected patch: %s %s %s", patch.Type, patch.Kind, patch.Name)
		}
		t.Errorf("Expected an empty plan for the unmodified live state, got %d patches", len(patches))
	}
}

func TestFetchRepositoryE2E(t *testing.T) {
	client, testOrg := e2eClient(t)

	testRepo := os.Getenv("GITHUB_TEST_REPO")
	if testRepo == "" {
		t.Skip("GITHUB_TEST_REPO not set, skipping repository E2E test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	repo, err := client.GetRepository(ctx, testOrg, testRepo)
	if err != nil {
		t.Fatalf("Failed to fetch repository %s/%s: %v", testOrg, testRepo, err)
	}
	if repo.GetName() != testRepo {
		t.Errorf("Expected repository name %s, got %s", testRepo, repo.GetName())
	}
	if repo.DefaultBranch == nil || *repo.DefaultBranch == "" {
		t.Error("Expected the default branch to be populated")
	}
}
