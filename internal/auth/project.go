package auth

import (
	"context"
	"encoding/json"
	"os"
	"strings"
)

// Project resolves the default project id: environment, then any
// configured credentials file, then the metadata server. Best effort;
// returns "" when nothing knows the project (the operator picks one
// interactively).
func (p *Provider) Project(ctx context.Context) string {
	if p.settings.Project != "" {
		return p.settings.Project
	}

	for _, raw := range p.credentialBlobs() {
		var probe struct {
			ProjectID    string `json:"project_id"`
			QuotaProject string `json:"quota_project_id"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			continue
		}
		if probe.ProjectID != "" {
			return probe.ProjectID
		}
		if probe.QuotaProject != "" {
			return probe.QuotaProject
		}
	}

	res, err := p.client.Send(ctx, "GET", metadataProject, map[string]string{"Metadata-Flavor": "Google"}, nil)
	if err == nil && res.Status >= 200 && res.Status < 300 {
		project := strings.TrimSpace(string(res.Body))
		// Captive portals answer with HTML; a project id never does.
		if project != "" && !strings.ContainsAny(project, "<>") {
			return project
		}
	}
	return ""
}

func (p *Provider) credentialBlobs() [][]byte {
	var blobs [][]byte
	if p.settings.CredentialsJSON != "" {
		blobs = append(blobs, []byte(p.settings.CredentialsJSON))
	}
	if p.settings.CredentialsFile != "" {
		if b, err := os.ReadFile(p.settings.CredentialsFile); err == nil {
			blobs = append(blobs, b)
		}
	}
	if path := p.adcPath(); path != "" {
		if b, err := os.ReadFile(path); err == nil {
			blobs = append(blobs, b)
		}
	}
	return blobs
}
