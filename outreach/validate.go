package outreach

import (
	"strings"
	"unicode/utf8"

	"github.com/hazyhaar/outreach/outreach/internal/channels"
)

const (
	defaultCampaign = "auto"

	maxCampaignLen = 80
	maxDomainLen   = 255
	minDomainLen   = 2
	maxReasonLen   = 300
	maxAgentIDs    = 200
)

// OptOutInput is the body of every opt-out write.
type OptOutInput struct {
	Domain string `json:"domain"`
	Reason string `json:"reason,omitempty"`
}

func (in *OptOutInput) validate() error {
	var ve ValidationError
	in.Domain = strings.TrimSpace(in.Domain)
	in.Reason = strings.TrimSpace(in.Reason)
	checkDomain(&ve, in.Domain)
	if utf8.RuneCountInString(in.Reason) > maxReasonLen {
		ve.add("reason", "must be at most %d characters", maxReasonLen)
	}
	return ve.orNil()
}

func checkDomain(ve *ValidationError, domain string) {
	n := utf8.RuneCountInString(domain)
	if n < minDomainLen || n > maxDomainLen {
		ve.add("domain", "must be between %d and %d characters", minDomainLen, maxDomainLen)
	}
}

// TargetsInput selects targets for preview or execution.
type TargetsInput struct {
	AgentIDs []string `json:"agentIds"`
	Campaign string   `json:"campaign"`
}

func (in *TargetsInput) validate() error {
	var ve ValidationError
	switch {
	case len(in.AgentIDs) == 0:
		ve.add("agentIds", "at least one id is required")
	case len(in.AgentIDs) > maxAgentIDs:
		ve.add("agentIds", "at most %d ids are allowed", maxAgentIDs)
	}
	for i, id := range in.AgentIDs {
		in.AgentIDs[i] = strings.TrimSpace(id)
		if in.AgentIDs[i] == "" {
			ve.add("agentIds", "ids must not be empty")
			break
		}
	}
	in.Campaign = strings.TrimSpace(in.Campaign)
	checkCampaign(&ve, in.Campaign)
	return ve.orNil()
}

func checkCampaign(ve *ValidationError, campaign string) {
	n := utf8.RuneCountInString(campaign)
	if n < 1 || n > maxCampaignLen {
		ve.add("campaign", "must be between 1 and %d characters", maxCampaignLen)
	}
}

// QualifyInput bounds a qualification run. Nil fields take their defaults.
type QualifyInput struct {
	Limit    *int `json:"limit,omitempty"`
	MinScore *int `json:"minScore,omitempty"`
}

func (in *QualifyInput) validate() error {
	var ve ValidationError
	if in.Limit != nil && (*in.Limit < 1 || *in.Limit > 300) {
		ve.add("limit", "must be between 1 and 300")
	}
	if in.MinScore != nil && (*in.MinScore < -100 || *in.MinScore > 200) {
		ve.add("minScore", "must be between -100 and 200")
	}
	return ve.orNil()
}

// PipelineInput configures RunPipeline. DryRun defaults to true whatever
// the service configuration says.
type PipelineInput struct {
	Limit    *int   `json:"limit,omitempty"`
	DryRun   *bool  `json:"dryRun,omitempty"`
	Campaign string `json:"campaign,omitempty"`
}

func (in *PipelineInput) validate() error {
	var ve ValidationError
	if in.Limit != nil && (*in.Limit < 1 || *in.Limit > 100) {
		ve.add("limit", "must be between 1 and 100")
	}
	if in.Campaign == "" {
		in.Campaign = defaultCampaign
	} else {
		in.Campaign = strings.TrimSpace(in.Campaign)
		checkCampaign(&ve, in.Campaign)
	}
	return ve.orNil()
}

// BatchInput configures RunBatch. Zero values take their defaults.
type BatchInput struct {
	Source    string             `json:"source,omitempty"`
	Limit     int                `json:"limit,omitempty"`
	Campaign  string             `json:"campaign,omitempty"`
	DryRun    *bool              `json:"dryRun,omitempty"`
	Channels  []channels.Channel `json:"contactMethods,omitempty"`
	TargetIDs []string           `json:"importedAgentIds,omitempty"`
}

func (in *BatchInput) validate() error {
	var ve ValidationError
	in.Campaign = strings.TrimSpace(in.Campaign)
	if in.Campaign == "" {
		in.Campaign = defaultCampaign
	}
	checkCampaign(&ve, in.Campaign)
	if len(in.TargetIDs) > maxAgentIDs {
		ve.add("importedAgentIds", "at most %d ids are allowed", maxAgentIDs)
	}
	for _, ch := range in.Channels {
		if !ch.Valid() {
			ve.add("contactMethods", "unknown contact method %q", ch)
		}
	}
	return ve.orNil()
}
