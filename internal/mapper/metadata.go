package mapper

import (
	"time"

	"github.com/vitaliisemenov/syncengine/internal/domain"
)

// TransformMetadata reshapes update.Metadata into the shape a target
// system's Adapter expects, in place, and returns update for chaining. Every
// target receives a mappingInfo sub-object recording provenance of the
// translation, in addition to its system-specific fields.
func TransformMetadata(system domain.System, update *domain.StatusUpdate) *domain.StatusUpdate {
	if update.Metadata == nil {
		update.Metadata = make(map[string]interface{})
	}

	switch system {
	case domain.SystemTracker:
		transformTrackerMetadata(update)
	case domain.SystemAgent:
		transformAgentMetadata(update)
	case domain.SystemVCS:
		transformVCSMetadata(update)
	case domain.SystemRelational:
		transformRelationalMetadata(update)
	}

	update.Metadata["mappingInfo"] = map[string]interface{}{
		"targetSystem": string(system),
		"mappedAt":     time.Now().UnixMilli(),
		"sourceSystem": string(update.Source),
	}
	return update
}

// transformTrackerMetadata converts a flat "labels" string slice into the
// issue tracker's labelIds shape, matching what the tracker adapter expects
// on Apply.
func transformTrackerMetadata(update *domain.StatusUpdate) {
	if labels, ok := update.Metadata["labels"].([]string); ok {
		ids := make([]string, 0, len(labels))
		for _, l := range labels {
			ids = append(ids, "label:"+l)
		}
		update.Metadata["labelIds"] = ids
		delete(update.Metadata, "labels")
	}
}

// transformAgentMetadata wraps the update's free-form metadata in the
// jobMetadata envelope the agent execution service expects.
func transformAgentMetadata(update *domain.StatusUpdate) {
	inner := make(map[string]interface{}, len(update.Metadata))
	for k, v := range update.Metadata {
		inner[k] = v
	}
	update.Metadata = map[string]interface{}{
		"jobMetadata": inner,
	}
}

// transformVCSMetadata normalizes a single-assignee field into the list
// shape the VCS host's PR/commit-status API expects.
func transformVCSMetadata(update *domain.StatusUpdate) {
	if assignee, ok := update.Metadata["assignee"].(string); ok && assignee != "" {
		update.Metadata["assignees"] = []string{assignee}
		delete(update.Metadata, "assignee")
	}
}

// transformRelationalMetadata stamps the update time the relational store's
// row update expects.
func transformRelationalMetadata(update *domain.StatusUpdate) {
	update.Metadata["updated_at"] = time.Now().UTC().Format(time.RFC3339)
}
