package gcp

import (
	"context"
	"encoding/json"
	"fmt"

	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"

	"github.com/Lllllllleong/documentingest/internal/core"
	"github.com/Lllllllleong/documentingest/internal/models"
)

var _ core.Notifier = (*WorkflowNotifier)(nil)

// WorkflowNotifier starts a Cloud Workflows execution for every completed document.
type WorkflowNotifier struct {
	client *executions.Client
	parent string
}

func NewWorkflowNotifier(client *executions.Client, projectID, location, workflowID string) *WorkflowNotifier {
	return &WorkflowNotifier{
		client: client,
		parent: fmt.Sprintf("projects/%s/locations/%s/workflows/%s", projectID, location, workflowID),
	}
}

// completionPayload is the workflow argument.
type completionPayload struct {
	DocumentKey  string `json:"documentKey"`
	SectionCount int    `json:"sectionCount"`
	AttemptID    string `json:"attemptId"`
}

func (n *WorkflowNotifier) NotifyCompleted(ctx context.Context, doc *models.Document) error {
	payloadBytes, err := json.Marshal(completionPayload{
		DocumentKey:  doc.DocumentKey,
		SectionCount: doc.SectionCount,
		AttemptID:    doc.AttemptID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal workflow payload: %w", err)
	}
	req := &executionspb.CreateExecutionRequest{
		Parent: n.parent,
		Execution: &executionspb.Execution{
			Argument: string(payloadBytes),
		},
	}
	if _, err := n.client.CreateExecution(ctx, req); err != nil {
		return fmt.Errorf("failed to trigger workflow execution: %w", err)
	}
	return nil
}

func (n *WorkflowNotifier) Close() error {
	return n.client.Close()
}
