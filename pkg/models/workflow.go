// Package models defines the core domain models for node-based workflow automation.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft     WorkflowStatus = "draft"     // Editable, not executable
	WorkflowStatusPublished WorkflowStatus = "published" // Active, executable
	WorkflowStatusArchived  WorkflowStatus = "archived"  // Historical, not executable
)

// Workflow represents a node-based workflow graph.
type Workflow struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"        validate:"required,min=3"`
	Description string          `json:"description"`
	Status      WorkflowStatus  `json:"status"      validate:"required"`
	Nodes       []*WorkflowNode `json:"nodes"`
	Connections []*Connection   `json:"connections"`
	Owner       string          `json:"owner"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NodeByID returns the node with the given ID, or nil when absent.
func (w *Workflow) NodeByID(id string) *WorkflowNode {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}
