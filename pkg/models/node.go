package models

// CategoryType represents the category of a node.
type CategoryType string

const (
	CategoryTypeAction  CategoryType = "action"  // Regular action nodes (http, transform, upload, etc.)
	CategoryTypeTrigger CategoryType = "trigger" // Trigger nodes (manual, webhook, schedule, payment)
)

// Built-in trigger node types.
const (
	NodeTypeTriggerManual   = "trigger:manual"
	NodeTypeTriggerWebhook  = "trigger:webhook"
	NodeTypeTriggerSchedule = "trigger:schedule"
	NodeTypeTriggerPayment  = "trigger:payment"
)

// Default port names. A connection that does not name a port uses "main".
const (
	PortMain  = "main"
	PortTrue  = "true"
	PortFalse = "false"
)

// WorkflowNode represents a single configured node instance in a workflow.
// Position is layout-only and irrelevant to execution.
type WorkflowNode struct {
	ID        string         `json:"id"       validate:"required"`
	Type      string         `json:"type"     validate:"required"`
	Category  CategoryType   `json:"category" validate:"required"`
	Name      string         `json:"name"     validate:"required,min=1"`
	Config    map[string]any `json:"config"`
	PositionX int            `json:"position_x"`
	PositionY int            `json:"position_y"`
}

// IsTriggerNode reports whether this node is the workflow's entry point.
func (n *WorkflowNode) IsTriggerNode() bool {
	return n.Category == CategoryTypeTrigger
}

// Connection is a directed edge between two nodes, scoped to named
// output/input ports.
type Connection struct {
	ID         string `json:"id"`
	SourceNode string `json:"source_node" validate:"required"`
	TargetNode string `json:"target_node" validate:"required"`
	SourcePort string `json:"source_port"`
	TargetPort string `json:"target_port"`
}

// FromPort returns the connection's output port, defaulting to "main".
func (c *Connection) FromPort() string {
	if c.SourcePort == "" {
		return PortMain
	}

	return c.SourcePort
}

// ToPort returns the connection's input port, defaulting to "main".
func (c *Connection) ToPort() string {
	if c.TargetPort == "" {
		return PortMain
	}

	return c.TargetPort
}

// NodeStatus defines the broadcast lifecycle states of a node execution.
type NodeStatus string

const (
	NodeStatusLoading NodeStatus = "loading"
	NodeStatusSuccess NodeStatus = "success"
	NodeStatusError   NodeStatus = "error"
)
