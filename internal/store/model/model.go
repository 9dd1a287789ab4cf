// Package model defines the gorm row types for every entity in the
// collaboration kernel's data model (spec §3). Schema is owned by the
// migrations under internal/migration/migrations, not by gorm AutoMigrate;
// these structs exist purely as typed, indexed views over that schema.
package model

// ContactState enumerates ContactEdge.State values.
type ContactState string

const (
	ContactPending  ContactState = "pending"
	ContactApproved ContactState = "approved"
	ContactDeclined ContactState = "declined"
	ContactRevoked  ContactState = "revoked"
)

// ContactPolicy enumerates Agent.ContactPolicy values.
type ContactPolicy string

const (
	PolicyOpen    ContactPolicy = "open"
	PolicyRequest ContactPolicy = "request"
	PolicyClosed  ContactPolicy = "closed"
)

// Importance enumerates Message.Importance values.
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceNormal Importance = "normal"
	ImportanceHigh   Importance = "high"
)

// DeliveryState enumerates Delivery.State values.
type DeliveryState string

const (
	DeliveryDelivered    DeliveryState = "delivered"
	DeliveryRead         DeliveryState = "read"
	DeliveryAcknowledged DeliveryState = "acknowledged"
	DeliveryOverdue      DeliveryState = "overdue"
)

// AckState enumerates Ack.State values.
type AckState string

const (
	AckPending      AckState = "pending"
	AckAcknowledged AckState = "acknowledged"
	AckOverdue      AckState = "overdue"
)

// ReservationMode enumerates FileReservation.Mode values.
type ReservationMode string

const (
	ModeExclusive ReservationMode = "exclusive"
	ModeShared    ReservationMode = "shared"
)

// Project is the top-level workspace row (spec §3 "Project").
type Project struct {
	ID          int64  `gorm:"column:id;primaryKey"`
	HumanKey    string `gorm:"column:human_key"`
	DisplayName string `gorm:"column:display_name"`
	IsIdentity  bool   `gorm:"column:is_identity"`
	CreatedAtMs int64  `gorm:"column:created_at_ms"`
}

func (Project) TableName() string { return "projects" }

// Agent is a named participant within one project (spec §3 "Agent").
type Agent struct {
	ID              int64         `gorm:"column:id;primaryKey"`
	ProjectID       int64         `gorm:"column:project_id"`
	Name            string        `gorm:"column:name"`
	NameLower       string        `gorm:"column:name_lower"`
	Program         string        `gorm:"column:program"`
	Model           string        `gorm:"column:model"`
	TaskDescription string        `gorm:"column:task_description"`
	ContactPolicy   ContactPolicy `gorm:"column:contact_policy"`
	CreatedAtMs     int64         `gorm:"column:created_at_ms"`
	LastSeenAtMs    int64         `gorm:"column:last_seen_at_ms"`
	TombstonedAtMs  *int64        `gorm:"column:tombstoned_at_ms"`
}

func (Agent) TableName() string { return "agents" }

// IsTombstoned reports whether the agent has been retired.
func (a Agent) IsTombstoned() bool { return a.TombstonedAtMs != nil }

// ContactEdge is a directed approval edge between two agents (spec §3).
type ContactEdge struct {
	ID            int64        `gorm:"column:id;primaryKey"`
	ProjectID     int64        `gorm:"column:project_id"`
	FromAgentID   int64        `gorm:"column:from_agent_id"`
	ToAgentID     int64        `gorm:"column:to_agent_id"`
	State         ContactState `gorm:"column:state"`
	Reason        string       `gorm:"column:reason"`
	CreatedAtMs   int64        `gorm:"column:created_at_ms"`
	RespondedAtMs *int64       `gorm:"column:responded_at_ms"`
}

func (ContactEdge) TableName() string { return "contact_edges" }

// Thread is an ordered conversation sharing a stable external id (spec §3).
type Thread struct {
	ID               int64  `gorm:"column:id;primaryKey"`
	ProjectID        int64  `gorm:"column:project_id"`
	ExternalID       string `gorm:"column:external_id"`
	Subject          string `gorm:"column:subject"`
	CreatedAtMs      int64  `gorm:"column:created_at_ms"`
	LastActivityAtMs int64  `gorm:"column:last_activity_at_ms"`
}

func (Thread) TableName() string { return "threads" }

// Message is one immutable message within a thread (spec §3).
type Message struct {
	ID              int64      `gorm:"column:id;primaryKey"`
	ThreadID        int64      `gorm:"column:thread_id"`
	SenderAgentID   int64      `gorm:"column:sender_agent_id"`
	Subject         string     `gorm:"column:subject"`
	BodyMD          string     `gorm:"column:body_md"`
	Importance      Importance `gorm:"column:importance"`
	AckRequired     bool       `gorm:"column:ack_required"`
	AckDeadlineMs   *int64     `gorm:"column:ack_deadline_ms"`
	AttachmentRefs  string     `gorm:"column:attachment_refs"`
	CreatedAtMs     int64      `gorm:"column:created_at_ms"`
}

func (Message) TableName() string { return "messages" }

// Delivery is the per-recipient inbox unit for a message (spec §3).
type Delivery struct {
	ID                int64         `gorm:"column:id;primaryKey"`
	MessageID         int64         `gorm:"column:message_id"`
	RecipientAgentID  int64         `gorm:"column:recipient_agent_id"`
	State             DeliveryState `gorm:"column:state"`
	FirstSeenAtMs     *int64        `gorm:"column:first_seen_at_ms"`
	AcknowledgedAtMs  *int64        `gorm:"column:acknowledged_at_ms"`
	CreatedAtMs       int64         `gorm:"column:created_at_ms"`
}

func (Delivery) TableName() string { return "deliveries" }

// Ack is the acknowledgement obligation attached to a delivery (spec §3).
type Ack struct {
	ID               int64    `gorm:"column:id;primaryKey"`
	DeliveryID       int64    `gorm:"column:delivery_id"`
	State            AckState `gorm:"column:state"`
	DeadlineMs       int64    `gorm:"column:deadline_ms"`
	Note             string   `gorm:"column:note"`
	AcknowledgedAtMs *int64   `gorm:"column:acknowledged_at_ms"`
	CreatedAtMs      int64    `gorm:"column:created_at_ms"`
}

func (Ack) TableName() string { return "acks" }

// FileReservation is a time-bounded claim over one or more paths (spec §3).
type FileReservation struct {
	ID            int64           `gorm:"column:id;primaryKey"`
	ProjectID     int64           `gorm:"column:project_id"`
	HolderAgentID int64           `gorm:"column:holder_agent_id"`
	Mode          ReservationMode `gorm:"column:mode"`
	Reason        string          `gorm:"column:reason"`
	CreatedAtMs   int64           `gorm:"column:created_at_ms"`
	ExpiresAtMs   int64           `gorm:"column:expires_at_ms"`
	ReleasedAtMs  *int64          `gorm:"column:released_at_ms"`
	ForceReleased bool            `gorm:"column:force_released"`
}

func (FileReservation) TableName() string { return "file_reservations" }

// FileReservationPath is one path covered by a FileReservation.
type FileReservationPath struct {
	ID            int64  `gorm:"column:id;primaryKey"`
	ReservationID int64  `gorm:"column:reservation_id"`
	Path          string `gorm:"column:path"`
}

func (FileReservationPath) TableName() string { return "file_reservation_paths" }

// Active reports whether the reservation has neither expired nor been released.
func (r FileReservation) Active(nowMs int64) bool {
	return r.ReleasedAtMs == nil && r.ExpiresAtMs > nowMs
}
