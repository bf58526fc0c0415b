package process

import (
	"time"

	"github.com/google/uuid"
)

// RequestType enumerates the actions a request can represent
type RequestType string

const (
	RequestTypeCreateNewProcess     RequestType = "CREATE_NEW_PROCESS"
	RequestTypeCustomerInfoUpdate   RequestType = "CUSTOMER_INFORMATION_UPDATE"
	RequestTypeExpireProcess        RequestType = "EXPIRE_PROCESS"
	RequestTypeStatusCheckRetry     RequestType = "STATUS_CHECK_RETRY"
	RequestTypeManualReconciliation RequestType = "MANUAL_RECONCILIATION"
	RequestTypeCompleteProcess      RequestType = "COMPLETE_PROCESS"
	RequestTypeFailProcess          RequestType = "FAIL_PROCESS"
	RequestTypeResendAuthentication RequestType = "RESEND_AUTHENTICATION"
	RequestTypeAvatarPrompt         RequestType = "AVATAR_PROMPT"
	RequestTypeAvatarRefinement     RequestType = "AVATAR_REFINEMENT"
)

// RequestDataName is the closed vocabulary of request payload keys.
// Workflow strategies read from these keys; an enum keeps the engine
// decoupled from workflow specific payload shapes.
type RequestDataName string

const (
	DataMerchantID             RequestDataName = "MERCHANT_ID"
	DataUserIdentifier         RequestDataName = "USER_IDENTIFIER"
	DataAuthenticationRef      RequestDataName = "AUTHENTICATION_REFERENCE"
	DataDeviceFingerprint      RequestDataName = "DEVICE_FINGERPRINT"
	DataUserEmail              RequestDataName = "USER_EMAIL"
	DataVerificationToken      RequestDataName = "VERIFICATION_TOKEN"
	DataAvatarPrompt           RequestDataName = "AVATAR_PROMPT"
	DataAvatarRefinedPrompt    RequestDataName = "AVATAR_REFINED_PROMPT"
	DataAvatarImageKey         RequestDataName = "AVATAR_IMAGE_KEY"
	DataAvatarPreviousImageKey RequestDataName = "AVATAR_PREVIOUS_IMAGE_KEY"
	DataKnowledgeBaseID        RequestDataName = "KNOWLEDGE_BASE_ID"
	DataKnowledgeBaseName      RequestDataName = "KNOWLEDGE_BASE_NAME"
	DataOrganizationID         RequestDataName = "ORGANIZATION_ID"
	DataTransactionAmount      RequestDataName = "TRANSACTION_AMOUNT"
)

// StakeholderType identifies the role a user plays in a request
type StakeholderType string

const (
	StakeholderActorUser StakeholderType = "ACTOR_USER"
	StakeholderForUser   StakeholderType = "FOR_USER"
)

// Channel classifies the origin of a process or request
type Channel string

const (
	ChannelWeb    Channel = "WEB"
	ChannelAPI    Channel = "API"
	ChannelSystem Channel = "SYSTEM"
)

// Request is one step within the process lifecycle
type Request struct {
	ID           int64                      `json:"id"`
	ProcessID    int64                      `json:"process_id"`
	ActorID      uuid.UUID                  `json:"actor_id"`
	Type         RequestType                `json:"type"`
	State        State                      `json:"state"`
	Channel      Channel                    `json:"channel"`
	Data         map[RequestDataName]string `json:"data,omitempty"`
	Stakeholders map[StakeholderType]string `json:"stakeholders,omitempty"`
	CreatedAt    time.Time                  `json:"created_at"`
}

// NewRequest creates a request with empty data and stakeholder maps
func NewRequest(actorID uuid.UUID, reqType RequestType, state State, channel Channel) *Request {
	return &Request{
		ActorID:      actorID,
		Type:         reqType,
		State:        state,
		Channel:      channel,
		Data:         make(map[RequestDataName]string),
		Stakeholders: make(map[StakeholderType]string),
	}
}

// SetData stores a data value, replacing any previous value for the key
func (r *Request) SetData(name RequestDataName, value string) {
	if r.Data == nil {
		r.Data = make(map[RequestDataName]string)
	}
	r.Data[name] = value
}

// SetStakeholder records a stakeholder for the request
func (r *Request) SetStakeholder(st StakeholderType, id string) {
	if r.Stakeholders == nil {
		r.Stakeholders = make(map[StakeholderType]string)
	}
	r.Stakeholders[st] = id
}
