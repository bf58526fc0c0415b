package process

import "time"

// NoTimeout marks a process type that never expires.
const NoTimeout = time.Duration(-1)

// Strategy binding names. Each process type declares which strategy
// governs its transitions by one of these names; the registry resolves
// the name to an instance at runtime.
const (
	StrategyNameDefault     = "DefaultProcessStrategy"
	StrategyNameTransaction = "TransactionProcessStrategy"
)

// Type identifies the workflow template a process is an instance of
type Type string

const (
	TypeDefault               Type = "DEFAULT"
	TypeKnowledgeBaseCreation Type = "KNOWLEDGE_BASE_CREATION"
	TypeWebhookCreation       Type = "WEBHOOK_CREATION"
	TypeWebhookUpdate         Type = "WEBHOOK_UPDATE"
	TypeWebhookDeletion       Type = "WEBHOOK_DELETION"
	TypeMerchantInvitation    Type = "MERCHANT_USER_INVITATION"
	TypePasswordReset         Type = "PASSWORD_RESET"
	TypeTwoFactorAuth         Type = "TWO_FACTOR_AUTH"
	TypeEmailVerification     Type = "EMAIL_VERIFICATION"
	TypeUserRegistration      Type = "USER_REGISTRATION"
	TypeAvatarGeneration      Type = "AVATAR_GENERATION"
	TypeTransaction           Type = "TRANSACTION"
)

// typeSpec declares the timeout policy and strategy binding for a type.
// This is the single place a workflow type is wired to its behavior.
type typeSpec struct {
	description string
	timeout     time.Duration
	strategy    string
}

var typeSpecs = map[Type]typeSpec{
	TypeDefault:               {"Default Process", NoTimeout, StrategyNameDefault},
	TypeKnowledgeBaseCreation: {"Knowledge Base Creation Process", 24 * time.Hour, StrategyNameDefault},
	TypeWebhookCreation:       {"Webhook Configuration Creation", 5 * time.Minute, StrategyNameDefault},
	TypeWebhookUpdate:         {"Webhook Configuration Update", 5 * time.Minute, StrategyNameDefault},
	TypeWebhookDeletion:       {"Webhook Configuration Deletion", 5 * time.Minute, StrategyNameDefault},
	TypeMerchantInvitation:    {"Merchant User Invitation", 7 * 24 * time.Hour, StrategyNameDefault},
	TypePasswordReset:         {"Password Reset", 20 * time.Minute, StrategyNameDefault},
	TypeTwoFactorAuth:         {"Two Factor Authentication", 5 * time.Minute, StrategyNameDefault},
	TypeEmailVerification:     {"Email Verification", 24 * time.Hour, StrategyNameDefault},
	TypeUserRegistration:      {"User Registration", 24 * time.Hour, StrategyNameDefault},
	TypeAvatarGeneration:      {"Avatar Generation Session", 30 * time.Minute, StrategyNameDefault},
	TypeTransaction:           {"Payment Transaction", 20 * time.Minute, StrategyNameTransaction},
}

// IsValid returns true if the type is a known process type
func (t Type) IsValid() bool {
	_, ok := typeSpecs[t]
	return ok
}

// Description returns the human readable description of the type
func (t Type) Description() string {
	return typeSpecs[t].description
}

// Timeout returns the expiry timeout for the type, or NoTimeout
// when processes of this type never expire.
func (t Type) Timeout() time.Duration {
	spec, ok := typeSpecs[t]
	if !ok {
		return NoTimeout
	}
	return spec.timeout
}

// StrategyName returns the name of the strategy bound to the type.
// An empty name means no strategy is configured.
func (t Type) StrategyName() string {
	return typeSpecs[t].strategy
}

// String returns the string representation of the type
func (t Type) String() string {
	return string(t)
}
