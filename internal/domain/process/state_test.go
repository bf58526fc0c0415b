package process

import "testing"

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateInitial, false},
		{StatePending, false},
		{StateComplete, true},
		{StateFailed, true},
		{StateExpired, true},
		{StateCancelled, true},
		{StateUnknown, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"pending", StatePending, true},
		{"complete", StateComplete, true},
		{"unknown member", StateUnknown, true},
		{"invalid", State("BOGUS"), false},
		{"empty", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_String(t *testing.T) {
	if got := StatePending.String(); got != "PENDING" {
		t.Errorf("State.String() = %v, want %v", got, "PENDING")
	}
}

func TestType_StrategyName(t *testing.T) {
	tests := []struct {
		procType Type
		expected string
	}{
		{TypeTransaction, StrategyNameTransaction},
		{TypePasswordReset, StrategyNameDefault},
		{TypeEmailVerification, StrategyNameDefault},
	}

	for _, tt := range tests {
		t.Run(string(tt.procType), func(t *testing.T) {
			if got := tt.procType.StrategyName(); got != tt.expected {
				t.Errorf("Type.StrategyName() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestType_Timeout(t *testing.T) {
	if TypePasswordReset.Timeout() <= 0 {
		t.Errorf("TypePasswordReset.Timeout() = %v, want positive", TypePasswordReset.Timeout())
	}
	if TypeDefault.Timeout() != NoTimeout {
		t.Errorf("TypeDefault.Timeout() = %v, want NoTimeout", TypeDefault.Timeout())
	}
}
