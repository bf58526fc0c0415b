package process

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNew_SetsExpiryFromTypeTimeout(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := New(uuid.New(), TypePasswordReset, ChannelWeb, "", now)

	if p.State != StatePending {
		t.Errorf("New() state = %v, want %v", p.State, StatePending)
	}
	want := now.Add(TypePasswordReset.Timeout())
	if !p.Expiry.Equal(want) {
		t.Errorf("New() expiry = %v, want %v", p.Expiry, want)
	}
}

func TestNew_NoTimeoutLeavesExpiryZero(t *testing.T) {
	p := New(uuid.New(), TypeDefault, ChannelAPI, "", time.Now())

	if !p.Expiry.IsZero() {
		t.Errorf("New() expiry = %v, want zero", p.Expiry)
	}
	if p.HasExpired(time.Now().Add(1000 * time.Hour)) {
		t.Error("process without deadline reported expired")
	}
}

func TestProcess_HasExpired(t *testing.T) {
	now := time.Now()
	p := New(uuid.New(), TypeTwoFactorAuth, ChannelWeb, "", now)

	if p.HasExpired(now.Add(time.Minute)) {
		t.Error("HasExpired() = true before deadline")
	}
	if !p.HasExpired(now.Add(TypeTwoFactorAuth.Timeout() + time.Second)) {
		t.Error("HasExpired() = false after deadline")
	}
}

func TestProcess_DataValue(t *testing.T) {
	p := New(uuid.New(), TypeTransaction, ChannelAPI, "order-1", time.Now())

	first := NewRequest(uuid.New(), RequestTypeCreateNewProcess, StateComplete, ChannelAPI)
	first.SetData(DataTransactionAmount, "100.00")
	p.AddRequest(first)

	second := NewRequest(uuid.New(), RequestTypeCustomerInfoUpdate, StateComplete, ChannelAPI)
	second.SetData(DataTransactionAmount, "250.00")
	p.AddRequest(second)

	got, err := p.DataValue(DataTransactionAmount)
	if err != nil {
		t.Fatalf("DataValue() error = %v", err)
	}
	if got != "250.00" {
		t.Errorf("DataValue() = %v, want newest value 250.00", got)
	}

	_, err = p.DataValue(DataUserEmail)
	if !errors.Is(err, ErrMissingData) {
		t.Errorf("DataValue() error = %v, want ErrMissingData", err)
	}
}

func TestProcess_StakeholderID(t *testing.T) {
	p := New(uuid.New(), TypePasswordReset, ChannelWeb, "", time.Now())

	req := NewRequest(uuid.New(), RequestTypeCreateNewProcess, StateComplete, ChannelWeb)
	req.SetStakeholder(StakeholderForUser, "user-42")
	p.AddRequest(req)

	got, ok := p.StakeholderID(StakeholderForUser)
	if !ok || got != "user-42" {
		t.Errorf("StakeholderID() = %v, %v, want user-42, true", got, ok)
	}

	if _, ok := p.StakeholderID(StakeholderActorUser); ok {
		t.Error("StakeholderID() found role that was never set")
	}
}

func TestProcess_SeedRequest(t *testing.T) {
	p := New(uuid.New(), TypeUserRegistration, ChannelWeb, "", time.Now())

	if p.SeedRequest() != nil {
		t.Error("SeedRequest() non-nil before any request added")
	}

	seed := NewRequest(uuid.New(), RequestTypeCreateNewProcess, StateComplete, ChannelWeb)
	p.AddRequest(seed)
	p.AddRequest(NewRequest(uuid.New(), RequestTypeResendAuthentication, StateComplete, ChannelWeb))

	if got := p.SeedRequest(); got != seed {
		t.Errorf("SeedRequest() = %v, want the CREATE_NEW_PROCESS request", got)
	}
}

func TestProcess_AddTransition(t *testing.T) {
	p := New(uuid.New(), TypeEmailVerification, ChannelWeb, "", time.Now())
	actor := uuid.New()

	p.AddTransition(StateInitial, StatePending, EventProcessCreated, actor, time.Now())
	p.AddTransition(StatePending, StatePending, EventAuthTokenResend, actor, time.Now())

	if len(p.Transitions) != 2 {
		t.Fatalf("len(Transitions) = %d, want 2", len(p.Transitions))
	}
	if p.Transitions[1].OldState != StatePending || p.Transitions[1].NewState != StatePending {
		t.Error("self-transition not recorded with equal old and new state")
	}
}
