package domain

import (
	"errors"
	"testing"
)

func TestCanTransitionCoversLifecycleTable(t *testing.T) {
	cases := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusOpen, StatusClaimed, true},
		{StatusClaimed, StatusOpen, true},
		{StatusClaimed, StatusCompleted, true},
		{StatusCompleted, StatusRejected, true},

		{StatusOpen, StatusCompleted, false},
		{StatusOpen, StatusRejected, false},
		{StatusOpen, StatusOpen, false},
		{StatusClaimed, StatusClaimed, false},
		{StatusClaimed, StatusRejected, false},
		{StatusCompleted, StatusOpen, false},
		{StatusCompleted, StatusClaimed, false},
		{StatusRejected, StatusOpen, false},
		{StatusRejected, StatusClaimed, false},
		{StatusRejected, StatusCompleted, false},
	}

	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestValidateTransitionNamesBothStatuses(t *testing.T) {
	err := ValidateTransition(StatusOpen, StatusCompleted)
	if err == nil {
		t.Fatal("expected error for open -> completed")
	}

	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %T", err)
	}
	if invalid.From != StatusOpen || invalid.To != StatusCompleted {
		t.Errorf("error carries %s -> %s, want open -> completed", invalid.From, invalid.To)
	}

	if err := ValidateTransition(StatusClaimed, StatusOpen); err != nil {
		t.Errorf("claimed -> open should be legal, got %v", err)
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusOpen, StatusClaimed, StatusCompleted, StatusRejected} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if Status("archived").Valid() {
		t.Error("archived should not be valid")
	}
}

func TestServiceTypeLabels(t *testing.T) {
	if !ServiceRentAgreement.Valid() {
		t.Error("rent_agreement should be valid")
	}
	if ServiceType("plumbing").Valid() {
		t.Error("plumbing should not be valid")
	}
	if got := ServiceDomicile.Label(); got != "Domicile Certificate" {
		t.Errorf("Label() = %q", got)
	}
	// unknown types fall back to the raw value rather than an empty string
	if got := ServiceType("plumbing").Label(); got != "plumbing" {
		t.Errorf("unknown Label() = %q", got)
	}
}
