// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

package validation

import (
	"strings"
	"testing"
)

type testMessageRequest struct {
	ChatID  int64  `validate:"required,gt=0"`
	Content string `validate:"required,max=10"`
}

type testCallRequest struct {
	ReceiverID int64  `validate:"required,gt=0"`
	Type       string `validate:"required,oneof=audio video"`
}

func TestValidateStructPasses(t *testing.T) {
	req := testMessageRequest{ChatID: 1, Content: "hello"}
	if err := ValidateStruct(&req); err != nil {
		t.Errorf("expected valid struct, got %v", err)
	}
}

func TestValidateStructRequired(t *testing.T) {
	req := testMessageRequest{}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(err.Errors()) != 2 {
		t.Errorf("expected 2 field errors, got %d", len(err.Errors()))
	}
}

func TestValidateStructOneof(t *testing.T) {
	req := testCallRequest{ReceiverID: 1, Type: "telepathy"}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error for bad call type")
	}

	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %q", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "must be one of") {
		t.Errorf("expected oneof message, got %q", apiErr.Message)
	}
}

func TestToAPIErrorSingleFieldDetails(t *testing.T) {
	req := testMessageRequest{ChatID: 1, Content: "this is far too long"}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error")
	}

	apiErr := err.ToAPIError()
	if apiErr.Details["field"] != "Content" {
		t.Errorf("expected field Content in details, got %v", apiErr.Details)
	}
	if !strings.Contains(apiErr.Message, "at most 10 characters") {
		t.Errorf("expected length message, got %q", apiErr.Message)
	}
}

func TestToAPIErrorMultipleFields(t *testing.T) {
	req := testCallRequest{}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error")
	}

	apiErr := err.ToAPIError()
	fields, ok := apiErr.Details["fields"].([]map[string]interface{})
	if !ok {
		t.Fatalf("expected fields slice in details, got %T", apiErr.Details["fields"])
	}
	if len(fields) != 2 {
		t.Errorf("expected 2 field entries, got %d", len(fields))
	}
}
