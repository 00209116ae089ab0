package freeipa

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "validation",
			err:  &ValidationError{Field: "idnsname", Message: "required but not set"},
			want: "idnsname",
		},
		{
			name: "authentication",
			err:  &AuthenticationError{Username: "admin", StatusCode: 401},
			want: "401",
		},
		{
			name: "state",
			err:  &StateError{Message: "login must succeed before rpc calls"},
			want: "invalid client state",
		},
		{
			name: "rpc",
			err:  &RPCError{Name: "DuplicateEntry", Code: 4002, Message: "no modifications"},
			want: "DuplicateEntry (4002)",
		},
		{
			name: "rpc http only",
			err:  &RPCError{Status: 502},
			want: "http status 502",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(tt.err.Error(), tt.want) {
				t.Errorf("expected %q in %q", tt.want, tt.err.Error())
			}
		})
	}
}

func TestErrorPredicates(t *testing.T) {
	validation := &ValidationError{Field: "hostname"}
	auth := &AuthenticationError{Username: "admin", StatusCode: 401}
	state := &StateError{Message: "x"}
	rpc := &RPCError{Code: 1}

	if !IsValidation(validation) || IsValidation(auth) {
		t.Error("IsValidation misclassified")
	}
	if !IsAuthentication(auth) || IsAuthentication(state) {
		t.Error("IsAuthentication misclassified")
	}
	if !IsState(state) || IsState(rpc) {
		t.Error("IsState misclassified")
	}
	if !IsRPC(rpc) || IsRPC(validation) {
		t.Error("IsRPC misclassified")
	}
}

func TestErrorPredicates_Wrapped(t *testing.T) {
	err := fmt.Errorf("adding A record: %w", &RPCError{Code: 1})

	if !IsRPC(err) {
		t.Error("expected IsRPC to see through wrapping")
	}

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != 1 {
		t.Error("expected errors.As to recover the RPCError")
	}
}
